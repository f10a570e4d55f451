package anthropic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/promptdeck/gateway/internal/provider"
)

func TestInvoke_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("x-api-key"); got != "test-key" {
			t.Errorf("x-api-key = %q", got)
		}
		if got := r.Header.Get("anthropic-version"); got != apiVersion {
			t.Errorf("anthropic-version = %q", got)
		}

		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.MaxTokens != 200 {
			t.Errorf("max_tokens = %d, want 200", req.MaxTokens)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Model:   "claude-sonnet-4",
			Content: []anthropicContent{{Type: "text", Text: "hello from claude"}},
			Usage:   anthropicUsage{InputTokens: 8, OutputTokens: 5},
		})
	}))
	defer srv.Close()

	p := &AnthropicProvider{apiKey: "test-key", baseURL: srv.URL}
	resp, err := p.Invoke(context.Background(), &provider.Request{
		Model:     "claude-sonnet-4",
		Prompt:    "hello",
		MaxTokens: 200,
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Text != "hello from claude" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.TokensIn != 8 || resp.TokensOut != 5 {
		t.Errorf("tokens = %d/%d, want 8/5", resp.TokensIn, resp.TokensOut)
	}
}

func TestInvoke_DefaultsMaxTokens(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthropicRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		// The messages API rejects requests without max_tokens.
		if req.MaxTokens != 1024 {
			t.Errorf("max_tokens = %d, want the 1024 default", req.MaxTokens)
		}

		json.NewEncoder(w).Encode(anthropicResponse{
			Model:   "claude-3-5-haiku",
			Content: []anthropicContent{{Type: "text", Text: "ok"}},
		})
	}))
	defer srv.Close()

	p := &AnthropicProvider{apiKey: "test-key", baseURL: srv.URL}
	_, err := p.Invoke(context.Background(), &provider.Request{Model: "claude-3-5-haiku", Prompt: "x"})
	if err != nil {
		t.Fatal(err)
	}
}

func TestInvoke_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": {"type": "overloaded_error"}}`, http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	p := &AnthropicProvider{apiKey: "test-key", baseURL: srv.URL}
	_, err := p.Invoke(context.Background(), &provider.Request{Model: "claude-sonnet-4", Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestInvoke_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(anthropicResponse{Model: "claude-sonnet-4"})
	}))
	defer srv.Close()

	p := &AnthropicProvider{apiKey: "test-key", baseURL: srv.URL}
	_, err := p.Invoke(context.Background(), &provider.Request{Model: "claude-sonnet-4", Prompt: "x"})
	if err == nil {
		t.Fatal("expected error for empty content")
	}
}
