package openai

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/promptdeck/gateway/internal/provider"
)

func TestInvoke_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("Authorization = %q", got)
		}

		var req openAIRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.Model != "gpt-4o-mini" || len(req.Messages) != 1 || req.Messages[0].Content != "hello" {
			t.Errorf("unexpected request %+v", req)
		}

		json.NewEncoder(w).Encode(openAIResponse{
			Model:   "gpt-4o-mini",
			Choices: []openAIChoice{{Message: openAIMessage{Role: "assistant", Content: "hi there"}}},
			Usage:   openAIUsage{PromptTokens: 12, CompletionTokens: 4},
		})
	}))
	defer srv.Close()

	p := &OpenAIProvider{apiKey: "test-key", baseURL: srv.URL}
	resp, err := p.Invoke(context.Background(), &provider.Request{
		Model:     "gpt-4o-mini",
		Prompt:    "hello",
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatal(err)
	}

	if resp.Text != "hi there" {
		t.Errorf("Text = %q", resp.Text)
	}
	if resp.TokensIn != 12 || resp.TokensOut != 4 {
		t.Errorf("tokens = %d/%d, want 12/4", resp.TokensIn, resp.TokensOut)
	}
	if resp.Model != "gpt-4o-mini" {
		t.Errorf("Model = %s", resp.Model)
	}
}

func TestInvoke_UpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limit"}`, http.StatusTooManyRequests)
	}))
	defer srv.Close()

	p := &OpenAIProvider{apiKey: "test-key", baseURL: srv.URL}
	_, err := p.Invoke(context.Background(), &provider.Request{Model: "gpt-4o", Prompt: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("error should carry the status: %v", err)
	}
}

func TestInvoke_NoChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(openAIResponse{Model: "gpt-4o"})
	}))
	defer srv.Close()

	p := &OpenAIProvider{apiKey: "test-key", baseURL: srv.URL}
	_, err := p.Invoke(context.Background(), &provider.Request{Model: "gpt-4o", Prompt: "x"})
	if err == nil {
		t.Fatal("expected error for empty choices")
	}
}

func TestModels(t *testing.T) {
	p := New("k")
	models := p.Models()
	if len(models) == 0 {
		t.Fatal("no models registered")
	}
	for _, m := range models {
		if !strings.HasPrefix(m, "gpt-") {
			t.Errorf("unexpected model %s", m)
		}
	}
}
