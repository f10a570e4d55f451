package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/sony/gobreaker"
)

type stubProvider struct {
	name   string
	models []string
	invoke func(ctx context.Context, req *Request) (*Response, error)
	calls  int
}

func (s *stubProvider) Invoke(ctx context.Context, req *Request) (*Response, error) {
	s.calls++
	return s.invoke(ctx, req)
}

func (s *stubProvider) Name() string     { return s.name }
func (s *stubProvider) Models() []string { return s.models }

func TestInvoke_DispatchesByModel(t *testing.T) {
	a := &stubProvider{
		name:   "alpha",
		models: []string{"model-a"},
		invoke: func(_ context.Context, req *Request) (*Response, error) {
			return &Response{Text: "from alpha", Model: req.Model}, nil
		},
	}
	b := &stubProvider{
		name:   "beta",
		models: []string{"model-b"},
		invoke: func(_ context.Context, req *Request) (*Response, error) {
			return &Response{Text: "from beta", Model: req.Model}, nil
		},
	}
	r := NewRegistry([]Provider{a, b})

	resp, err := r.Invoke(context.Background(), &Request{Model: "model-b", Prompt: "x"})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Text != "from beta" {
		t.Errorf("Text = %q", resp.Text)
	}
	if a.calls != 0 || b.calls != 1 {
		t.Errorf("calls alpha/beta = %d/%d, want 0/1", a.calls, b.calls)
	}
}

func TestInvoke_UnknownModel(t *testing.T) {
	r := NewRegistry(nil)

	_, err := r.Invoke(context.Background(), &Request{Model: "no-such-model"})
	if !errors.Is(err, ErrNoProvider) {
		t.Fatalf("expected ErrNoProvider, got %v", err)
	}
}

func TestInvoke_BreakerOpensAfterConsecutiveFailures(t *testing.T) {
	p := &stubProvider{
		name:   "flaky",
		models: []string{"model-f"},
		invoke: func(context.Context, *Request) (*Response, error) {
			return nil, errors.New("upstream down")
		},
	}
	r := NewRegistry([]Provider{p})
	req := &Request{Model: "model-f", Prompt: "x"}

	for i := 0; i < 3; i++ {
		if _, err := r.Invoke(context.Background(), req); err == nil {
			t.Fatalf("call %d should fail", i)
		}
	}
	if p.calls != 3 {
		t.Fatalf("provider calls = %d, want 3", p.calls)
	}

	// The breaker is open now: the provider is skipped entirely.
	_, err := r.Invoke(context.Background(), req)
	if !errors.Is(err, gobreaker.ErrOpenState) {
		t.Fatalf("expected open breaker, got %v", err)
	}
	if p.calls != 3 {
		t.Errorf("open breaker still reached the provider (%d calls)", p.calls)
	}
}

func TestSupports(t *testing.T) {
	p := &stubProvider{name: "alpha", models: []string{"model-a"}}
	r := NewRegistry([]Provider{p})

	if !r.Supports("model-a") {
		t.Error("model-a should be supported")
	}
	if r.Supports("model-z") {
		t.Error("model-z should not be supported")
	}
}
