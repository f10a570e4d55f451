package provider

import (
	"context"
	"errors"
)

// ErrNoProvider means no registered provider serves the requested model.
var ErrNoProvider = errors.New("no provider for model")

type Request struct {
	Model       string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Response carries the provider-reported token counts; billing uses these,
// never estimates.
type Response struct {
	Text      string
	Model     string
	TokensIn  int
	TokensOut int
	LatencyMs int64
}

type Provider interface {
	Invoke(ctx context.Context, req *Request) (*Response, error)
	Name() string
	Models() []string
}
