package provider

import (
	"context"
	"fmt"
	"time"

	"github.com/sony/gobreaker"
)

// Registry resolves models to providers and guards each provider with a
// circuit breaker so a failing upstream is skipped instead of hammered.
type Registry struct {
	providers []Provider
	byModel   map[string]Provider
	breakers  map[string]*gobreaker.CircuitBreaker
}

func NewRegistry(providers []Provider) *Registry {
	byModel := make(map[string]Provider)
	breakers := make(map[string]*gobreaker.CircuitBreaker)
	for _, p := range providers {
		for _, m := range p.Models() {
			byModel[m] = p
		}
		settings := gobreaker.Settings{
			Name:        p.Name(),
			MaxRequests: 3,
			Interval:    5 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}
		breakers[p.Name()] = gobreaker.NewCircuitBreaker(settings)
	}
	return &Registry{
		providers: providers,
		byModel:   byModel,
		breakers:  breakers,
	}
}

// Invoke dispatches the request to the provider serving req.Model through
// that provider's breaker.
func (r *Registry) Invoke(ctx context.Context, req *Request) (*Response, error) {
	p, ok := r.byModel[req.Model]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoProvider, req.Model)
	}

	cb := r.breakers[p.Name()]
	result, err := cb.Execute(func() (interface{}, error) {
		return p.Invoke(ctx, req)
	})
	if err != nil {
		return nil, err
	}
	return result.(*Response), nil
}

// Supports reports whether any registered provider serves the model.
func (r *Registry) Supports(model string) bool {
	_, ok := r.byModel[model]
	return ok
}
