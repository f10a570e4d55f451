// Package gateway orchestrates one generation request through admission,
// quota, cache, routing, the upstream call, and billing. It is the only
// component callers invoke.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/promptdeck/gateway/internal/cache"
	"github.com/promptdeck/gateway/internal/ledger"
	"github.com/promptdeck/gateway/internal/plan"
	"github.com/promptdeck/gateway/internal/pricing"
	"github.com/promptdeck/gateway/internal/provider"
	"github.com/promptdeck/gateway/internal/router"
	"github.com/promptdeck/gateway/pkg/ratelimit"
)

type Request struct {
	Identity          string
	Tier              plan.Tier
	Feature           string
	Prompt            string
	RequestedModel    string
	QualityPreference float64
	MaxTokens         int
	Temperature       float64
}

type Result struct {
	Payload        string
	Model          string
	CreditsCharged int64
	Cached         bool
	Reasoning      string
}

// Narrow views of the collaborators, so tests fake exactly what the
// gateway consumes.

type RateLimiter interface {
	Check(ctx context.Context, tier, key string) (*ratelimit.Result, error)
}

type UsageLedger interface {
	CurrentPeriodUsage(ctx context.Context, identity string) (int64, error)
	Append(ctx context.Context, rec *ledger.Record)
}

type ResponseCache interface {
	Get(ctx context.Context, fingerprint string) (*cache.Payload, error)
	Set(ctx context.Context, fingerprint string, p *cache.Payload)
}

type ModelRouter interface {
	SelectModel(tier plan.Tier, requestedModel, prompt string, qualityPreference float64) router.Decision
}

type Invoker interface {
	Invoke(ctx context.Context, req *provider.Request) (*provider.Response, error)
}

type Deps struct {
	Limiter         RateLimiter
	Policy          *plan.Policy
	Ledger          UsageLedger
	Cache           ResponseCache
	Router          ModelRouter
	Invoker         Invoker
	Calculator      *pricing.Calculator
	ProviderTimeout time.Duration
	Tracer          trace.Tracer
	Logger          *zap.Logger
}

type Gateway struct {
	deps   Deps
	flight singleflight.Group
}

func New(deps Deps) *Gateway {
	if deps.ProviderTimeout <= 0 {
		deps.ProviderTimeout = 60 * time.Second
	}
	return &Gateway{deps: deps}
}

// Handle runs the full metering pipeline for one request. Failures before
// the provider call are typed *Error; best-effort subsystems (limiter
// store, cache store) fail open with a warning instead.
func (g *Gateway) Handle(ctx context.Context, req *Request) (*Result, error) {
	ctx, span := g.deps.Tracer.Start(ctx, "gateway.handle")
	defer span.End()
	span.SetAttributes(
		attribute.String("identity", req.Identity),
		attribute.String("feature", req.Feature),
		attribute.String("requested_model", req.RequestedModel),
	)

	limits := g.deps.Policy.LimitsFor(req.Tier)

	// 1. Admission. The limiter fails open: availability beats strict
	// enforcement for this leaf.
	limitKey := req.Identity + ":" + req.Feature
	res, err := g.deps.Limiter.Check(ctx, limits.LimiterTier, limitKey)
	switch {
	case err != nil:
		g.deps.Logger.Warn("rate limit store unavailable, failing open",
			zap.String("identity", req.Identity),
			zap.Error(err),
		)
	case !res.Allowed:
		return nil, &Error{
			Kind:       KindRateLimited,
			RetryAfter: time.Until(res.ResetAt),
			Limit:      int64(res.Limit),
		}
	}

	// 2. Quota. No paid work without a quota answer, so a ledger read
	// failure is a hard error here.
	used, err := g.deps.Ledger.CurrentPeriodUsage(ctx, req.Identity)
	if err != nil {
		return nil, fmt.Errorf("quota lookup failed: %w", err)
	}
	decision := g.deps.Policy.CheckQuota(used, req.Tier)
	_, estimated := g.deps.Calculator.Estimate(req.RequestedModel, req.Prompt, req.MaxTokens)
	if !decision.Allowed || (decision.Limit != plan.Unlimited && estimated > decision.Remaining) {
		return nil, &Error{
			Kind:            KindQuotaExceeded,
			Limit:           decision.Limit,
			Remaining:       decision.Remaining,
			UpgradeRequired: true,
		}
	}

	// 3. Cache. Store trouble is an unconditional miss.
	fp := cache.Fingerprint(req.RequestedModel, req.Prompt, cache.Params{
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	payload, err := g.deps.Cache.Get(ctx, fp)
	if err == nil {
		g.recordUsage(ctx, req, payload, 0, true)
		span.SetAttributes(attribute.Bool("cache_hit", true))
		return &Result{
			Payload: payload.Text,
			Model:   payload.Model,
			Cached:  true,
		}, nil
	}
	if errors.Is(err, cache.ErrStoreUnavailable) {
		g.deps.Logger.Warn("cache store unavailable, treating as miss", zap.Error(err))
	}

	// 4. Routing.
	route := g.deps.Router.SelectModel(req.Tier, req.RequestedModel, req.Prompt, req.QualityPreference)
	span.SetAttributes(attribute.String("routed_model", route.Model))

	// 5-6. Upstream call under single-flight: at most one in-flight
	// provider call per fingerprint. Only the executing caller is billed;
	// sharers get the same payload as an uncharged reuse.
	var executed bool
	v, err, _ := g.flight.Do(fp, func() (interface{}, error) {
		executed = true
		return g.callAndSettle(ctx, req, route.Model, fp)
	})
	if err != nil {
		return nil, &Error{Kind: KindProviderError, cause: err}
	}

	out := v.(*settled)
	result := &Result{
		Payload:   out.payload.Text,
		Model:     out.payload.Model,
		Cached:    !executed,
		Reasoning: route.Reasoning,
	}
	if executed {
		result.CreditsCharged = out.credits
	} else {
		g.recordUsage(ctx, req, out.payload, 0, true)
	}
	return result, nil
}

type settled struct {
	payload *cache.Payload
	credits int64
}

// callAndSettle makes the paid upstream call and, on success, prices it,
// caches it, and writes the billed usage record. It runs detached from the
// caller's cancellation: once the cost is incurred, billing must complete,
// and single-flight sharers still need the result.
func (g *Gateway) callAndSettle(ctx context.Context, req *Request, model, fp string) (*settled, error) {
	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), g.deps.ProviderTimeout)
	defer cancel()

	resp, err := g.deps.Invoker.Invoke(callCtx, &provider.Request{
		Model:       model,
		Prompt:      req.Prompt,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		// Timeout and upstream failure are the same outcome: no charge,
		// no cache write.
		return nil, err
	}

	usd := g.deps.Calculator.Cost(resp.Model, resp.TokensIn, resp.TokensOut)
	credits := pricing.CreditsFromUSD(usd)

	payload := &cache.Payload{
		Text:      resp.Text,
		Model:     resp.Model,
		TokensIn:  resp.TokensIn,
		TokensOut: resp.TokensOut,
		CreatedAt: time.Now().UTC(),
	}
	g.deps.Cache.Set(callCtx, fp, payload)
	g.recordUsage(ctx, req, payload, credits, false)

	return &settled{payload: payload, credits: credits}, nil
}

// recordUsage writes the usage fact on a context that survives caller
// cancellation. Cache hits and single-flight reuses record zero credits
// for observability.
func (g *Gateway) recordUsage(ctx context.Context, req *Request, p *cache.Payload, credits int64, cachedHit bool) {
	g.deps.Ledger.Append(context.WithoutCancel(ctx), &ledger.Record{
		Identity:  req.Identity,
		Feature:   req.Feature,
		Credits:   credits,
		TokensIn:  p.TokensIn,
		TokensOut: p.TokensOut,
		Model:     p.Model,
		CachedHit: cachedHit,
	})
}
