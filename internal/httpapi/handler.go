// Package httpapi maps the gateway onto HTTP. It owns no business rules:
// it decodes requests, invokes the gateway, and renders typed gateway
// errors as structured responses.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/promptdeck/gateway/internal/auth"
	"github.com/promptdeck/gateway/internal/gateway"
	"github.com/promptdeck/gateway/internal/ledger"
	"github.com/promptdeck/gateway/internal/plan"
)

const defaultFeature = "generation"

type Gateway interface {
	Handle(ctx context.Context, req *gateway.Request) (*gateway.Result, error)
}

type UsageReader interface {
	CurrentPeriodUsage(ctx context.Context, identity string) (int64, error)
	Records(ctx context.Context, identity string, from, to time.Time) ([]*ledger.Record, error)
}

type CacheAdmin interface {
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
}

type Handler struct {
	gw     Gateway
	usage  UsageReader
	cache  CacheAdmin
	policy *plan.Policy
	logger *zap.Logger
}

func NewHandler(gw Gateway, usage UsageReader, cache CacheAdmin, policy *plan.Policy, logger *zap.Logger) *Handler {
	return &Handler{gw: gw, usage: usage, cache: cache, policy: policy, logger: logger}
}

type generateRequest struct {
	Feature           string  `json:"feature"`
	Prompt            string  `json:"prompt"`
	Model             string  `json:"model"`
	QualityPreference float64 `json:"quality_preference"`
	MaxTokens         int     `json:"max_tokens"`
	Temperature       float64 `json:"temperature"`
}

func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.GetIdentity(ctx)
	if identity == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	var body generateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if body.Prompt == "" || body.Model == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "prompt and model are required"})
		return
	}
	if body.Feature == "" {
		body.Feature = defaultFeature
	}

	result, err := h.gw.Handle(ctx, &gateway.Request{
		Identity:          identity,
		Tier:              auth.GetPlanTier(ctx),
		Feature:           body.Feature,
		Prompt:            body.Prompt,
		RequestedModel:    body.Model,
		QualityPreference: body.QualityPreference,
		MaxTokens:         body.MaxTokens,
		Temperature:       body.Temperature,
	})
	if err != nil {
		h.writeGatewayError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"payload":         result.Payload,
		"model":           result.Model,
		"credits_charged": result.CreditsCharged,
		"cached":          result.Cached,
		"reasoning":       result.Reasoning,
		"request_id":      auth.GetRequestID(ctx),
	})
}

func (h *Handler) writeGatewayError(w http.ResponseWriter, err error) {
	var gwErr *gateway.Error
	if !errors.As(err, &gwErr) {
		h.logger.Error("gateway failure", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	switch gwErr.Kind {
	case gateway.KindRateLimited:
		retryAfter := int(gwErr.RetryAfter.Seconds() + 0.5)
		if retryAfter < 1 {
			retryAfter = 1
		}
		w.Header().Set("Retry-After", fmt.Sprintf("%d", retryAfter))
		writeJSON(w, http.StatusTooManyRequests, map[string]interface{}{
			"error":               "rate limit exceeded",
			"retry_after_seconds": retryAfter,
		})
	case gateway.KindQuotaExceeded:
		writeJSON(w, http.StatusPaymentRequired, map[string]interface{}{
			"error":            "monthly credit quota exceeded",
			"limit":            gwErr.Limit,
			"remaining":        gwErr.Remaining,
			"upgrade_required": gwErr.UpgradeRequired,
		})
	default:
		// Upstream details stay server-side.
		h.logger.Warn("provider failure", zap.Error(err))
		writeJSON(w, http.StatusBadGateway, map[string]string{"error": "upstream provider unavailable"})
	}
}

func (h *Handler) HandleUsage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.GetIdentity(ctx)
	if identity == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}

	now := time.Now()
	from := now.AddDate(0, 0, -30) // Default: last 30 days
	to := now

	if s := r.URL.Query().Get("from"); s != "" {
		var err error
		from, err = time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid 'from' date format (use RFC3339)"})
			return
		}
	}
	if s := r.URL.Query().Get("to"); s != "" {
		var err error
		to, err = time.Parse(time.RFC3339, s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid 'to' date format (use RFC3339)"})
			return
		}
	}

	records, err := h.usage.Records(ctx, identity, from, to)
	if err != nil {
		h.logger.Error("usage query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}
	used, err := h.usage.CurrentPeriodUsage(ctx, identity)
	if err != nil {
		h.logger.Error("period usage query failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	tier := auth.GetPlanTier(ctx)
	decision := h.policy.CheckQuota(used, tier)

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"identity":       identity,
		"plan_tier":      tier,
		"period_credits": used,
		"credit_limit":   decision.Limit,
		"remaining":      decision.Remaining,
		"total_requests": len(records),
		"records":        records,
		"from":           from,
		"to":             to,
	})
}

type invalidateRequest struct {
	Pattern string `json:"pattern"`
}

// HandleInvalidateCache drops cached responses matching a glob pattern.
// Feature-gated: only plans with cache_invalidate may call it.
func (h *Handler) HandleInvalidateCache(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	identity := auth.GetIdentity(ctx)
	if identity == "" {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
		return
	}
	if !h.policy.IsFeatureEnabled(auth.GetPlanTier(ctx), "cache_invalidate") {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "cache invalidation not available on this plan"})
		return
	}

	var body invalidateRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Pattern == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "pattern is required"})
		return
	}

	deleted, err := h.cache.InvalidatePattern(ctx, body.Pattern)
	if err != nil {
		h.logger.Error("cache invalidation failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal error"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]int{"deleted": deleted})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
