// Package plan maps subscription tiers to quota limits and feature flags.
// Limits are configuration: loaded at startup, read-only at request time.
package plan

import (
	"math"

	"github.com/promptdeck/gateway/internal/pricing"
)

type Tier string

const (
	TierFree       Tier = "free"
	TierPro        Tier = "pro"
	TierEnterprise Tier = "enterprise"
)

// Unlimited is the sentinel for caps that are not enforced.
const Unlimited int64 = -1

// Limits is the active limit row for one tier.
type Limits struct {
	Tier              Tier
	MonthlyCreditCap  int64 // Unlimited (-1) means no cap
	RequestsPerWindow int
	LimiterTier       string // named ratelimit tier
	AllowedModelTiers []pricing.CapabilityTier
	Features          map[string]int
}

// DefaultLimits seeds deployments that have no plan_limits rows yet.
func DefaultLimits() map[Tier]Limits {
	return map[Tier]Limits{
		TierFree: {
			Tier:              TierFree,
			MonthlyCreditCap:  500,
			RequestsPerWindow: 20,
			LimiterTier:       "strict",
			AllowedModelTiers: []pricing.CapabilityTier{pricing.TierEconomy},
			Features:          map[string]int{"quality_routing": 1},
		},
		TierPro: {
			Tier:              TierPro,
			MonthlyCreditCap:  5000,
			RequestsPerWindow: 100,
			LimiterTier:       "default",
			AllowedModelTiers: []pricing.CapabilityTier{pricing.TierEconomy, pricing.TierStandard},
			Features:          map[string]int{"quality_routing": 1},
		},
		TierEnterprise: {
			Tier:              TierEnterprise,
			MonthlyCreditCap:  Unlimited,
			RequestsPerWindow: 1000,
			LimiterTier:       "default",
			AllowedModelTiers: []pricing.CapabilityTier{pricing.TierEconomy, pricing.TierStandard, pricing.TierPremium},
			Features:          map[string]int{"quality_routing": 1, "cache_invalidate": 1},
		},
	}
}

// QuotaDecision is the outcome of a pure quota check.
type QuotaDecision struct {
	Allowed   bool
	Limit     int64
	Remaining int64
}

type Policy struct {
	limits map[Tier]Limits
}

// NewPolicy builds a policy over the given limits table; nil means the
// compiled-in defaults.
func NewPolicy(limits map[Tier]Limits) *Policy {
	if limits == nil {
		limits = DefaultLimits()
	}
	return &Policy{limits: limits}
}

// LimitsFor returns the limits for a tier. Unknown tiers get the free
// tier's limits, the most restrictive choice.
func (p *Policy) LimitsFor(tier Tier) Limits {
	if l, ok := p.limits[tier]; ok {
		return l
	}
	return p.limits[TierFree]
}

func (p *Policy) IsFeatureEnabled(tier Tier, feature string) bool {
	return p.LimitsFor(tier).Features[feature] > 0
}

// CheckQuota compares a usage total against the tier's monthly credit cap.
// Pure: the usage total is supplied by the caller, no I/O happens here.
func (p *Policy) CheckQuota(periodUsage int64, tier Tier) QuotaDecision {
	cap := p.LimitsFor(tier).MonthlyCreditCap
	if cap == Unlimited {
		return QuotaDecision{Allowed: true, Limit: Unlimited, Remaining: math.MaxInt64}
	}

	remaining := cap - periodUsage
	if remaining < 0 {
		remaining = 0
	}
	return QuotaDecision{
		Allowed:   periodUsage < cap,
		Limit:     cap,
		Remaining: remaining,
	}
}
