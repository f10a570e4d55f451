// Package pricing holds the static per-model cost table and the credit
// arithmetic used for billing. Profiles are loaded once at startup and are
// read-only afterwards; a deploy-time refresh is the only way prices change.
package pricing

import (
	"sort"

	"go.uber.org/zap"
)

// CapabilityTier groups models by rough capability for plan gating and
// cheapest-suitable routing.
type CapabilityTier string

const (
	TierEconomy  CapabilityTier = "economy"
	TierStandard CapabilityTier = "standard"
	TierPremium  CapabilityTier = "premium"
)

// ModelCostProfile is the static cost/capability record for one model.
// Prices are USD per million tokens.
type ModelCostProfile struct {
	ModelID       string
	Provider      string
	InputPerMTok  float64
	OutputPerMTok float64
	Tier          CapabilityTier
}

// DefaultModel is the fallback used when a model id is not in the table.
// Cost estimation must degrade, never fail a request.
const DefaultModel = "gpt-4o-mini"

// DefaultProfiles covers the models the gateway routes between.
// Prices as of mid 2025.
var DefaultProfiles = []ModelCostProfile{
	{ModelID: "gpt-4-turbo", Provider: "openai", InputPerMTok: 10, OutputPerMTok: 30, Tier: TierPremium},
	{ModelID: "gpt-4o", Provider: "openai", InputPerMTok: 2.5, OutputPerMTok: 10, Tier: TierStandard},
	{ModelID: "gpt-4o-mini", Provider: "openai", InputPerMTok: 0.15, OutputPerMTok: 0.6, Tier: TierEconomy},
	{ModelID: "gpt-3.5-turbo", Provider: "openai", InputPerMTok: 0.5, OutputPerMTok: 1.5, Tier: TierEconomy},
	{ModelID: "claude-opus-4", Provider: "anthropic", InputPerMTok: 15, OutputPerMTok: 75, Tier: TierPremium},
	{ModelID: "claude-sonnet-4", Provider: "anthropic", InputPerMTok: 3, OutputPerMTok: 15, Tier: TierStandard},
	{ModelID: "claude-3-5-haiku", Provider: "anthropic", InputPerMTok: 0.8, OutputPerMTok: 4, Tier: TierEconomy},
	{ModelID: "gemini-1.5-pro", Provider: "gemini", InputPerMTok: 1.25, OutputPerMTok: 5, Tier: TierStandard},
	{ModelID: "gemini-1.5-flash", Provider: "gemini", InputPerMTok: 0.075, OutputPerMTok: 0.3, Tier: TierEconomy},
	{ModelID: "gemini-2.0-flash", Provider: "gemini", InputPerMTok: 0.1, OutputPerMTok: 0.4, Tier: TierEconomy},
}

type Table struct {
	profiles     map[string]ModelCostProfile
	defaultModel string
	logger       *zap.Logger
}

func NewTable(logger *zap.Logger) *Table {
	return NewTableWithProfiles(DefaultProfiles, DefaultModel, logger)
}

func NewTableWithProfiles(profiles []ModelCostProfile, defaultModel string, logger *zap.Logger) *Table {
	m := make(map[string]ModelCostProfile, len(profiles))
	for _, p := range profiles {
		m[p.ModelID] = p
	}
	return &Table{profiles: m, defaultModel: defaultModel, logger: logger}
}

// Profile returns the cost profile for a model. Unknown ids fall back to
// the default model's pricing with a warning; callers never see an error.
func (t *Table) Profile(modelID string) ModelCostProfile {
	if p, ok := t.profiles[modelID]; ok {
		return p
	}
	t.logger.Warn("unknown model, falling back to default pricing",
		zap.String("model", modelID),
		zap.String("default", t.defaultModel),
	)
	p := t.profiles[t.defaultModel]
	return p
}

// Known reports whether the model id is present in the table.
func (t *Table) Known(modelID string) bool {
	_, ok := t.profiles[modelID]
	return ok
}

// InTiers lists models in any of the given capability tiers, cheapest
// first by combined input+output price.
func (t *Table) InTiers(tiers []CapabilityTier) []ModelCostProfile {
	want := make(map[CapabilityTier]bool, len(tiers))
	for _, tier := range tiers {
		want[tier] = true
	}

	var out []ModelCostProfile
	for _, p := range t.profiles {
		if want[p.Tier] {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		ci := out[i].InputPerMTok + out[i].OutputPerMTok
		cj := out[j].InputPerMTok + out[j].OutputPerMTok
		if ci != cj {
			return ci < cj
		}
		return out[i].ModelID < out[j].ModelID
	})
	return out
}
