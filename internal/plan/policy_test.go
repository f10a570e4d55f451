package plan

import (
	"math"
	"testing"

	"github.com/promptdeck/gateway/internal/pricing"
)

func TestCheckQuota_UnlimitedSentinel(t *testing.T) {
	p := NewPolicy(nil)

	for _, usage := range []int64{0, 1, 1_000_000, math.MaxInt64 / 2} {
		dec := p.CheckQuota(usage, TierEnterprise)
		if !dec.Allowed {
			t.Errorf("usage %d: unlimited tier must always be allowed", usage)
		}
		if dec.Limit != Unlimited {
			t.Errorf("usage %d: expected limit %d, got %d", usage, Unlimited, dec.Limit)
		}
		if dec.Remaining != math.MaxInt64 {
			t.Errorf("usage %d: expected remaining MaxInt64, got %d", usage, dec.Remaining)
		}
	}
}

func TestCheckQuota_Limited(t *testing.T) {
	p := NewPolicy(map[Tier]Limits{
		TierFree: {Tier: TierFree, MonthlyCreditCap: 100},
	})

	tests := []struct {
		name      string
		usage     int64
		allowed   bool
		remaining int64
	}{
		{"untouched", 0, true, 100},
		{"under cap", 95, true, 5},
		{"at cap", 100, false, 0},
		{"over cap", 150, false, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dec := p.CheckQuota(tt.usage, TierFree)
			if dec.Allowed != tt.allowed {
				t.Errorf("allowed = %v, want %v", dec.Allowed, tt.allowed)
			}
			if dec.Remaining != tt.remaining {
				t.Errorf("remaining = %d, want %d", dec.Remaining, tt.remaining)
			}
			if dec.Limit != 100 {
				t.Errorf("limit = %d, want 100", dec.Limit)
			}
		})
	}
}

func TestLimitsFor_UnknownTierDefaultsToFree(t *testing.T) {
	p := NewPolicy(nil)

	l := p.LimitsFor(Tier("platinum"))
	if l.Tier != TierFree {
		t.Errorf("unknown tier should map to free, got %s", l.Tier)
	}
}

func TestLimitsFor_AllowedModelTiers(t *testing.T) {
	p := NewPolicy(nil)

	free := p.LimitsFor(TierFree)
	if len(free.AllowedModelTiers) != 1 || free.AllowedModelTiers[0] != pricing.TierEconomy {
		t.Errorf("free tier should only allow economy models, got %v", free.AllowedModelTiers)
	}

	ent := p.LimitsFor(TierEnterprise)
	if len(ent.AllowedModelTiers) != 3 {
		t.Errorf("enterprise tier should allow all model tiers, got %v", ent.AllowedModelTiers)
	}
}

func TestIsFeatureEnabled(t *testing.T) {
	p := NewPolicy(nil)

	if p.IsFeatureEnabled(TierFree, "cache_invalidate") {
		t.Error("free tier should not have cache_invalidate")
	}
	if !p.IsFeatureEnabled(TierEnterprise, "cache_invalidate") {
		t.Error("enterprise tier should have cache_invalidate")
	}
	if p.IsFeatureEnabled(TierPro, "no-such-feature") {
		t.Error("unknown feature should be disabled")
	}
}
