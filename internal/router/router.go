// Package router picks the cheapest upstream model that still satisfies
// the quality bar for a request. The classifier is an ordered rule table,
// not a learned model: routing affects what the user is billed, so every
// decision must be reproducible and carry its reasoning.
package router

import (
	"fmt"

	"github.com/promptdeck/gateway/internal/plan"
	"github.com/promptdeck/gateway/internal/pricing"
)

// Decision is the routing outcome. Reasoning is part of the contract, not
// incidental logging.
type Decision struct {
	Model            string
	Confidence       float64
	Reasoning        string
	EstimatedSavings float64 // USD per nominal request (1k tokens in, 1k out)
}

// input carries the precomputed signals a rule may consult.
type input struct {
	requested   string
	promptLower string
	complexity  float64
	tasks       []TaskType
	accuracy    bool
	preference  float64
	allowed     []pricing.CapabilityTier
}

// rule is one (predicate, outcome) entry of the decision ladder. Rules are
// evaluated top-down; first match wins.
type rule struct {
	name    string
	matches func(in *input) bool
	decide  func(r *Router, in *input) Decision
}

type substitutionKey struct {
	Model string
	Task  TaskType
}

// substitutions maps expensive models to cheaper ones empirically known to
// match quality for a task type.
var substitutions = map[substitutionKey]string{
	{Model: "gpt-4-turbo", Task: TaskCoding}:     "claude-sonnet-4",
	{Model: "gpt-4-turbo", Task: TaskWriting}:    "gpt-4o",
	{Model: "gpt-4-turbo", Task: TaskAnalysis}:   "gpt-4o",
	{Model: "claude-opus-4", Task: TaskCoding}:   "claude-sonnet-4",
	{Model: "claude-opus-4", Task: TaskWriting}:  "claude-sonnet-4",
	{Model: "claude-opus-4", Task: TaskAnalysis}: "claude-sonnet-4",
	{Model: "gpt-4o", Task: TaskTranslation}:     "gemini-1.5-flash",
	{Model: "gemini-1.5-pro", Task: TaskCoding}:  "gemini-2.0-flash",
}

// preferenceBar splits "absolute cheapest" from "better but still cheap".
const preferenceBar = 0.5

type Router struct {
	table  *pricing.Table
	policy *plan.Policy
	rules  []rule
}

func New(table *pricing.Table, policy *plan.Policy) *Router {
	return &Router{
		table:  table,
		policy: policy,
		rules: []rule{
			{
				name: "keep-requested",
				matches: func(in *input) bool {
					return in.accuracy || in.complexity > complexityKeepAbove
				},
				decide: (*Router).keepRequested,
			},
			{
				name: "substitute",
				matches: func(in *input) bool {
					return in.complexity > complexitySubAbove
				},
				decide: (*Router).substitute,
			},
			{
				name:    "cheapest-suitable",
				matches: func(in *input) bool { return true },
				decide:  (*Router).cheapestSuitable,
			},
		},
	}
}

// SelectModel resolves the model to actually call for a request.
// Deterministic: identical inputs always produce identical decisions.
func (r *Router) SelectModel(tier plan.Tier, requestedModel, prompt string, qualityPreference float64) Decision {
	promptLower := NormalizeForSignals(prompt)
	in := &input{
		requested:   requestedModel,
		promptLower: promptLower,
		complexity:  complexityScore(promptLower),
		tasks:       classifyTasks(promptLower),
		accuracy:    hasAccuracyMarker(promptLower),
		preference:  qualityPreference,
		allowed:     r.policy.LimitsFor(tier).AllowedModelTiers,
	}

	for _, rl := range r.rules {
		if rl.matches(in) {
			return rl.decide(r, in)
		}
	}
	// Unreachable: the last rule always matches.
	return r.keepRequested(in)
}

func (r *Router) keepRequested(in *input) Decision {
	reason := fmt.Sprintf("complexity %.2f above threshold, keeping requested model", in.complexity)
	if in.accuracy {
		reason = "accuracy-critical prompt, keeping requested model"
	}
	return Decision{
		Model:      in.requested,
		Confidence: 0.95,
		Reasoning:  reason,
	}
}

func (r *Router) substitute(in *input) Decision {
	for _, task := range in.tasks {
		sub, ok := substitutions[substitutionKey{Model: in.requested, Task: task}]
		if !ok {
			continue
		}
		return Decision{
			Model:            sub,
			Confidence:       0.85,
			Reasoning:        fmt.Sprintf("%s task at complexity %.2f: %s matches %s quality at lower cost", task, in.complexity, sub, in.requested),
			EstimatedSavings: r.savings(in.requested, sub),
		}
	}
	return Decision{
		Model:      in.requested,
		Confidence: 0.75,
		Reasoning:  fmt.Sprintf("complexity %.2f but no known substitution for %s, keeping requested model", in.complexity, in.requested),
	}
}

func (r *Router) cheapestSuitable(in *input) Decision {
	candidates := r.table.InTiers(cheapTiers(in.allowed))
	if len(candidates) == 0 {
		candidates = r.table.InTiers(in.allowed)
	}
	if len(candidates) == 0 {
		return Decision{
			Model:      in.requested,
			Confidence: 0.5,
			Reasoning:  "no eligible models for plan, keeping requested model",
		}
	}

	// Candidates are sorted cheapest first. A higher preference buys the
	// best of the cheap tier instead of the floor.
	pick := candidates[0]
	why := "absolute cheapest eligible model"
	if in.preference >= preferenceBar {
		pick = candidates[len(candidates)-1]
		why = "best model within the cheapest eligible tier"
	}

	return Decision{
		Model:            pick.ModelID,
		Confidence:       0.8,
		Reasoning:        fmt.Sprintf("low complexity %.2f: %s (%s)", in.complexity, pick.ModelID, why),
		EstimatedSavings: r.savings(in.requested, pick.ModelID),
	}
}

// cheapTiers narrows the plan's allowed tiers to the economy band when
// present; premium is never a "cheapest suitable" pick.
func cheapTiers(allowed []pricing.CapabilityTier) []pricing.CapabilityTier {
	for _, t := range allowed {
		if t == pricing.TierEconomy {
			return []pricing.CapabilityTier{pricing.TierEconomy}
		}
	}
	var out []pricing.CapabilityTier
	for _, t := range allowed {
		if t != pricing.TierPremium {
			out = append(out, t)
		}
	}
	return out
}

// savings is the USD difference for a nominal 1k-in/1k-out request,
// floored at zero.
func (r *Router) savings(from, to string) float64 {
	if from == to || from == "" {
		return 0
	}
	pf := r.table.Profile(from)
	pt := r.table.Profile(to)
	const nominal = 1000.0 / 1e6
	diff := (pf.InputPerMTok+pf.OutputPerMTok)*nominal - (pt.InputPerMTok+pt.OutputPerMTok)*nominal
	if diff < 0 {
		return 0
	}
	return diff
}
