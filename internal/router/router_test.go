package router

import (
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/promptdeck/gateway/internal/plan"
	"github.com/promptdeck/gateway/internal/pricing"
)

func testRouter(t *testing.T) *Router {
	t.Helper()
	return New(pricing.NewTable(zap.NewNop()), plan.NewPolicy(nil))
}

func TestSelectModel_AccuracyMarkersNeverSubstitute(t *testing.T) {
	r := testRouter(t)

	prompts := []string{
		"Review this legal contract for risks",
		"Summarize the medical report",
		"Check the financial statement totals",
		"This is critical production code, fix the bug",
	}
	for _, prompt := range prompts {
		d := r.SelectModel(plan.TierEnterprise, "gpt-4-turbo", prompt, 0.0)
		if d.Model != "gpt-4-turbo" {
			t.Errorf("prompt %q: accuracy-critical prompt was routed to %s", prompt, d.Model)
		}
		if d.Confidence != 0.95 {
			t.Errorf("prompt %q: confidence = %v, want 0.95", prompt, d.Confidence)
		}
		if d.EstimatedSavings != 0 {
			t.Errorf("prompt %q: savings = %v, want 0", prompt, d.EstimatedSavings)
		}
	}
}

func TestSelectModel_HighComplexityKeepsRequested(t *testing.T) {
	r := testRouter(t)

	prompt := "Provide a comprehensive and detailed breakdown of the architecture trade-offs, step by step"
	d := r.SelectModel(plan.TierEnterprise, "claude-opus-4", prompt, 0.0)

	if d.Model != "claude-opus-4" {
		t.Errorf("high-complexity prompt was routed to %s", d.Model)
	}
	if !strings.Contains(d.Reasoning, "complexity") {
		t.Errorf("reasoning should explain the complexity decision, got %q", d.Reasoning)
	}
}

func TestSelectModel_SubstitutesForTaskType(t *testing.T) {
	r := testRouter(t)

	// Two complexity terms put this just over the substitution threshold,
	// and "code" classifies it as a coding task.
	prompt := "analyze and refactor this code"
	d := r.SelectModel(plan.TierEnterprise, "gpt-4-turbo", prompt, 0.0)

	if d.Model != "claude-sonnet-4" {
		t.Errorf("coding task should substitute claude-sonnet-4, got %s", d.Model)
	}
	if d.EstimatedSavings <= 0 {
		t.Errorf("substitution should report savings, got %v", d.EstimatedSavings)
	}
	if d.Confidence != 0.85 {
		t.Errorf("confidence = %v, want 0.85", d.Confidence)
	}
}

func TestSelectModel_NoKnownSubstitutionKeepsRequested(t *testing.T) {
	r := testRouter(t)

	prompt := "derive a detailed proof of the equation"
	d := r.SelectModel(plan.TierEnterprise, "gpt-4o", prompt, 0.0)

	if d.Model != "gpt-4o" {
		t.Errorf("without a substitution entry the requested model stays, got %s", d.Model)
	}
	if d.Confidence != 0.75 {
		t.Errorf("confidence = %v, want 0.75", d.Confidence)
	}
}

func TestSelectModel_LowComplexityPicksCheapest(t *testing.T) {
	r := testRouter(t)

	d := r.SelectModel(plan.TierFree, "gpt-4-turbo", "hello there friend", 0.0)
	if d.Model != "gemini-1.5-flash" {
		t.Errorf("low preference should pick the absolute cheapest economy model, got %s", d.Model)
	}
	if d.EstimatedSavings <= 0 {
		t.Errorf("routing down from gpt-4-turbo should report savings, got %v", d.EstimatedSavings)
	}
}

func TestSelectModel_HighPreferencePicksBetterCheapModel(t *testing.T) {
	r := testRouter(t)

	d := r.SelectModel(plan.TierFree, "gpt-4-turbo", "hello there friend", 0.9)
	if d.Model != "claude-3-5-haiku" {
		t.Errorf("high preference should pick the best economy model, got %s", d.Model)
	}
}

func TestSelectModel_Deterministic(t *testing.T) {
	r := testRouter(t)

	first := r.SelectModel(plan.TierPro, "gpt-4-turbo", "translate this email to French", 0.4)
	second := r.SelectModel(plan.TierPro, "gpt-4-turbo", "translate this email to French", 0.4)

	if first != second {
		t.Errorf("identical inputs produced different decisions:\n%+v\n%+v", first, second)
	}
}

func TestSelectModel_ReasoningAlwaysPopulated(t *testing.T) {
	r := testRouter(t)

	prompts := []string{
		"Review this legal contract",
		"analyze and refactor this code",
		"hello there friend",
	}
	for _, prompt := range prompts {
		d := r.SelectModel(plan.TierPro, "gpt-4-turbo", prompt, 0.5)
		if d.Reasoning == "" {
			t.Errorf("prompt %q: reasoning must never be empty", prompt)
		}
	}
}

func TestComplexityScore_Clamped(t *testing.T) {
	// Simple terms outweigh the base score.
	low := complexityScore("briefly list what is go in one sentence")
	if low < 0 || low > 1 {
		t.Errorf("score %v out of range", low)
	}
	if low != 0 {
		t.Errorf("heavily simple prompt should clamp to 0, got %v", low)
	}

	loaded := strings.Repeat("analyze the architecture and optimize the algorithm, prove and derive trade-off decisions ", 50)
	high := complexityScore(loaded)
	if high != 1 {
		t.Errorf("heavily complex prompt should clamp to 1, got %v", high)
	}
}

func TestClassifyTasks(t *testing.T) {
	tests := []struct {
		prompt string
		want   TaskType
	}{
		{"fix the bug in this function", TaskCoding},
		{"calculate the probability", TaskMath},
		{"translate this to german", TaskTranslation},
		{"write a blog post", TaskWriting},
		{"compare these two options", TaskAnalysis},
		{"hello", TaskSimple},
	}

	for _, tt := range tests {
		tasks := classifyTasks(tt.prompt)
		if tasks[0] != tt.want {
			t.Errorf("classifyTasks(%q)[0] = %s, want %s", tt.prompt, tasks[0], tt.want)
		}
	}
}
