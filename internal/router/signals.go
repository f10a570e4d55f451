package router

import "strings"

// TaskType is a coarse classification of what the prompt asks for.
type TaskType string

const (
	TaskCoding      TaskType = "coding"
	TaskWriting     TaskType = "writing"
	TaskMath        TaskType = "math"
	TaskTranslation TaskType = "translation"
	TaskAnalysis    TaskType = "analysis"
	TaskSimple      TaskType = "simple"
)

// accuracyMarkers force the requested model to be kept: getting these
// wrong costs more than any routing saving.
var accuracyMarkers = []string{
	"medical", "legal", "financial", "critical",
	"diagnosis", "compliance", "regulatory", "safety",
}

// complexTerms raise the complexity score, simpleTerms lower it.
var complexTerms = []string{
	"analyze", "architecture", "optimize", "algorithm", "refactor",
	"prove", "derive", "comprehensive", "detailed", "step by step",
	"multi-step", "trade-off", "in depth",
}

var simpleTerms = []string{
	"what is", "define", "list", "summarize", "briefly",
	"short", "one sentence", "yes or no",
}

var taskKeywords = map[TaskType][]string{
	TaskCoding:      {"code", "function", "bug", "debug", "implement", "compile", "script", "api", "sql", "python", "javascript", "golang"},
	TaskMath:        {"calculate", "equation", "math", "integral", "probability", "arithmetic"},
	TaskTranslation: {"translate", "translation"},
	TaskWriting:     {"write", "essay", "blog", "story", "email", "draft", "article"},
	TaskAnalysis:    {"analyze", "analysis", "compare", "evaluate", "review", "assess"},
}

const (
	baseComplexity      = 0.2
	lengthWeight        = 0.3
	lengthSaturation    = 4000 // prompt chars at which the length signal maxes out
	keywordDelta        = 0.15
	complexityKeepAbove = 0.8
	complexitySubAbove  = 0.5
)

// NormalizeForSignals lowercases the prompt so keyword matching is
// case-insensitive.
func NormalizeForSignals(prompt string) string {
	return strings.ToLower(prompt)
}

// complexityScore derives a [0,1] score from prompt length and keyword
// signals. Deterministic by construction: same prompt, same score.
func complexityScore(promptLower string) float64 {
	score := baseComplexity

	lengthSignal := float64(len(promptLower)) / lengthSaturation
	if lengthSignal > 1 {
		lengthSignal = 1
	}
	score += lengthSignal * lengthWeight

	for _, term := range complexTerms {
		if strings.Contains(promptLower, term) {
			score += keywordDelta
		}
	}
	for _, term := range simpleTerms {
		if strings.Contains(promptLower, term) {
			score -= keywordDelta
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}

// classifyTasks returns the matched task types in declaration order, or
// [simple] when nothing matches.
func classifyTasks(promptLower string) []TaskType {
	ordered := []TaskType{TaskCoding, TaskMath, TaskTranslation, TaskWriting, TaskAnalysis}

	var tasks []TaskType
	for _, task := range ordered {
		for _, kw := range taskKeywords[task] {
			if strings.Contains(promptLower, kw) {
				tasks = append(tasks, task)
				break
			}
		}
	}
	if len(tasks) == 0 {
		return []TaskType{TaskSimple}
	}
	return tasks
}

func hasAccuracyMarker(promptLower string) bool {
	for _, marker := range accuracyMarkers {
		if strings.Contains(promptLower, marker) {
			return true
		}
	}
	return false
}
