package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Params are the sampling parameters that change a model's output and so
// must be part of the fingerprint.
type Params struct {
	MaxTokens   int
	Temperature float64
}

// Fingerprint derives the deterministic cache key for a request. The
// prompt is normalized first so whitespace and casing differences map to
// the same entry.
func Fingerprint(model, prompt string, params Params) string {
	h := sha256.New()
	h.Write([]byte(model))
	h.Write([]byte{0})
	h.Write([]byte(NormalizePrompt(prompt)))
	h.Write([]byte{0})
	fmt.Fprintf(h, "%d:%.3f", params.MaxTokens, params.Temperature)
	return hex.EncodeToString(h.Sum(nil))
}

// NormalizePrompt collapses runs of whitespace and lowercases the text.
func NormalizePrompt(prompt string) string {
	return strings.ToLower(strings.Join(strings.Fields(prompt), " "))
}
