package pricing

import "math"

// usdPerCredit: 1 credit = $0.01 of upstream spend.
const usdPerCredit = 0.01

// approxCharsPerToken backs the pre-call estimate; authoritative billing
// always uses provider-reported token counts.
const approxCharsPerToken = 4

type Calculator struct {
	table *Table
}

func NewCalculator(table *Table) *Calculator {
	return &Calculator{table: table}
}

// Cost converts actual token counts into USD for a model.
func (c *Calculator) Cost(modelID string, tokensIn, tokensOut int) float64 {
	p := c.table.Profile(modelID)
	return float64(tokensIn)/1e6*p.InputPerMTok + float64(tokensOut)/1e6*p.OutputPerMTok
}

// CreditsFromUSD rounds up so the system never under-charges.
func CreditsFromUSD(usd float64) int64 {
	if usd <= 0 {
		return 0
	}
	return int64(math.Ceil(usd / usdPerCredit))
}

// Estimate approximates the cost of a call before it is made, for quota
// budgeting and UI display. Input tokens are approximated from prompt
// length; the result is advisory and never written to the ledger.
func (c *Calculator) Estimate(modelID, prompt string, expectedOutputTokens int) (usd float64, credits int64) {
	tokensIn := (len(prompt) + approxCharsPerToken - 1) / approxCharsPerToken
	usd = c.Cost(modelID, tokensIn, expectedOutputTokens)
	return usd, CreditsFromUSD(usd)
}
