// Package usage tracks token consumption and cost across pipeline stages.
package usage

import "github.com/binliang/learnpilot/internal/types"

// modelPrice holds USD prices per million tokens.
type modelPrice struct {
	InputPerMillion  float64
	OutputPerMillion float64
}

// modelPrices covers the Gemini models the pipeline issues calls
// against. Unknown models fall back to defaultPrice so cost tracking
// degrades to an estimate instead of silently recording zero.
var modelPrices = map[string]modelPrice{
	"gemini-2.5-flash-lite": {InputPerMillion: 0.10, OutputPerMillion: 0.40},
	"gemini-2.5-flash":      {InputPerMillion: 0.30, OutputPerMillion: 2.50},
	"gemini-2.5-pro":        {InputPerMillion: 1.25, OutputPerMillion: 10.00},
}

var defaultPrice = modelPrice{InputPerMillion: 0.30, OutputPerMillion: 2.50}

// Cost prices one call: tokens divided by a million, times the per-model
// rate, input and output accounted separately.
func Cost(u types.Usage) float64 {
	price, ok := modelPrices[u.Model]
	if !ok {
		price = defaultPrice
	}
	in := float64(u.InputTokens) / 1_000_000 * price.InputPerMillion
	out := float64(u.OutputTokens) / 1_000_000 * price.OutputPerMillion
	return in + out
}
