package gemini

// modelPricing is USD per one million tokens.
type modelPricing struct {
	promptPerMillion     float64
	completionPerMillion float64
}

// pricingTable holds the published per-model rates. Unknown models fall back
// to defaultPricing so cost tracking stays conservative rather than silent.
var pricingTable = map[string]modelPricing{
	"gemini-2.0-flash":      {promptPerMillion: 0.10, completionPerMillion: 0.40},
	"gemini-2.0-flash-lite": {promptPerMillion: 0.075, completionPerMillion: 0.30},
	"gemini-1.5-pro":        {promptPerMillion: 1.25, completionPerMillion: 5.00},
	"gemini-1.5-flash":      {promptPerMillion: 0.075, completionPerMillion: 0.30},
}

var defaultPricing = modelPricing{promptPerMillion: 1.25, completionPerMillion: 5.00}

// costUSD computes the dollar cost of one call.
func costUSD(model string, promptTokens, completionTokens int) float64 {
	pricing, ok := pricingTable[model]
	if !ok {
		pricing = defaultPricing
	}
	return float64(promptTokens)*pricing.promptPerMillion/1e6 +
		float64(completionTokens)*pricing.completionPerMillion/1e6
}
