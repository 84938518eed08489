package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCostUSD(t *testing.T) {
	t.Parallel()

	// gemini-2.0-flash: $0.10 / $0.40 per million tokens.
	cost := costUSD("gemini-2.0-flash", 1_000_000, 1_000_000)
	assert.InDelta(t, 0.50, cost, 1e-9)

	cost = costUSD("gemini-2.0-flash", 10_000, 2_000)
	assert.InDelta(t, 0.0018, cost, 1e-9)

	// Unknown models use the conservative default rates.
	unknown := costUSD("some-future-model", 1_000_000, 0)
	assert.InDelta(t, 1.25, unknown, 1e-9)

	assert.Zero(t, costUSD("gemini-2.0-flash", 0, 0))
}
