package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLegacyVolatility_InsufficientWindowReturnsZero(t *testing.T) {
	assert.Equal(t, 0.0, legacyVolatility([]float64{1.0}))
	assert.Equal(t, 0.0, legacyVolatility(nil))
}

func TestLegacyVolatility_ConstantWindowHasZeroVolatility(t *testing.T) {
	v := legacyVolatility([]float64{1, 1, 1, 1})
	assert.InDelta(t, 0.0, v, 1e-9)
}

func TestLegacyLogLiquidity_CollapsedRangeReturnsZero(t *testing.T) {
	v := legacyLogLiquidity(1000, []float64{1000, 1000, 1000})
	assert.Equal(t, 0.0, v)
}

func TestLegacyLogLiquidity_ScalesWithinObservedRange(t *testing.T) {
	samples := []float64{0, 10000}
	v := legacyLogLiquidity(10000, samples)
	assert.InDelta(t, 1.0, v, 1e-9)

	v = legacyLogLiquidity(0, samples)
	assert.InDelta(t, 0.0, v, 1e-9)
}

func TestLegacyMomentumRatio_DivideByNearZeroUsesEpsilon(t *testing.T) {
	v := legacyMomentumRatio(5, 0)
	assert.Greater(t, v, 0.0)
}

func TestScoreLegacy_MaintainsPerMintRollingWindow(t *testing.T) {
	state := NewLegacyState()

	for i := 0; i < legacyWindowSize+5; i++ {
		ScoreLegacy("MintA", FeatureVector{DeltaP5m: float64(i)}, state)
	}

	state.mu.Lock()
	window := state.priceChangeWindows["MintA"]
	state.mu.Unlock()

	assert.Len(t, window, legacyWindowSize, "the rolling window must stay bounded")
}
