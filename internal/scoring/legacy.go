package scoring

import (
	"math"
	"sync"

	"github.com/markcheno/go-talib"
	"gonum.org/v1/gonum/floats"
)

const (
	legacyWindowSize       = 20
	legacyLiquiditySamples = 200
	legacyEpsilon          = 1e-9
)

// LegacyState holds the per-mint rolling price-change window and the
// cross-token liquidity sample used to normalize the legacy model's "l"
// component, per SPEC_FULL.md §4.6's legacy-model detail. It is safe for
// concurrent use and is expected to be long-lived (one instance shared by
// every scoring cycle), unlike the stateless hybrid path.
type LegacyState struct {
	mu sync.Mutex

	priceChangeWindows map[string][]float64
	liquiditySamples   []float64
}

// NewLegacyState builds an empty LegacyState.
func NewLegacyState() *LegacyState {
	return &LegacyState{
		priceChangeWindows: make(map[string][]float64),
	}
}

// ScoreLegacy computes the legacy model's raw component vector for one
// token. It keeps the same ComponentVector shape as the hybrid model so C5's
// smoothing contract is unaffected (SPEC_FULL.md §4.6).
func ScoreLegacy(mint string, f FeatureVector, state *LegacyState) ComponentVector {
	if state == nil {
		state = NewLegacyState()
	}

	state.mu.Lock()
	window := append(state.priceChangeWindows[mint], f.DeltaP5m)
	if len(window) > legacyWindowSize {
		window = window[len(window)-legacyWindowSize:]
	}
	state.priceChangeWindows[mint] = window
	windowCopy := append([]float64(nil), window...)

	state.liquiditySamples = append(state.liquiditySamples, f.LiquidityTotalUSD)
	if len(state.liquiditySamples) > legacyLiquiditySamples {
		state.liquiditySamples = state.liquiditySamples[len(state.liquiditySamples)-legacyLiquiditySamples:]
	}
	liquiditySamplesCopy := append([]float64(nil), state.liquiditySamples...)
	state.mu.Unlock()

	s := legacyVolatility(windowCopy)
	l := legacyLogLiquidity(f.LiquidityTotalUSD, liquiditySamplesCopy)
	m := legacyMomentumRatio(f.DeltaP5m, f.DeltaP15m)
	t := TxAccel(f.TxCount5m, f.TxCount1h)

	return ComponentVector{
		TxAccel:            t,
		VolMomentum:        s,
		TokenFreshness:     l,
		OrderflowImbalance: m,
	}
}

// legacyVolatility is the standard deviation of the recent delta_p_5m
// window, read as the last value of go-talib's StdDev over the whole window.
func legacyVolatility(window []float64) float64 {
	if len(window) < 2 {
		return 0
	}
	out := talib.StdDev(window, len(window), 1)
	if len(out) == 0 {
		return 0
	}
	v := out[len(out)-1]
	return clampFinite(v)
}

// legacyLogLiquidity scales log1p(L_tot) into [0,1] using a min/max computed
// by gonum over the sampled liquidity population.
func legacyLogLiquidity(liquidityUSD float64, samples []float64) float64 {
	if len(samples) == 0 {
		return 0
	}
	logSamples := make([]float64, len(samples))
	for i, s := range samples {
		logSamples[i] = math.Log1p(math.Max(0, s))
	}
	lo := floats.Min(logSamples)
	hi := floats.Max(logSamples)
	if hi-lo < legacyEpsilon {
		return 0
	}
	v := (math.Log1p(math.Max(0, liquidityUSD)) - lo) / (hi - lo)
	return clampFinite(v)
}

// legacyMomentumRatio is delta_p_5m / max(delta_p_15m, epsilon).
func legacyMomentumRatio(deltaP5m, deltaP15m float64) float64 {
	denom := deltaP15m
	if math.Abs(denom) < legacyEpsilon {
		denom = legacyEpsilon
	}
	return clampFinite(deltaP5m / denom)
}
