package scoring

import (
	"time"

	"github.com/aristath/tokenpulse/internal/clients/dexscreener"
)

// PreviousState is the prior cycle's persisted smoothed vector/total for one
// token, as read from its latest score snapshot (C7). HasPrevious is false
// on a token's first scored cycle (cold start, SPEC_FULL.md §4.5).
type PreviousState struct {
	Smoothed      ComponentVector
	SmoothedTotal float64
	HasPrevious   bool
}

// Result is everything C6 produces for one scoring cycle: the raw and
// smoothed component vectors, both totals, the aggregated feature vector
// persisted alongside them, and the model name used — the full shape of a
// score snapshot (SPEC_FULL.md §3 "Score snapshot").
type Result struct {
	ModelName     string
	Raw           ComponentVector
	Smoothed      ComponentVector
	RawTotal      float64
	SmoothedTotal float64
	Features      FeatureVector
}

// Score runs one full scoring cycle for a token (C6): C3 aggregation, C4
// component computation (hybrid or legacy per params.ModelName), and C5
// smoothing against prev. pools is the DEX client's response for this mint;
// a nil/empty slice is valid and yields a feature vector with no pool-derived
// activity: tx, volume and orderflow components are 0, while token_freshness
// still follows the token's age.
//
// Score never returns an error: per SPEC_FULL.md §4.6's error policy, any
// failure to compute is the caller's responsibility to catch around this
// call (components here are total functions over their inputs, so there is
// nothing for Score itself to fail on) — callers still wrap this call so a
// future addition to the pipeline can't silently break the scheduler.
func Score(mint string, pools []dexscreener.PoolSnapshot, createdAt, now time.Time, prev PreviousState, params Params, legacyState *LegacyState) Result {
	features := Aggregate(pools, createdAt, now, params.MinPoolLiquidityUSD, params.ActivationMinLiquidityUSD)

	var raw ComponentVector
	if params.ModelName == "legacy" {
		raw = ScoreLegacy(mint, features, legacyState)
	} else {
		raw = scoreHybrid(features, params)
	}

	rawTotal := params.WeightTx*raw.TxAccel +
		params.WeightVol*raw.VolMomentum +
		params.WeightFresh*raw.TokenFreshness +
		params.WeightOI*raw.OrderflowImbalance

	var previous *ComponentVector
	if prev.HasPrevious {
		previous = &prev.Smoothed
	}
	smoothed, smoothedTotal := Smooth(raw, rawTotal, previous, prev.SmoothedTotal, prev.HasPrevious, params.EWMAAlpha)

	return Result{
		ModelName:     params.ModelName,
		Raw:           raw,
		Smoothed:      smoothed,
		RawTotal:      rawTotal,
		SmoothedTotal: smoothedTotal,
		Features:      features,
	}
}

// scoreHybrid computes the four Hybrid-Momentum raw components for the
// default model, honoring the tx-calculation mode (SPEC_FULL.md §4.4/§9).
func scoreHybrid(f FeatureVector, params Params) ComponentVector {
	var tx float64
	if params.TxCalculationMode == "arbitrage" {
		tx = ArbitrageTxAccel(f.TxCount5m, f.TxCount1h, params.ArbitrageOptimalTx5m, params.ArbitrageAccelerationWeight)
	} else {
		tx = TxAccel(f.TxCount5m, f.TxCount1h)
	}

	return ComponentVector{
		TxAccel:            tx,
		VolMomentum:        VolMomentum(f.Volume5mUSD, f.Volume1hUSD),
		TokenFreshness:     TokenFreshness(f.HoursSinceCreation, params.FreshnessThresholdHours),
		OrderflowImbalance: OrderflowImbalance(f.BuysVolume5mUSD, f.SellsVolume5mUSD),
	}
}
