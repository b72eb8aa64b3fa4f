// Package scoring implements the metrics aggregator (C3), the pure component
// calculator (C4), the EWMA smoother (C5), and the scoring model orchestrator
// (C6) described in SPEC_FULL.md §4.3-§4.6. None of these have a direct
// teacher analog (the teacher scores equities via a much larger fundamentals
// pipeline in internal/modules/evaluation); they are grounded on the
// teacher's general style for settings-driven pure functions returning plain
// structs (see internal/modules/settings/service_temperament.go's
// GetAdjustedScoringParams pattern) rather than on any specific formula.
package scoring

import (
	"time"

	"github.com/aristath/tokenpulse/internal/clients/dexscreener"
)

// launchpadFamilyDEXes are the pool venues considered "native" to the
// originating launchpad and therefore excluded from activation eligibility
// (SPEC_FULL.md §9: kept distinct from the generic liquidity dust filter).
var launchpadFamilyDEXes = map[string]bool{
	"pumpfun":   true,
	"pump":      true,
	"pumpswap":  true,
	"letsbonk":  true,
	"moonshot":  true,
}

// IsLaunchpadFamily reports whether dexID belongs to the originating
// launchpad's own AMM family.
func IsLaunchpadFamily(dexID string) bool {
	return launchpadFamilyDEXes[dexID]
}

// recognizedQuotes are the quote assets retained in the aggregator's pool
// list output (SPEC_FULL.md §4.3).
var recognizedQuotes = map[string]bool{
	"SOL": true, "WSOL": true, "USDC": true,
}

// PoolRef identifies a retained pool for display/export purposes.
type PoolRef struct {
	Dex     string
	Quote   string
	Address string
}

// FeatureVector is the aggregator's output: a single feature set describing
// all currently-retained pools for one mint.
type FeatureVector struct {
	LiquidityTotalUSD   float64
	DeltaP5m            float64
	DeltaP15m           float64
	N5m                 float64
	TxCount5m           float64
	TxCount1h           float64
	Volume5mUSD         float64
	Volume1hUSD         float64
	BuysVolume5mUSD     float64
	SellsVolume5mUSD    float64
	HoursSinceCreation  float64
	PrimaryDex          string
	HasActivatingPool   bool // a non-launchpad-family pool with liquidity >= activation threshold
	Pools               []PoolRef
}

// Aggregate reduces pool snapshots for one token into a FeatureVector
// (component C3). minPoolLiquidityUSD is the dust filter; createdAt and now
// derive hours_since_creation. activationMinLiquidityUSD flags whether any
// retained, non-launchpad-family pool qualifies the token for activation
// (consumed by the lifecycle manager, C8).
func Aggregate(pools []dexscreener.PoolSnapshot, createdAt, now time.Time, minPoolLiquidityUSD, activationMinLiquidityUSD float64) FeatureVector {
	retained := make([]dexscreener.PoolSnapshot, 0, len(pools))
	for _, p := range pools {
		if p.LiquidityUSD < minPoolLiquidityUSD {
			continue
		}
		retained = append(retained, p)
	}

	fv := FeatureVector{
		HoursSinceCreation: now.Sub(createdAt).Hours(),
	}

	if len(retained) == 0 {
		return fv
	}

	mostLiquidIdx := 0
	for i, p := range retained {
		fv.LiquidityTotalUSD += p.LiquidityUSD
		fv.TxCount5m += float64(p.TxBuys5m + p.TxSells5m)
		fv.TxCount1h += float64(p.TxBuys1h + p.TxSells1h)
		fv.Volume5mUSD += p.Volume5mUSD
		fv.Volume1hUSD += p.Volume1hUSD

		buyRatio := buySellRatio(p.TxBuys5m, p.TxSells5m)
		fv.BuysVolume5mUSD += p.Volume5mUSD * buyRatio
		fv.SellsVolume5mUSD += p.Volume5mUSD * (1 - buyRatio)

		if !IsLaunchpadFamily(p.DexID) && p.LiquidityUSD >= activationMinLiquidityUSD {
			fv.HasActivatingPool = true
		}

		if recognizedQuotes[p.QuoteSymbol] {
			fv.Pools = append(fv.Pools, PoolRef{Dex: p.DexID, Quote: p.QuoteSymbol, Address: p.PairAddress})
		}

		if p.LiquidityUSD > retained[mostLiquidIdx].LiquidityUSD {
			mostLiquidIdx = i
		}
	}

	fv.N5m = fv.TxCount5m

	primary := retained[mostLiquidIdx]
	fv.PrimaryDex = primary.DexID
	fv.DeltaP5m = primary.PriceChange5m
	if primary.PriceChange15m != 0 {
		fv.DeltaP15m = primary.PriceChange15m
	} else {
		fv.DeltaP15m = primary.PriceChange1h / 4
	}

	return fv
}

// buySellRatio apportions a pool's volume between buys and sells by
// transaction-count ratio (SPEC_FULL.md §4.3's "estimated by apportioning").
func buySellRatio(buys, sells int) float64 {
	total := buys + sells
	if total == 0 {
		return 0.5
	}
	return float64(buys) / float64(total)
}
