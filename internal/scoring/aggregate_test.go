package scoring

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aristath/tokenpulse/internal/clients/dexscreener"
)

func TestAggregate_DropsDustPools(t *testing.T) {
	now := time.Now()
	pools := []dexscreener.PoolSnapshot{
		{DexID: "raydium", QuoteSymbol: "SOL", LiquidityUSD: 10, Volume5mUSD: 1000, TxBuys5m: 10, TxSells5m: 5},
		{DexID: "raydium", QuoteSymbol: "SOL", LiquidityUSD: 5000, Volume5mUSD: 2000, TxBuys5m: 20, TxSells5m: 10},
	}

	fv := Aggregate(pools, now.Add(-time.Hour), now, 500, 200)

	assert.Equal(t, 5000.0, fv.LiquidityTotalUSD, "the 10-usd dust pool must be dropped before summation")
	assert.Len(t, fv.Pools, 1)
}

func TestAggregate_AllPoolsDustReturnsZeroVectorWithNoPrimaryDex(t *testing.T) {
	now := time.Now()
	pools := []dexscreener.PoolSnapshot{
		{DexID: "raydium", QuoteSymbol: "SOL", LiquidityUSD: 1},
	}

	fv := Aggregate(pools, now.Add(-2*time.Hour), now, 500, 200)

	assert.Equal(t, "", fv.PrimaryDex)
	assert.Equal(t, 0.0, fv.LiquidityTotalUSD)
	assert.InDelta(t, 2.0, fv.HoursSinceCreation, 0.01)
}

func TestAggregate_PrimaryDexIsMostLiquidPool(t *testing.T) {
	now := time.Now()
	pools := []dexscreener.PoolSnapshot{
		{DexID: "raydium", QuoteSymbol: "SOL", LiquidityUSD: 1000, PriceChange5m: 1},
		{DexID: "meteora", QuoteSymbol: "USDC", LiquidityUSD: 9000, PriceChange5m: 7, PriceChange15m: 14},
	}

	fv := Aggregate(pools, now.Add(-time.Hour), now, 500, 200)

	assert.Equal(t, "meteora", fv.PrimaryDex)
	assert.Equal(t, 7.0, fv.DeltaP5m)
	assert.Equal(t, 14.0, fv.DeltaP15m)
}

func TestAggregate_FallsBackToQuarterHourlyDeltaWhen15mMissing(t *testing.T) {
	now := time.Now()
	pools := []dexscreener.PoolSnapshot{
		{DexID: "raydium", QuoteSymbol: "SOL", LiquidityUSD: 1000, PriceChange1h: 8},
	}

	fv := Aggregate(pools, now.Add(-time.Hour), now, 500, 200)

	assert.InDelta(t, 2.0, fv.DeltaP15m, 1e-9)
}

func TestAggregate_HasActivatingPoolExcludesLaunchpadFamily(t *testing.T) {
	now := time.Now()
	pools := []dexscreener.PoolSnapshot{
		{DexID: "pumpfun", QuoteSymbol: "SOL", LiquidityUSD: 10000},
	}
	fv := Aggregate(pools, now.Add(-time.Minute), now, 500, 200)
	assert.False(t, fv.HasActivatingPool)

	pools = []dexscreener.PoolSnapshot{
		{DexID: "raydium", QuoteSymbol: "SOL", LiquidityUSD: 10000},
	}
	fv = Aggregate(pools, now.Add(-time.Minute), now, 500, 200)
	assert.True(t, fv.HasActivatingPool)
}

func TestAggregate_VolumeApportionedByTxRatio(t *testing.T) {
	now := time.Now()
	pools := []dexscreener.PoolSnapshot{
		{DexID: "raydium", QuoteSymbol: "SOL", LiquidityUSD: 1000, Volume5mUSD: 1000, TxBuys5m: 75, TxSells5m: 25},
	}

	fv := Aggregate(pools, now.Add(-time.Hour), now, 500, 200)

	require.InDelta(t, 750.0, fv.BuysVolume5mUSD, 1e-9)
	require.InDelta(t, 250.0, fv.SellsVolume5mUSD, 1e-9)
}

func TestAggregate_IgnoresUnrecognizedQuoteInPoolList(t *testing.T) {
	now := time.Now()
	pools := []dexscreener.PoolSnapshot{
		{DexID: "raydium", QuoteSymbol: "SHITCOIN", LiquidityUSD: 1000},
	}

	fv := Aggregate(pools, now.Add(-time.Hour), now, 500, 200)

	assert.Empty(t, fv.Pools)
	assert.Equal(t, 1000.0, fv.LiquidityTotalUSD, "unrecognized-quote pools still count toward liquidity/volume totals")
}
