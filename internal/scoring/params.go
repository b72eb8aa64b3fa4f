package scoring

// Params carries every settings-driven knob the scoring model needs for one
// cycle, read once per token from the settings service (C1) per
// SPEC_FULL.md §4.1/§4.6. Grounded on the teacher's settings-driven
// "params struct read once per operation" style.
type Params struct {
	ModelName string // "hybrid_momentum" | "legacy"

	WeightTx    float64
	WeightVol   float64
	WeightFresh float64
	WeightOI    float64

	EWMAAlpha float64

	FreshnessThresholdHours   float64
	ActivationMinLiquidityUSD float64
	MinPoolLiquidityUSD       float64

	TxCalculationMode        string // "standard" | "arbitrage"
	ArbitrageMinTx5m         float64
	ArbitrageOptimalTx5m     float64
	ArbitrageAccelerationWeight float64
}
