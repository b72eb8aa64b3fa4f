// Package settings provides typed read/write access to tunable scoring and
// scheduling parameters (component C1). Settings are stored as strings in
// app_settings and parsed into their declared type on read, with a short
// in-process TTL cache so a single scoring cycle sees a consistent
// configuration snapshot.
package settings

// SettingDefaults holds the default value for every recognized setting key.
// Keys not present here still round-trip through Get/Set but have no
// documented default and no typed accessor guarantee.
var SettingDefaults = map[string]interface{}{
	// Scoring model selection
	"scoring_model_active": "hybrid_momentum", // hybrid_momentum | legacy
	"tx_calculation_mode":  "standard",        // standard | arbitrage

	// Hybrid-Momentum component weights (not renormalized; consumer warns if |sum-1| > 0.05)
	"w_tx":    0.25,
	"w_vol":   0.25,
	"w_fresh": 0.25,
	"w_oi":    0.25,

	// Smoothing
	"ewma_alpha": 0.3,

	// Thresholds
	"freshness_threshold_hours":    6.0,
	"min_score":                    0.1,
	"activation_min_liquidity_usd": 200.0,
	"min_pool_liquidity_usd":       500.0,
	"archive_below_hours":          12.0,
	"monitoring_timeout_hours":     12.0,

	// Scheduler cadence and concurrency
	"hot_interval_sec":              10,
	"cold_interval_sec":             45,
	"hot_concurrency":               12,
	"cold_concurrency":              16,
	"graceful_shutdown_timeout_sec": 30,

	// Arbitrage tx-component mode
	"arbitrage_min_tx_5m":          50.0,
	"arbitrage_optimal_tx_5m":      200.0,
	"arbitrage_acceleration_weight": 0.5,

	// NotArb exporter
	"notarb_min_score":           0.2,
	"notarb_max_spam_percentage": 10.0,
	"notarb_export_interval_sec": 30,
	"notarb_top_n":               100,
	"notarb_export_path":         "",

	// Resilient DEX client
	"dex_client_timeout_sec":          10,
	"dex_client_failure_threshold":    5,
	"dex_client_recovery_timeout_sec": 60,
	"dex_client_half_open_max_calls":  3,
	"dex_client_cache_ttl_sec":        5,
	"dex_api_key":                     "",

	// Archival
	"archive_to_s3_enabled":           false,
	"archive_snapshot_retention_days": 30,
}

// StringSettings lists keys whose value is a plain string (not numeric/bool),
// mirroring the teacher's convention of flagging non-numeric settings so the
// generic typed getters know not to attempt float/int parsing.
var StringSettings = map[string]bool{
	"scoring_model_active": true,
	"tx_calculation_mode":  true,
	"notarb_export_path":   true,
	"dex_api_key":          true,
}

// SettingDescriptions documents each key's effect for the settings read API (§4.13).
var SettingDescriptions = map[string]string{
	"scoring_model_active":            "Active scoring model: hybrid_momentum or legacy",
	"tx_calculation_mode":             "tx-component calculation mode: standard or arbitrage",
	"w_tx":                            "Hybrid model weight for tx_accel",
	"w_vol":                           "Hybrid model weight for vol_momentum",
	"w_fresh":                         "Hybrid model weight for token_freshness",
	"w_oi":                            "Hybrid model weight for orderflow_imbalance",
	"ewma_alpha":                      "EWMA smoothing coefficient, clamped to [0,1]",
	"freshness_threshold_hours":       "Hours after creation a token is considered fresh",
	"min_score":                       "Display/archival smoothed-score threshold",
	"activation_min_liquidity_usd":    "Minimum non-launchpad pool liquidity required to activate a token",
	"min_pool_liquidity_usd":          "Dust-pool liquidity filter applied before aggregation",
	"hot_interval_sec":                "Refresh cadence in seconds for the hot (active) group",
	"cold_interval_sec":               "Refresh cadence in seconds for the cold (monitoring/low-score) group",
	"hot_concurrency":                 "Bounded concurrent per-token operations for the hot group",
	"cold_concurrency":                "Bounded concurrent per-token operations for the cold group",
	"graceful_shutdown_timeout_sec":   "Seconds given to in-flight operations on shutdown",
	"archive_below_hours":             "Continuous hours below min_score before active->archived",
	"monitoring_timeout_hours":        "Hours in monitoring before archival if never activated",
	"arbitrage_min_tx_5m":             "Arbitrage-mode tx floor at 5 minutes",
	"arbitrage_optimal_tx_5m":         "Arbitrage-mode tx saturation point at 5 minutes",
	"arbitrage_acceleration_weight":   "Blend weight between saturation and acceleration terms",
	"notarb_min_score":                "Minimum smoothed score for NotArb export inclusion",
	"notarb_max_spam_percentage":      "Maximum spam/risk metric for NotArb export inclusion",
	"notarb_export_interval_sec":      "NotArb export cadence in seconds",
	"notarb_top_n":                    "Maximum tokens written to the NotArb export",
	"notarb_export_path":              "Filesystem path for the NotArb export JSON file",
	"dex_client_timeout_sec":          "HTTP client timeout for the DEX pair lookup",
	"dex_client_failure_threshold":    "Consecutive failures before the circuit breaker trips OPEN",
	"dex_client_recovery_timeout_sec": "Seconds OPEN before a HALF_OPEN probe is admitted",
	"dex_client_half_open_max_calls":  "Probe calls admitted per HALF_OPEN window",
	"dex_client_cache_ttl_sec":        "Seconds a successful pair response is cached/fallback-served",
	"dex_api_key":                     "Optional API key for the DEX pair/liquidity provider",
	"archive_to_s3_enabled":           "Enable the optional S3 cold-archive sink for pruned snapshots",
	"archive_snapshot_retention_days": "Age in days after which local snapshots become eligible for archival",
}

// SettingUpdate represents a single key/value change for the internal write path.
type SettingUpdate struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
