package settings

import (
	"fmt"
	"strconv"
)

// nonNegativeKeys lists settings whose setter must reject negative values,
// per SPEC_FULL.md §7 ("Validation failure: nonsensical setting, negative
// threshold: the setter rejects the change").
var nonNegativeKeys = map[string]bool{
	"freshness_threshold_hours":      true,
	"min_score":                      true,
	"activation_min_liquidity_usd":   true,
	"min_pool_liquidity_usd":         true,
	"archive_below_hours":            true,
	"monitoring_timeout_hours":       true,
	"hot_interval_sec":               true,
	"cold_interval_sec":              true,
	"hot_concurrency":                true,
	"cold_concurrency":               true,
	"graceful_shutdown_timeout_sec":  true,
	"dex_client_timeout_sec":         true,
	"dex_client_failure_threshold":   true,
	"dex_client_recovery_timeout_sec": true,
	"dex_client_half_open_max_calls":  true,
	"dex_client_cache_ttl_sec":        true,
	"notarb_export_interval_sec":      true,
	"notarb_top_n":                    true,
	"archive_snapshot_retention_days": true,
}

// unitIntervalKeys must parse as a float within [0, 1].
var unitIntervalKeys = map[string]bool{
	"w_tx": true, "w_vol": true, "w_fresh": true, "w_oi": true,
	"ewma_alpha": true,
}

func (s *Service) validate(key, value string) error {
	if StringSettings[key] {
		return nil
	}
	if _, isBool := SettingDefaults[key].(bool); isBool {
		if _, err := strconv.ParseBool(value); err != nil {
			return fmt.Errorf("setting %s: value %q is not a boolean: %w", key, value, err)
		}
		return nil
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return fmt.Errorf("setting %s: value %q is not numeric: %w", key, value, err)
	}
	if nonNegativeKeys[key] && f < 0 {
		return fmt.Errorf("setting %s: value %v must be non-negative", key, f)
	}
	if unitIntervalKeys[key] && (f < 0 || f > 1) {
		return fmt.Errorf("setting %s: value %v must be in [0,1]", key, f)
	}
	return nil
}

func parseFloatOrDefault(raw string, defaultValue float64) (float64, bool) {
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return defaultValue, false
	}
	return f, true
}

func parseIntOrDefault(raw string, defaultValue int) (int, bool) {
	i, err := strconv.Atoi(raw)
	if err != nil {
		return defaultValue, false
	}
	return i, true
}

func parseBoolOrDefault(raw string, defaultValue bool) (bool, bool) {
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return defaultValue, false
	}
	return b, true
}

func trimTrailingZeros(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
