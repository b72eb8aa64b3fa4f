package scheduler

import (
	"encoding/json"

	"github.com/aristath/tokenpulse/internal/scoring"
)

type poolJSON struct {
	Dex     string `json:"dex"`
	Quote   string `json:"quote"`
	Address string `json:"address"`
}

// poolsToJSON renders a feature vector's pool list into the token_scores
// table's pools_json column shape (SPEC_FULL.md §3's "pool list").
func poolsToJSON(pools []scoring.PoolRef) string {
	if len(pools) == 0 {
		return "[]"
	}
	out := make([]poolJSON, len(pools))
	for i, p := range pools {
		out[i] = poolJSON{Dex: p.Dex, Quote: p.Quote, Address: p.Address}
	}
	b, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(b)
}
