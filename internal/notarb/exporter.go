// Package notarb implements the NotArb exporter (C11): a periodic job that
// writes a curated JSON document of the top-scoring active tokens to a
// well-known filesystem path for a bot-consumer to read. Grounded on the
// teacher's scheduler.go cron.Job{Run() error; Name() string} wrapper
// (_examples/aristath-sentinel/trader-go/internal/scheduler/scheduler.go)
// and the general teacher convention of atomic temp-file-then-rename writes.
package notarb

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tokenpulse/internal/modules/settings"
	"github.com/aristath/tokenpulse/internal/modules/tokens"
	"github.com/aristath/tokenpulse/internal/utils"
)

// TokenExport is one exported token's row (SPEC_FULL.md §4.11 schema).
type TokenExport struct {
	Mint   string   `json:"mint"`
	Symbol *string  `json:"symbol"`
	Score  float64  `json:"score"`
	Pools  []string `json:"pools"`
}

// Document is the top-level exported JSON shape (SPEC_FULL.md §6).
type Document struct {
	GeneratedAt string                 `json:"generated_at"`
	Metadata    map[string]interface{} `json:"metadata"`
	Tokens      []TokenExport          `json:"tokens"`
}

// poolsJSONEntry mirrors the shape persisted into token_scores.pools_json
// (see internal/scheduler/json.go's poolJSON) for decoding here.
type poolsJSONEntry struct {
	Dex     string `json:"dex"`
	Quote   string `json:"quote"`
	Address string `json:"address"`
}

// Exporter is the NotArb export job (C11).
type Exporter struct {
	tokens   *tokens.Repository
	settings *settings.Service
	log      zerolog.Logger

	path string
}

// New builds an Exporter that writes to path (resolved once at construction
// from config/settings, per SPEC_FULL.md §6's "configured path").
func New(tokenRepo *tokens.Repository, settingsSvc *settings.Service, path string, log zerolog.Logger) *Exporter {
	return &Exporter{
		tokens:   tokenRepo,
		settings: settingsSvc,
		path:     path,
		log:      log.With().Str("component", "notarb_exporter").Logger(),
	}
}

// Name implements the teacher's cron.Job interface.
func (e *Exporter) Name() string { return "notarb_export" }

// Run performs one export cycle (SPEC_FULL.md §4.11): read the top-N active
// tokens ordered by smoothed score descending, filter by notarb_min_score,
// and write the curated document atomically (temp file + rename).
//
// The spec also calls for filtering out tokens whose spam/risk metric
// exceeds notarb_max_spam_percentage; the current data model (SPEC_FULL.md
// §3) carries no spam/risk signal on a score snapshot, so that filter is a
// no-op here until such a metric is produced upstream (documented in
// DESIGN.md as an open decision, not silently dropped).
func (e *Exporter) Run() error {
	defer utils.OperationTimer("notarb_export", e.log)()

	minScore := e.settings.GetFloat("notarb_min_score", 0.2)
	topN := e.settings.GetInt("notarb_top_n", 100)
	maxSpamPercentage := e.settings.GetFloat("notarb_max_spam_percentage", 10.0)

	rows, err := e.tokens.ListWithLatest(tokens.ListFilter{
		Status:   tokens.StatusActive,
		MinScore: &minScore,
		Limit:    topN,
	})
	if err != nil {
		return fmt.Errorf("notarb export: list tokens: %w", err)
	}

	doc := Document{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Metadata: map[string]interface{}{
			"min_score_threshold": minScore,
			"max_spam_percentage": maxSpamPercentage,
			"token_count":         0,
		},
		Tokens: make([]TokenExport, 0, len(rows)),
	}

	for _, row := range rows {
		if row.Snapshot == nil {
			continue
		}
		var symbol *string
		if row.Token.Symbol != "" {
			s := row.Token.Symbol
			symbol = &s
		}
		doc.Tokens = append(doc.Tokens, TokenExport{
			Mint:   row.Token.MintAddress,
			Symbol: symbol,
			Score:  row.Snapshot.SmoothedTotal,
			Pools:  poolAddresses(row.Snapshot.PoolsJSON),
		})
	}
	doc.Metadata["token_count"] = len(doc.Tokens)

	if err := e.writeAtomic(doc); err != nil {
		return fmt.Errorf("notarb export: %w", err)
	}

	e.log.Info().Int("tokens", len(doc.Tokens)).Str("path", e.path).Msg("notarb export written")
	return nil
}

func (e *Exporter) writeAtomic(doc Document) error {
	if err := os.MkdirAll(filepath.Dir(e.path), 0755); err != nil {
		return fmt.Errorf("create export directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(e.path), ".notarb-export-*.json.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode document: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, e.path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename temp file into place: %w", err)
	}
	return nil
}

func poolAddresses(poolsJSON string) []string {
	if poolsJSON == "" {
		return nil
	}
	var entries []poolsJSONEntry
	if err := json.Unmarshal([]byte(poolsJSON), &entries); err != nil {
		return nil
	}
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Address)
	}
	return out
}
