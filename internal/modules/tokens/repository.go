package tokens

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

const timeLayout = time.RFC3339Nano

const tokensColumns = `id, token_uid, mint_address, symbol, name, status, created_at,
last_processed_at, activated_at, archived_at, below_min_score_since`

const scoresColumns = `id, token_id, created_at, model_name,
raw_tx_accel, raw_vol_momentum, raw_token_freshness, raw_orderflow_imbalance,
smoothed_tx_accel, smoothed_vol_momentum, smoothed_token_freshness, smoothed_orderflow_imbalance,
raw_total, smoothed_total,
liquidity_total_usd, tx_count_5m, tx_count_1h, volume_5m_usd, volume_1h_usd,
delta_p_5m, delta_p_15m, primary_dex, pools_json`

// Repository is the token repository (C7): the exclusive owner of token and
// score-snapshot persistence. All other components receive identifiers and
// read prior snapshots through this repository, never touching storage
// directly (SPEC_FULL.md §3).
type Repository struct {
	db  *sql.DB
	log zerolog.Logger

	// inFlight deduplicates per-tick dispatch for the same token, the same
	// idiom as the teacher's work processor FIFO dedup guard (SPEC_FULL.md §5).
	mu       sync.Mutex
	inFlight map[int64]struct{}
}

// NewRepository builds a Repository bound to the tokens.db connection.
func NewRepository(db *sql.DB, log zerolog.Logger) *Repository {
	return &Repository{
		db:       db,
		log:      log.With().Str("repo", "tokens").Logger(),
		inFlight: make(map[int64]struct{}),
	}
}

// UpsertToken inserts a token if its mint is unseen, or is a no-op if it
// already exists (register_mint's idempotency contract, SPEC_FULL.md §4.10).
// It always returns the token's id.
func (r *Repository) UpsertToken(mint string, initialStatus Status, createdAt time.Time) (int64, error) {
	mint = strings.TrimSpace(mint)
	if mint == "" {
		return 0, fmt.Errorf("upsert token: mint address is required")
	}

	if existing, err := r.GetTokenByMint(mint); err != nil {
		return 0, err
	} else if existing != nil {
		return existing.ID, nil
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	result, err := tx.Exec(
		`INSERT INTO tokens (token_uid, mint_address, status, created_at) VALUES (?, ?, ?, ?)`,
		uuid.NewString(), mint, string(initialStatus), createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return 0, fmt.Errorf("insert token: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("read inserted token id: %w", err)
	}

	r.log.Info().Str("mint", mint).Int64("token_id", id).Msg("token registered")
	return id, nil
}

// GetToken returns a token by surrogate id, or nil if not found.
func (r *Repository) GetToken(id int64) (*Token, error) {
	row := r.db.QueryRow(`SELECT `+tokensColumns+` FROM tokens WHERE id = ?`, id)
	return scanTokenRow(row)
}

// GetTokenByMint returns a token by mint address, or nil if not found.
func (r *Repository) GetTokenByMint(mint string) (*Token, error) {
	row := r.db.QueryRow(`SELECT `+tokensColumns+` FROM tokens WHERE mint_address = ?`, strings.TrimSpace(mint))
	return scanTokenRow(row)
}

// SetStatus transitions a token's status and stamps the matching timestamp
// column (activated_at/archived_at), per C8's audit-trail requirement.
func (r *Repository) SetStatus(tokenID int64, newStatus Status, at time.Time) error {
	ts := at.UTC().Format(timeLayout)

	var query string
	switch newStatus {
	case StatusActive:
		query = `UPDATE tokens SET status = ?, activated_at = ? WHERE id = ?`
	case StatusArchived:
		query = `UPDATE tokens SET status = ?, archived_at = ? WHERE id = ?`
	default:
		query = `UPDATE tokens SET status = ? WHERE id = ?`
	}

	var args []interface{}
	if newStatus == StatusActive || newStatus == StatusArchived {
		args = []interface{}{string(newStatus), ts, tokenID}
	} else {
		args = []interface{}{string(newStatus), tokenID}
	}

	if _, err := r.db.Exec(query, args...); err != nil {
		return fmt.Errorf("set status: %w", err)
	}
	r.log.Debug().Int64("token_id", tokenID).Str("status", string(newStatus)).Msg("status transition")
	return nil
}

// SetBelowMinScoreSince updates (or clears, when at is nil) the token's
// continuous sub-threshold run start, used by the low-score archival rule.
func (r *Repository) SetBelowMinScoreSince(tokenID int64, at *time.Time) error {
	var value interface{}
	if at != nil {
		value = at.UTC().Format(timeLayout)
	}
	_, err := r.db.Exec(`UPDATE tokens SET below_min_score_since = ? WHERE id = ?`, value, tokenID)
	if err != nil {
		return fmt.Errorf("set below_min_score_since: %w", err)
	}
	return nil
}

// TouchProcessed updates last_processed_at, called whether or not a
// scoring cycle produced a snapshot (SPEC_FULL.md §4.6 step 2/7).
func (r *Repository) TouchProcessed(tokenID int64, at time.Time) error {
	_, err := r.db.Exec(`UPDATE tokens SET last_processed_at = ? WHERE id = ?`, at.UTC().Format(timeLayout), tokenID)
	if err != nil {
		return fmt.Errorf("touch processed: %w", err)
	}
	return nil
}

// AppendScoreSnapshot is an atomic insert of one immutable score snapshot
// row (SPEC_FULL.md §4.7's "append_score_snapshot is an atomic insert").
func (r *Repository) AppendScoreSnapshot(s ScoreSnapshot) (int64, error) {
	result, err := r.db.Exec(
		`INSERT INTO token_scores (`+scoresColumns[4:]+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		s.TokenID, s.CreatedAt.UTC().Format(timeLayout), s.ModelName,
		s.RawTxAccel, s.RawVolMomentum, s.RawTokenFreshness, s.RawOrderflowImbalance,
		s.SmoothedTxAccel, s.SmoothedVolMomentum, s.SmoothedTokenFreshness, s.SmoothedOrderflowImbalance,
		s.RawTotal, s.SmoothedTotal,
		nullFloat64(s.LiquidityTotalUSD), nullFloat64(s.TxCount5m), nullFloat64(s.TxCount1h),
		nullFloat64(s.Volume5mUSD), nullFloat64(s.Volume1hUSD),
		nullFloat64(s.DeltaP5m), nullFloat64(s.DeltaP15m), nullString(s.PrimaryDex), nullString(s.PoolsJSON),
	)
	if err != nil {
		return 0, fmt.Errorf("append score snapshot: %w", err)
	}
	return result.LastInsertId()
}

// LatestSnapshot returns the most recent score snapshot for a token, or nil
// if the token has never been scored.
func (r *Repository) LatestSnapshot(tokenID int64) (*ScoreSnapshot, error) {
	row := r.db.QueryRow(
		`SELECT `+scoresColumns+` FROM token_scores WHERE token_id = ? ORDER BY created_at DESC, id DESC LIMIT 1`,
		tokenID,
	)
	return scanSnapshotRow(row)
}

// ListDue returns tokens due for scoring in the given group, per
// SPEC_FULL.md §4.7's hot/cold selection rule: a token is due once
// last_processed_at is older than the group's interval, i.e.
// last_processed_at <= cutoff where cutoff = now - interval. Callers must
// resolve cutoff themselves (see internal/scheduler's groupConfig.interval);
// this repository has no notion of interval. It never excludes a due token
// twice across concurrent callers but may over-include; callers
// de-duplicate in-flight dispatch via TryAcquire/Release.
func (r *Repository) ListDue(group string, cutoff time.Time, limit int) ([]Token, error) {
	var query string
	switch group {
	case "hot":
		query = `SELECT ` + tokensColumns + ` FROM tokens
			WHERE status = 'active'
			AND (last_processed_at IS NULL OR last_processed_at <= ?)
			ORDER BY last_processed_at ASC NULLS FIRST
			LIMIT ?`
	case "cold":
		query = `SELECT ` + tokensColumns + ` FROM tokens
			WHERE status = 'monitoring'
			AND (last_processed_at IS NULL OR last_processed_at <= ?)
			ORDER BY last_processed_at ASC NULLS FIRST
			LIMIT ?`
	default:
		return nil, fmt.Errorf("list due: unknown group %q", group)
	}

	rows, err := r.db.Query(query, cutoff.UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("list due (%s): %w", group, err)
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan due token: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ListColdSubThresholdActive returns active tokens whose latest smoothed
// score sits below minScore and are due for a cold-group refresh, the
// second half of the "cold" group definition (SPEC_FULL.md §4.7). cutoff is
// the caller-resolved now - cold_interval_sec, same convention as ListDue.
func (r *Repository) ListColdSubThresholdActive(cutoff time.Time, minScore float64, limit int) ([]Token, error) {
	query := `SELECT ` + prefixedTokensColumns("t") + ` FROM tokens t
		JOIN (
			SELECT token_id, smoothed_total
			FROM token_scores ts1
			WHERE ts1.created_at = (
				SELECT MAX(ts2.created_at) FROM token_scores ts2 WHERE ts2.token_id = ts1.token_id
			)
		) latest ON latest.token_id = t.id
		WHERE t.status = 'active'
		AND latest.smoothed_total < ?
		AND (t.last_processed_at IS NULL OR t.last_processed_at <= ?)
		LIMIT ?`

	rows, err := r.db.Query(query, minScore, cutoff.UTC().Format(timeLayout), limit)
	if err != nil {
		return nil, fmt.Errorf("list cold sub-threshold active: %w", err)
	}
	defer rows.Close()

	var out []Token
	for rows.Next() {
		t, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan sub-threshold token: %w", err)
		}
		out = append(out, *t)
	}
	return out, rows.Err()
}

// ListWithLatest is the public read path (SPEC_FULL.md §4.7), joining each
// matching token with its latest snapshot.
func (r *Repository) ListWithLatest(filter ListFilter) ([]TokenWithLatest, error) {
	query := `SELECT ` + prefixedTokensColumns("t") + `, ` + prefixedScoresColumns("ts") + `
		FROM tokens t
		LEFT JOIN token_scores ts ON ts.id = (
			SELECT id FROM token_scores WHERE token_id = t.id ORDER BY created_at DESC, id DESC LIMIT 1
		)
		WHERE 1=1`

	var args []interface{}
	if filter.Status != "" {
		query += ` AND t.status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.MinScore != nil {
		query += ` AND ts.smoothed_total >= ?`
		args = append(args, *filter.MinScore)
	}
	query += ` ORDER BY ts.smoothed_total DESC NULLS LAST`

	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}
	query += ` LIMIT ? OFFSET ?`
	args = append(args, limit, filter.Offset)

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list with latest: %w", err)
	}
	defer rows.Close()

	var out []TokenWithLatest
	for rows.Next() {
		tok, snap, err := scanTokenWithLatest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token with latest: %w", err)
		}
		out = append(out, TokenWithLatest{Token: *tok, Snapshot: snap})
	}
	return out, rows.Err()
}

// Stats returns the token-count breakdown by status.
func (r *Repository) Stats() (Stats, error) {
	var s Stats
	row := r.db.QueryRow(`
		SELECT
			SUM(CASE WHEN status = 'active' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'monitoring' THEN 1 ELSE 0 END),
			SUM(CASE WHEN status = 'archived' THEN 1 ELSE 0 END),
			COUNT(*)
		FROM tokens`)

	var active, monitoring, archived sql.NullInt64
	if err := row.Scan(&active, &monitoring, &archived, &s.Total); err != nil {
		return Stats{}, fmt.Errorf("stats: %w", err)
	}
	s.Active = int(active.Int64)
	s.Monitoring = int(monitoring.Int64)
	s.Archived = int(archived.Int64)
	return s, nil
}

// PruneSnapshots deletes score snapshots older than olderThan, returning the
// number of rows removed (SPEC_FULL.md §4.7's addition supporting §4.12's
// archive sink and the retention-window mention in §3).
func (r *Repository) PruneSnapshots(olderThan time.Time) (int, error) {
	result, err := r.db.Exec(`DELETE FROM token_scores WHERE created_at < ?`, olderThan.UTC().Format(timeLayout))
	if err != nil {
		return 0, fmt.Errorf("prune snapshots: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("read rows affected: %w", err)
	}
	r.log.Info().Int64("rows", affected).Time("older_than", olderThan).Msg("pruned score snapshots")
	return int(affected), nil
}

// SnapshotsOlderThan returns snapshots older than cutoff for archival
// batching by C4.12, oldest first, capped at limit.
func (r *Repository) SnapshotsOlderThan(cutoff time.Time, limit int) ([]ScoreSnapshot, error) {
	rows, err := r.db.Query(
		`SELECT `+scoresColumns+` FROM token_scores WHERE created_at < ? ORDER BY created_at ASC LIMIT ?`,
		cutoff.UTC().Format(timeLayout), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("snapshots older than: %w", err)
	}
	defer rows.Close()

	var out []ScoreSnapshot
	for rows.Next() {
		s, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// TryAcquire claims the in-flight guard for tokenID, returning false if
// another goroutine already holds it this tick (SPEC_FULL.md §5's
// "C7 deduplicates" dispatch guarantee). Release must be called once the
// per-token operation completes.
func (r *Repository) TryAcquire(tokenID int64) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.inFlight[tokenID]; busy {
		return false
	}
	r.inFlight[tokenID] = struct{}{}
	return true
}

// Release frees the in-flight guard claimed by TryAcquire.
func (r *Repository) Release(tokenID int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, tokenID)
}

func prefixedTokensColumns(alias string) string {
	cols := strings.Split(strings.Join(strings.Fields(tokensColumns), " "), ", ")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSuffix(c, ",")
	}
	return strings.Join(cols, ", ")
}

func prefixedScoresColumns(alias string) string {
	cols := strings.Split(strings.Join(strings.Fields(scoresColumns), " "), ", ")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSuffix(c, ",")
	}
	return strings.Join(cols, ", ")
}

func nullFloat64(f float64) sql.NullFloat64 {
	if f == 0 {
		return sql.NullFloat64{Valid: false}
	}
	return sql.NullFloat64{Float64: f, Valid: true}
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}
