package tokens

import (
	"database/sql"
	"fmt"
	"time"
)

// scanner abstracts over *sql.Row and *sql.Rows, both of which expose an
// identical Scan signature.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanTokenRow(row scanner) (*Token, error) {
	var t Token
	var status string
	var createdAt string
	var lastProcessedAt, activatedAt, archivedAt, belowMinScoreSince sql.NullString

	err := row.Scan(
		&t.ID, &t.TokenUID, &t.MintAddress, &t.Symbol, &t.Name, &status, &createdAt,
		&lastProcessedAt, &activatedAt, &archivedAt, &belowMinScoreSince,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan token: %w", err)
	}

	t.Status = Status(status)
	t.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.LastProcessedAt, err = parseNullTime(lastProcessedAt); err != nil {
		return nil, err
	}
	if t.ActivatedAt, err = parseNullTime(activatedAt); err != nil {
		return nil, err
	}
	if t.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
		return nil, err
	}
	if t.BelowMinScoreSince, err = parseNullTime(belowMinScoreSince); err != nil {
		return nil, err
	}
	return &t, nil
}

func scanToken(rows *sql.Rows) (*Token, error) {
	return scanTokenRow(rows)
}

func scanSnapshotRow(row scanner) (*ScoreSnapshot, error) {
	var s ScoreSnapshot
	var createdAt string
	var liquidity, txCount5m, txCount1h, vol5m, vol1h, deltaP5m, deltaP15m sql.NullFloat64
	var primaryDex, poolsJSON sql.NullString

	err := row.Scan(
		&s.ID, &s.TokenID, &createdAt, &s.ModelName,
		&s.RawTxAccel, &s.RawVolMomentum, &s.RawTokenFreshness, &s.RawOrderflowImbalance,
		&s.SmoothedTxAccel, &s.SmoothedVolMomentum, &s.SmoothedTokenFreshness, &s.SmoothedOrderflowImbalance,
		&s.RawTotal, &s.SmoothedTotal,
		&liquidity, &txCount5m, &txCount1h, &vol5m, &vol1h,
		&deltaP5m, &deltaP15m, &primaryDex, &poolsJSON,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan score snapshot: %w", err)
	}

	s.CreatedAt, err = parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse created_at: %w", err)
	}
	s.LiquidityTotalUSD = liquidity.Float64
	s.TxCount5m = txCount5m.Float64
	s.TxCount1h = txCount1h.Float64
	s.Volume5mUSD = vol5m.Float64
	s.Volume1hUSD = vol1h.Float64
	s.DeltaP5m = deltaP5m.Float64
	s.DeltaP15m = deltaP15m.Float64
	s.PrimaryDex = primaryDex.String
	s.PoolsJSON = poolsJSON.String
	return &s, nil
}

func scanSnapshot(rows *sql.Rows) (*ScoreSnapshot, error) {
	return scanSnapshotRow(rows)
}

// scanTokenWithLatest scans one row of the ListWithLatest join: the full
// token column set followed by the full snapshot column set, the latter all
// NULL when the token has never been scored.
func scanTokenWithLatest(rows *sql.Rows) (*Token, *ScoreSnapshot, error) {
	var (
		t                                                                    Token
		status, createdAt                                                   string
		lastProcessedAt, activatedAt, archivedAt, belowMinScoreSince        sql.NullString

		snapID, snapTokenID                                                 sql.NullInt64
		snapCreatedAt, snapModelName                                        sql.NullString
		rawTx, rawVol, rawFresh, rawOI                                      sql.NullFloat64
		smTx, smVol, smFresh, smOI                                          sql.NullFloat64
		rawTotal, smTotal                                                   sql.NullFloat64
		liquidity, txCount5m, txCount1h, vol5m, vol1h, deltaP5m, deltaP15m  sql.NullFloat64
		primaryDex, poolsJSON                                               sql.NullString
	)

	err := rows.Scan(
		&t.ID, &t.TokenUID, &t.MintAddress, &t.Symbol, &t.Name, &status, &createdAt,
		&lastProcessedAt, &activatedAt, &archivedAt, &belowMinScoreSince,
		&snapID, &snapTokenID, &snapCreatedAt, &snapModelName,
		&rawTx, &rawVol, &rawFresh, &rawOI,
		&smTx, &smVol, &smFresh, &smOI,
		&rawTotal, &smTotal,
		&liquidity, &txCount5m, &txCount1h, &vol5m, &vol1h,
		&deltaP5m, &deltaP15m, &primaryDex, &poolsJSON,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("scan token with latest: %w", err)
	}

	t.Status = Status(status)
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, nil, fmt.Errorf("parse created_at: %w", err)
	}
	if t.LastProcessedAt, err = parseNullTime(lastProcessedAt); err != nil {
		return nil, nil, err
	}
	if t.ActivatedAt, err = parseNullTime(activatedAt); err != nil {
		return nil, nil, err
	}
	if t.ArchivedAt, err = parseNullTime(archivedAt); err != nil {
		return nil, nil, err
	}
	if t.BelowMinScoreSince, err = parseNullTime(belowMinScoreSince); err != nil {
		return nil, nil, err
	}

	if !snapID.Valid {
		return &t, nil, nil
	}

	snap := &ScoreSnapshot{
		ID:                         snapID.Int64,
		TokenID:                    snapTokenID.Int64,
		ModelName:                  snapModelName.String,
		RawTxAccel:                 rawTx.Float64,
		RawVolMomentum:             rawVol.Float64,
		RawTokenFreshness:          rawFresh.Float64,
		RawOrderflowImbalance:      rawOI.Float64,
		SmoothedTxAccel:            smTx.Float64,
		SmoothedVolMomentum:        smVol.Float64,
		SmoothedTokenFreshness:     smFresh.Float64,
		SmoothedOrderflowImbalance: smOI.Float64,
		RawTotal:                   rawTotal.Float64,
		SmoothedTotal:              smTotal.Float64,
		LiquidityTotalUSD:          liquidity.Float64,
		TxCount5m:                  txCount5m.Float64,
		TxCount1h:                  txCount1h.Float64,
		Volume5mUSD:                vol5m.Float64,
		Volume1hUSD:                vol1h.Float64,
		DeltaP5m:                   deltaP5m.Float64,
		DeltaP15m:                  deltaP15m.Float64,
		PrimaryDex:                 primaryDex.String,
		PoolsJSON:                  poolsJSON.String,
	}
	if snap.CreatedAt, err = parseTime(snapCreatedAt.String); err != nil {
		return nil, nil, fmt.Errorf("parse snapshot created_at: %w", err)
	}
	return &t, snap, nil
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := time.Parse(timeLayout, s.String)
	if err != nil {
		return nil, fmt.Errorf("parse time %q: %w", s.String, err)
	}
	return &t, nil
}
