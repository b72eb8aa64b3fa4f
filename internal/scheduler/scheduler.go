// Package scheduler implements the two-tier hot/cold scheduler (C9): one
// ticker-driven goroutine per group, each dispatching due tokens through a
// bounded worker pool. Grounded on internal/queue/scheduler.go's
// ticker-per-job-class goroutine shape (mutex-guarded started/stopped
// flags, a stop channel, a WaitGroup tracking goroutine lifecycle) and
// internal/work/processor.go's per-item dedup/timeout envelope
// (executeItem's context.WithTimeout wrapping, the inFlight-map dedup
// idiom) — extended here with a buffered-channel semaphore because the
// spec requires bounded *concurrent* per-token operations rather than the
// teacher's one-item-at-a-time processor.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/aristath/tokenpulse/internal/clients/dexscreener"
	"github.com/aristath/tokenpulse/internal/lifecycle"
	"github.com/aristath/tokenpulse/internal/modules/settings"
	"github.com/aristath/tokenpulse/internal/modules/tokens"
	"github.com/aristath/tokenpulse/internal/scoring"
)

// groupConfig resolves one group's current interval/concurrency from the
// settings service, re-read on every tick to support hot-reload
// (SPEC_FULL.md §4.9).
type groupConfig struct {
	interval    time.Duration
	concurrency int
}

// Scheduler runs the hot and cold groups described in SPEC_FULL.md §4.9.
type Scheduler struct {
	tokens       *tokens.Repository
	dex          *dexscreener.Client
	settings     *settings.Service
	lifecycleMgr *lifecycle.Manager
	legacyState  *scoring.LegacyState
	log          zerolog.Logger

	mu      sync.Mutex
	started bool
	stop    chan struct{}
	wg      sync.WaitGroup
}

// New builds a Scheduler wired to every component it dispatches against.
func New(tokenRepo *tokens.Repository, dex *dexscreener.Client, settingsSvc *settings.Service, lifecycleMgr *lifecycle.Manager, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		tokens:       tokenRepo,
		dex:          dex,
		settings:     settingsSvc,
		lifecycleMgr: lifecycleMgr,
		legacyState:  scoring.NewLegacyState(),
		log:          log.With().Str("component", "scheduler").Logger(),
	}
}

// Start launches the hot and cold group loops. It is a no-op if already
// started. ctx governs the lifetime of per-token operation contexts; it is
// not itself used to stop the scheduler — call Stop for that.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		s.log.Warn().Msg("scheduler already started, ignoring")
		return
	}
	s.stop = make(chan struct{})
	s.started = true

	s.wg.Add(2)
	go s.runGroup(ctx, "hot")
	go s.runGroup(ctx, "cold")
	s.log.Info().Msg("scheduler started")
}

// Stop requests a graceful shutdown: no new ticks are dispatched, and
// in-flight per-token operations are given up to graceful_shutdown_timeout_sec
// to finish before Stop returns anyway (SPEC_FULL.md §4.9).
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	close(s.stop)
	s.started = false
	timeout := time.Duration(s.settings.GetInt("graceful_shutdown_timeout_sec", 30)) * time.Second
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Msg("scheduler stopped cleanly")
	case <-time.After(timeout):
		s.log.Warn().Dur("timeout", timeout).Msg("scheduler shutdown timed out, abandoning in-flight operations")
	}
}

func (s *Scheduler) groupConfig(group string) groupConfig {
	switch group {
	case "hot":
		return groupConfig{
			interval:    time.Duration(s.settings.GetInt("hot_interval_sec", 10)) * time.Second,
			concurrency: s.settings.GetInt("hot_concurrency", 12),
		}
	default:
		return groupConfig{
			interval:    time.Duration(s.settings.GetInt("cold_interval_sec", 45)) * time.Second,
			concurrency: s.settings.GetInt("cold_concurrency", 16),
		}
	}
}

// runGroup owns one group's ticker loop. Overlapping ticks are skipped (not
// queued) and logged as a lag event; interval changes are picked up on the
// next tick boundary (hot-reload).
func (s *Scheduler) runGroup(ctx context.Context, group string) {
	defer s.wg.Done()

	cfg := s.groupConfig(group)
	ticker := time.NewTicker(cfg.interval)
	defer ticker.Stop()

	var runMu sync.Mutex
	running := false

	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			runMu.Lock()
			if running {
				runMu.Unlock()
				s.log.Warn().Str("group", group).Msg("tick lag: previous tick still running, skipping")
				continue
			}
			running = true
			runMu.Unlock()

			current := s.groupConfig(group)
			s.wg.Add(1)
			go func() {
				defer s.wg.Done()
				defer func() {
					runMu.Lock()
					running = false
					runMu.Unlock()
				}()
				s.runTick(ctx, group, current)
			}()

			if current.interval != cfg.interval {
				cfg = current
				ticker.Reset(cfg.interval)
			}
		}
	}
}

// runTick dispatches every due token in group through a bounded worker
// pool, waiting for all dispatched operations to finish before returning.
func (s *Scheduler) runTick(ctx context.Context, group string, cfg groupConfig) {
	now := time.Now()
	cutoff := now.Add(-cfg.interval)

	due, err := s.tokens.ListDue(group, cutoff, 500)
	if err != nil {
		s.log.Error().Err(err).Str("group", group).Msg("failed to list due tokens")
		return
	}
	if group == "cold" {
		minScore := s.settings.GetFloat("min_score", 0.1)
		subThreshold, err := s.tokens.ListColdSubThresholdActive(cutoff, minScore, 500)
		if err != nil {
			s.log.Error().Err(err).Str("group", group).Msg("failed to list sub-threshold active tokens")
		} else {
			due = append(due, subThreshold...)
		}
	}
	if len(due) == 0 {
		return
	}

	sem := make(chan struct{}, cfg.concurrency)
	var wg sync.WaitGroup

	for _, tok := range due {
		if !s.tokens.TryAcquire(tok.ID) {
			continue
		}

		wg.Add(1)
		sem <- struct{}{}
		go func(tok tokens.Token) {
			defer wg.Done()
			defer func() { <-sem }()
			defer s.tokens.Release(tok.ID)

			opCtx, cancel := context.WithTimeout(ctx, cfg.interval)
			defer cancel()
			s.processToken(opCtx, tok)
		}(tok)
	}

	wg.Wait()
}

// processToken runs one per-token scoring + lifecycle cycle. Any panic
// inside is recovered and logged so a poison token cannot take down the
// tick (SPEC_FULL.md §4.6's error policy / §7's per-token isolation).
func (s *Scheduler) processToken(ctx context.Context, tok tokens.Token) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Interface("panic", r).Str("mint", tok.MintAddress).Msg("per-token operation panicked, recovered")
		}
	}()

	now := time.Now()
	defer func() {
		if err := s.tokens.TouchProcessed(tok.ID, now); err != nil {
			s.log.Error().Err(err).Str("mint", tok.MintAddress).Msg("failed to touch last_processed_at")
		}
	}()

	params := s.loadScoringParams()

	pools, err := s.dex.GetPairs(ctx, tok.MintAddress)
	if err != nil {
		s.log.Warn().Err(err).Str("mint", tok.MintAddress).Msg("dex fetch failed, skipping cycle")
		return
	}
	if pools == nil {
		s.log.Debug().Str("mint", tok.MintAddress).Msg("no pool data this cycle, skipping without writing a snapshot")
		return
	}

	prev, err := s.previousState(tok.ID)
	if err != nil {
		s.log.Error().Err(err).Str("mint", tok.MintAddress).Msg("failed to load previous snapshot")
		return
	}

	result := scoring.Score(tok.MintAddress, pools, tok.CreatedAt, now, prev, params, s.legacyState)

	if _, err := s.tokens.AppendScoreSnapshot(toSnapshot(tok.ID, now, result)); err != nil {
		s.log.Error().Err(err).Str("mint", tok.MintAddress).Msg("failed to append score snapshot")
		return
	}

	lifecycleParams := lifecycle.Params{
		ActivationMinLiquidityUSD: params.ActivationMinLiquidityUSD,
		MinScore:                  s.settings.GetFloat("min_score", 0.1),
		ArchiveBelowHours:         s.settings.GetFloat("archive_below_hours", 12),
		MonitoringTimeoutHours:    s.settings.GetFloat("monitoring_timeout_hours", 12),
	}
	if err := s.lifecycleMgr.Evaluate(tok, result.Features.HasActivatingPool, result.SmoothedTotal, lifecycleParams, now); err != nil {
		s.log.Error().Err(err).Str("mint", tok.MintAddress).Msg("lifecycle evaluation failed")
	}
}

func (s *Scheduler) previousState(tokenID int64) (scoring.PreviousState, error) {
	latest, err := s.tokens.LatestSnapshot(tokenID)
	if err != nil {
		return scoring.PreviousState{}, fmt.Errorf("load latest snapshot: %w", err)
	}
	if latest == nil {
		return scoring.PreviousState{}, nil
	}
	return scoring.PreviousState{
		HasPrevious:   true,
		SmoothedTotal: latest.SmoothedTotal,
		Smoothed: scoring.ComponentVector{
			TxAccel:            latest.SmoothedTxAccel,
			VolMomentum:        latest.SmoothedVolMomentum,
			TokenFreshness:     latest.SmoothedTokenFreshness,
			OrderflowImbalance: latest.SmoothedOrderflowImbalance,
		},
	}, nil
}

func (s *Scheduler) loadScoringParams() scoring.Params {
	p := scoring.Params{
		ModelName:                   s.settings.GetString("scoring_model_active", "hybrid_momentum"),
		WeightTx:                    s.settings.GetFloat("w_tx", 0.25),
		WeightVol:                   s.settings.GetFloat("w_vol", 0.25),
		WeightFresh:                 s.settings.GetFloat("w_fresh", 0.25),
		WeightOI:                    s.settings.GetFloat("w_oi", 0.25),
		EWMAAlpha:                   s.settings.GetFloat("ewma_alpha", 0.3),
		FreshnessThresholdHours:     s.settings.GetFloat("freshness_threshold_hours", 6),
		ActivationMinLiquidityUSD:   s.settings.GetFloat("activation_min_liquidity_usd", 200),
		MinPoolLiquidityUSD:         s.settings.GetFloat("min_pool_liquidity_usd", 500),
		TxCalculationMode:           s.settings.GetString("tx_calculation_mode", "standard"),
		ArbitrageMinTx5m:            s.settings.GetFloat("arbitrage_min_tx_5m", 50),
		ArbitrageOptimalTx5m:        s.settings.GetFloat("arbitrage_optimal_tx_5m", 200),
		ArbitrageAccelerationWeight: s.settings.GetFloat("arbitrage_acceleration_weight", 0.5),
	}
	if d := p.WeightTx + p.WeightVol + p.WeightFresh + p.WeightOI - 1; d > 0.05 || d < -0.05 {
		s.log.Warn().Float64("weight_sum", d+1).Msg("hybrid component weights do not sum to 1")
	}
	return p
}

func toSnapshot(tokenID int64, now time.Time, r scoring.Result) tokens.ScoreSnapshot {
	return tokens.ScoreSnapshot{
		TokenID:   tokenID,
		CreatedAt: now,
		ModelName: r.ModelName,

		RawTxAccel:            r.Raw.TxAccel,
		RawVolMomentum:        r.Raw.VolMomentum,
		RawTokenFreshness:     r.Raw.TokenFreshness,
		RawOrderflowImbalance: r.Raw.OrderflowImbalance,

		SmoothedTxAccel:            r.Smoothed.TxAccel,
		SmoothedVolMomentum:        r.Smoothed.VolMomentum,
		SmoothedTokenFreshness:     r.Smoothed.TokenFreshness,
		SmoothedOrderflowImbalance: r.Smoothed.OrderflowImbalance,

		RawTotal:      r.RawTotal,
		SmoothedTotal: r.SmoothedTotal,

		LiquidityTotalUSD: r.Features.LiquidityTotalUSD,
		TxCount5m:         r.Features.TxCount5m,
		TxCount1h:         r.Features.TxCount1h,
		Volume5mUSD:       r.Features.Volume5mUSD,
		Volume1hUSD:       r.Features.Volume1hUSD,
		DeltaP5m:          r.Features.DeltaP5m,
		DeltaP15m:         r.Features.DeltaP15m,
		PrimaryDex:        r.Features.PrimaryDex,
		PoolsJSON:         poolsToJSON(r.Features.Pools),
	}
}
