package server

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/mem"

	"github.com/aristath/tokenpulse/internal/modules/tokens"
)

func (s *Server) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.log.Error().Err(err).Msg("failed to encode JSON response")
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}

// handleListTokens implements GET /api/v1/tokens -> list_with_latest
// (SPEC_FULL.md §4.7/§4.13), with status/min-score/pagination query params.
func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	filter := tokens.ListFilter{
		Status: tokens.Status(q.Get("status")),
	}
	if raw := q.Get("min_score"); raw != "" {
		if v, err := strconv.ParseFloat(raw, 64); err == nil {
			filter.MinScore = &v
		}
	}
	if raw := q.Get("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Limit = v
		}
	}
	if raw := q.Get("offset"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			filter.Offset = v
		}
	}

	rows, err := s.tokens.ListWithLatest(filter)
	if err != nil {
		s.log.Error().Err(err).Msg("list tokens failed")
		s.writeError(w, http.StatusInternalServerError, "failed to list tokens")
		return
	}
	s.writeJSON(w, http.StatusOK, rows)
}

// handleGetToken implements GET /api/v1/tokens/{mint} -> token + latest
// snapshot.
func (s *Server) handleGetToken(w http.ResponseWriter, r *http.Request) {
	mint := chi.URLParam(r, "mint")

	tok, err := s.tokens.GetTokenByMint(mint)
	if err != nil {
		s.log.Error().Err(err).Str("mint", mint).Msg("get token failed")
		s.writeError(w, http.StatusInternalServerError, "failed to load token")
		return
	}
	if tok == nil {
		s.writeError(w, http.StatusNotFound, "token not found")
		return
	}

	snap, err := s.tokens.LatestSnapshot(tok.ID)
	if err != nil {
		s.log.Error().Err(err).Str("mint", mint).Msg("get latest snapshot failed")
		s.writeError(w, http.StatusInternalServerError, "failed to load latest snapshot")
		return
	}

	s.writeJSON(w, http.StatusOK, tokens.TokenWithLatest{Token: *tok, Snapshot: snap})
}

// handleStats implements GET /api/v1/stats -> stats().
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.tokens.Stats()
	if err != nil {
		s.log.Error().Err(err).Msg("stats failed")
		s.writeError(w, http.StatusInternalServerError, "failed to compute stats")
		return
	}
	s.writeJSON(w, http.StatusOK, stats)
}

// handleGetSettings implements GET /api/v1/settings, a read-only echo of
// every known setting; no write endpoint is exposed (SPEC_FULL.md §4.13).
func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.settings.GetAll())
}

// handleRegisterMint implements POST /internal/v1/mints -> C10's
// register_mint, the documented entry point for the out-of-scope launchpad
// websocket feed producer (SPEC_FULL.md §4.10/§4.13).
func (s *Server) handleRegisterMint(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Mint             string `json:"mint"`
		SourceCreatedAt  string `json:"source_created_at,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if body.Mint == "" {
		s.writeError(w, http.StatusBadRequest, "mint is required")
		return
	}

	var createdAt time.Time
	if body.SourceCreatedAt != "" {
		parsed, err := time.Parse(time.RFC3339, body.SourceCreatedAt)
		if err != nil {
			s.writeError(w, http.StatusBadRequest, "source_created_at must be RFC3339")
			return
		}
		createdAt = parsed
	}

	id, err := s.intake.RegisterMint(body.Mint, createdAt)
	if err != nil {
		s.log.Error().Err(err).Str("mint", body.Mint).Msg("register mint failed")
		s.writeError(w, http.StatusInternalServerError, "failed to register mint")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]interface{}{"token_id": id, "mint": body.Mint})
}

// handleHealthz implements GET /healthz: process + gopsutil host diagnostics
// plus per-database QuickCheck (SPEC_FULL.md §4.13), grounded on the
// teacher's status_monitor.go/system_handlers.go gopsutil usage.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status": "ok",
	}

	if cpuPercent, err := cpu.Percent(100*time.Millisecond, false); err == nil && len(cpuPercent) > 0 {
		health["cpu_percent"] = cpuPercent[0]
	}
	if memStat, err := mem.VirtualMemory(); err == nil {
		health["mem_used_percent"] = memStat.UsedPercent
	}

	dbStatus := map[string]string{}
	status := http.StatusOK
	if err := s.tokensDB.QuickCheck(ctx); err != nil {
		dbStatus["tokens"] = "unhealthy: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		dbStatus["tokens"] = "ok"
	}
	if err := s.configDB.QuickCheck(ctx); err != nil {
		dbStatus["config"] = "unhealthy: " + err.Error()
		status = http.StatusServiceUnavailable
	} else {
		dbStatus["config"] = "ok"
	}
	health["databases"] = dbStatus

	if status != http.StatusOK {
		health["status"] = "degraded"
	}
	s.writeJSON(w, status, health)
}
