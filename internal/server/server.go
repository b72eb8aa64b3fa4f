// Package server implements the external read API (SPEC_FULL.md §4.13): a
// thin go-chi surface exposing C7's read paths, C1's settings echo, and C10's
// intake entry point. Grounded on the teacher's server.go chi/cors wiring,
// trimmed from dozens of portfolio/evaluation/trading handler groups down to
// the routes this spec actually names.
package server

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rs/zerolog"

	"github.com/aristath/tokenpulse/internal/database"
	"github.com/aristath/tokenpulse/internal/modules/settings"
	"github.com/aristath/tokenpulse/internal/modules/tokens"
)

// Config holds everything the server needs to wire its routes.
type Config struct {
	Log              zerolog.Logger
	TokensDB         *database.DB
	ConfigDB         *database.DB
	Tokens           *tokens.Repository
	Intake           *tokens.Intake
	Settings         *settings.Service
	Port             int
	CORSAllowOrigins []string
}

// Server is the read-API HTTP server.
type Server struct {
	router *chi.Mux
	http   *http.Server
	log    zerolog.Logger

	tokensDB *database.DB
	configDB *database.DB
	tokens   *tokens.Repository
	intake   *tokens.Intake
	settings *settings.Service
}

// New builds a Server with its route table wired.
func New(cfg Config) *Server {
	s := &Server{
		log:      cfg.Log.With().Str("component", "server").Logger(),
		tokensDB: cfg.TokensDB,
		configDB: cfg.ConfigDB,
		tokens:   cfg.Tokens,
		intake:   cfg.Intake,
		settings: cfg.Settings,
	}

	origins := cfg.CORSAllowOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(15 * time.Second))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Authorization"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/v1", func(api chi.Router) {
		api.Get("/tokens", s.handleListTokens)
		api.Get("/tokens/{mint}", s.handleGetToken)
		api.Get("/stats", s.handleStats)
		api.Get("/settings", s.handleGetSettings)
	})

	r.Route("/internal/v1", func(internal chi.Router) {
		internal.Post("/mints", s.handleRegisterMint)
	})

	s.router = r
	s.http = &http.Server{
		Addr:         ":" + strconv.Itoa(portOrDefault(cfg.Port)),
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// ListenAndServe starts the HTTP server; it blocks until the server stops or
// returns an error other than http.ErrServerClosed.
func (s *Server) ListenAndServe() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("starting HTTP server")
	if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

func portOrDefault(port int) int {
	if port <= 0 {
		return 8080
	}
	return port
}
