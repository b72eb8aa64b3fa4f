// Package main is the entry point for the token activity-scoring service.
// It wires the settings provider (C1), resilient DEX client (C2), scoring
// model (C3-C6), token repository (C7), lifecycle manager (C8), two-tier
// scheduler (C9), token intake (C10), NotArb exporter (C11), the optional S3
// archive sink (C12), and the external read API (C13) into one process, then
// waits for a shutdown signal and drains gracefully.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/rs/zerolog"

	"github.com/aristath/tokenpulse/internal/archive"
	"github.com/aristath/tokenpulse/internal/clients/dexscreener"
	"github.com/aristath/tokenpulse/internal/config"
	"github.com/aristath/tokenpulse/internal/cronjobs"
	"github.com/aristath/tokenpulse/internal/database"
	"github.com/aristath/tokenpulse/internal/lifecycle"
	"github.com/aristath/tokenpulse/internal/modules/settings"
	"github.com/aristath/tokenpulse/internal/modules/tokens"
	"github.com/aristath/tokenpulse/internal/notarb"
	"github.com/aristath/tokenpulse/internal/scheduler"
	"github.com/aristath/tokenpulse/internal/server"
	"github.com/aristath/tokenpulse/internal/utils"
	"github.com/aristath/tokenpulse/pkg/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fallbackLog := logger.New(logger.Config{Level: "info", Pretty: true})
		fallbackLog.Fatal().Err(err).Msg("failed to load configuration")
		return
	}

	log := logger.New(logger.Config{Level: cfg.LogLevel, Pretty: cfg.LogPretty})
	logger.SetGlobalLogger(log)
	log.Info().Msg("starting tokenpulse")

	configDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/config.db",
		Profile: database.ProfileStandard,
		Name:    "config",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open config database")
	}
	defer configDB.Close()
	if err := configDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate config database")
	}

	tokensDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/tokens.db",
		Profile: database.ProfileStandard,
		Name:    "tokens",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open tokens database")
	}
	defer tokensDB.Close()
	if err := tokensDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate tokens database")
	}

	cacheDB, err := database.New(database.Config{
		Path:    cfg.DataDir + "/cache.db",
		Profile: database.ProfileCache,
		Name:    "cache",
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to open cache database")
	}
	defer cacheDB.Close()
	if err := cacheDB.Migrate(); err != nil {
		log.Fatal().Err(err).Msg("failed to migrate cache database")
	}

	settingsRepo := settings.NewRepository(configDB.Conn(), log)
	settingsSvc := settings.NewService(settingsRepo, log)

	if err := cfg.UpdateFromSettings(settingsRepo); err != nil {
		log.Warn().Err(err).Msg("failed to update configuration from settings database")
	}

	dexClient := dexscreener.NewClient(dexscreener.Config{
		BaseURL:          cfg.DexAPIBaseURL,
		APIKey:           cfg.DexAPIKey,
		Timeout:          time.Duration(settingsSvc.GetInt("dex_client_timeout_sec", 10)) * time.Second,
		FailureThreshold: settingsSvc.GetInt("dex_client_failure_threshold", 5),
		RecoveryTimeout:  time.Duration(settingsSvc.GetInt("dex_client_recovery_timeout_sec", 60)) * time.Second,
		HalfOpenMaxCalls: settingsSvc.GetInt("dex_client_half_open_max_calls", 3),
		CacheTTL:         time.Duration(settingsSvc.GetInt("dex_client_cache_ttl_sec", 5)) * time.Second,
	}, log)

	tokenRepo := tokens.NewRepository(tokensDB.Conn(), log)
	intake := tokens.NewIntake(tokenRepo)
	lifecycleMgr := lifecycle.NewManager(tokenRepo, log)

	sched := scheduler.New(tokenRepo, dexClient, settingsSvc, lifecycleMgr, log)

	cronSched := cronjobs.New(log)

	exporter := notarb.New(tokenRepo, settingsSvc, cfg.NotArbExportPath, log)
	if err := cronSched.AddJob("*/30 * * * * *", exporter); err != nil {
		log.Fatal().Err(err).Msg("failed to register notarb export job")
	}

	if cfg.S3ArchiveBucket != "" {
		sink, err := buildArchiveSink(tokenRepo, settingsSvc, cfg, log)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to build archive sink")
		}
		if err := cronSched.AddJob("0 0 3 * * *", sink); err != nil {
			log.Fatal().Err(err).Msg("failed to register archive sink job")
		}
	} else {
		log.Info().Msg("S3 archive sink disabled: no bucket configured")
	}

	httpServer := server.New(server.Config{
		Log:              log,
		TokensDB:         tokensDB,
		ConfigDB:         configDB,
		Tokens:           tokenRepo,
		Intake:           intake,
		Settings:         settingsSvc,
		Port:             cfg.Port,
		CORSAllowOrigins: utils.ParseCSV(cfg.CORSAllowOrigins),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.SchedulerEnabled {
		sched.Start(ctx)
		cronSched.Start()
	} else {
		log.Warn().Msg("scheduler disabled via configuration")
	}

	go func() {
		if err := httpServer.ListenAndServe(); err != nil {
			log.Fatal().Err(err).Msg("HTTP server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutdown signal received")

	if cfg.SchedulerEnabled {
		cronSched.Stop()
		sched.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown error")
	}

	log.Info().Msg("tokenpulse stopped")
}

// buildArchiveSink constructs the optional S3 archive sink (C4.12) from an
// aws-sdk-go-v2 manager.Uploader built against the default credential chain.
func buildArchiveSink(tokenRepo *tokens.Repository, settingsSvc *settings.Service, cfg *config.Config, log zerolog.Logger) (*archive.Sink, error) {
	awsCfg, err := awsconfig.LoadDefaultConfig(context.Background(), awsconfig.WithRegion(cfg.S3ArchiveRegion))
	if err != nil {
		return nil, err
	}
	s3Client := s3.NewFromConfig(awsCfg)
	uploader := manager.NewUploader(s3Client)
	return archive.NewSink(tokenRepo, settingsSvc, uploader, cfg.S3ArchiveBucket, "archive", log), nil
}
