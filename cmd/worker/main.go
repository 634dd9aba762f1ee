package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kelseyhightower/envconfig"
	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/hospitalops/admission-api/internal/config"
	"github.com/hospitalops/admission-api/internal/importer"
	"github.com/hospitalops/admission-api/internal/ingest"
	"github.com/hospitalops/admission-api/internal/mapper"
	"github.com/hospitalops/admission-api/internal/pipeline"
	"github.com/hospitalops/admission-api/internal/repository/postgres"
	"github.com/hospitalops/admission-api/internal/scoring"
	"github.com/hospitalops/admission-api/internal/worker"
	"github.com/hospitalops/admission-api/pkg/logger"
	"github.com/hospitalops/admission-api/pkg/metrics"
)

func setupHealthCheck(lg *logger.Logger) {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	go func() {
		if err := http.ListenAndServe(":8081", mux); err != nil {
			lg.Fatal(err, "health check server failed")
		}
	}()
}

// env overrides for the worker, e.g. WORKER_DROP_DIR=/mnt/exports.
type workerEnv struct {
	DropDir      string        `envconfig:"DROP_DIR"`
	ScanInterval time.Duration `envconfig:"SCAN_INTERVAL"`
}

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	var env workerEnv
	if err := envconfig.Process("worker", &env); err != nil {
		log.Fatal().Err(err).Msg("failed to read worker environment")
	}
	if env.DropDir != "" {
		cfg.Worker.DropDir = env.DropDir
	}
	if env.ScanInterval > 0 {
		cfg.Worker.ScanInterval = env.ScanInterval
	}

	lg := logger.NewLogger(nil)

	db, err := postgres.NewDB(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	patientRepo := postgres.NewPatientRepository(db)
	bedRepo := postgres.NewBedRepository(db)
	episodeRepo := postgres.NewEpisodeRepository(db)
	serviceRepo := postgres.NewServiceRepository(db)
	visitRepo := postgres.NewServiceVisitRepository(db)
	caseRepo := postgres.NewCaseRecordRepository(db)
	userRepo := postgres.NewUserRepository(db)

	serviceCache := cache.New(cache.NoExpiration, cache.NoExpiration)
	imp := importer.NewImporter(
		patientRepo,
		bedRepo,
		episodeRepo,
		serviceRepo,
		visitRepo,
		caseRepo,
		userRepo,
		serviceCache,
		lg,
		cfg.Import.MaxReportErrors,
	)

	m := metrics.NewMetrics("admission_worker", "import")
	registry := pipeline.NewRegistry(cfg.Import.RunTTL)

	opts := []pipeline.Option{pipeline.WithMetrics(m)}
	if cfg.Scoring.Enabled {
		artifact, err := scoring.LoadArtifact(cfg.Scoring.ModelPath)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.Scoring.ModelPath).Msg("failed to load scoring model")
		}
		runner := scoring.NewRunner(episodeRepo, artifact, lg)
		opts = append(opts, pipeline.WithScoring(runner, cfg.Scoring.Threshold))
	}

	p := pipeline.New(
		ingest.NewLoader(lg),
		mapper.NewMapper(lg),
		imp,
		registry,
		cfg.Import.ProgressEvery,
		lg,
		opts...,
	)

	if err := os.MkdirAll(cfg.Worker.DropDir, 0o755); err != nil {
		log.Fatal().Err(err).Str("dir", cfg.Worker.DropDir).Msg("failed to create drop directory")
	}

	w := worker.NewImportWorker(p, cfg.Worker.DropDir, cfg.Worker.ScanInterval, lg)

	setupHealthCheck(lg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		lg.Info("shutting down...")
		cancel()
	}()

	w.Start(ctx)
}
