package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"

	"github.com/hospitalops/admission-api/internal/config"
	"github.com/hospitalops/admission-api/internal/handler/health"
	"github.com/hospitalops/admission-api/internal/handler/importrun"
	"github.com/hospitalops/admission-api/internal/importer"
	"github.com/hospitalops/admission-api/internal/ingest"
	"github.com/hospitalops/admission-api/internal/mapper"
	"github.com/hospitalops/admission-api/internal/pipeline"
	"github.com/hospitalops/admission-api/internal/repository/postgres"
	"github.com/hospitalops/admission-api/internal/router"
	"github.com/hospitalops/admission-api/internal/scoring"
	"github.com/hospitalops/admission-api/pkg/logger"
	"github.com/hospitalops/admission-api/pkg/metrics"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
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

	m := metrics.NewMetrics("admission_api", "import")
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

	healthHandler := health.NewHandler(db)
	importHandler := importrun.NewHandler(p, cfg.Server.MaxUploadBytes, lg)

	r := router.NewRouter(healthHandler, importHandler)
	r.Setup()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r.Engine(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("failed to start server")
		}
	}()
	log.Info().Int("port", cfg.Server.Port).Msg("server started")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server exited properly")
}
