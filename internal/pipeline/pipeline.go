package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/hospitalops/admission-api/internal/importer"
	"github.com/hospitalops/admission-api/internal/ingest"
	"github.com/hospitalops/admission-api/internal/mapper"
	"github.com/hospitalops/admission-api/internal/model"
	"github.com/hospitalops/admission-api/internal/scoring"
	"github.com/hospitalops/admission-api/pkg/logger"
	"github.com/hospitalops/admission-api/pkg/metrics"
)

// Pipeline runs the full reconciliation flow: load the four exports,
// normalize, combine, map, persist, then optionally score the stay
// statistics. One Pipeline serves many runs; per-run state lives in
// the registry.
type Pipeline struct {
	loader   *ingest.Loader
	mapper   *mapper.Mapper
	importer *importer.Importer
	scorer   *scoring.Runner

	registry      *Registry
	metrics       *metrics.Metrics
	log           *logger.Logger
	progressEvery int
	threshold     *float64
}

type Option func(*Pipeline)

// WithScoring attaches the scoring pass. A non-positive threshold
// defers to the model artifact's own.
func WithScoring(runner *scoring.Runner, threshold float64) Option {
	return func(p *Pipeline) {
		p.scorer = runner
		if threshold > 0 {
			p.threshold = &threshold
		}
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

func New(
	loader *ingest.Loader,
	mp *mapper.Mapper,
	imp *importer.Importer,
	registry *Registry,
	progressEvery int,
	log *logger.Logger,
	opts ...Option,
) *Pipeline {
	p := &Pipeline{
		loader:        loader,
		mapper:        mp,
		importer:      imp,
		registry:      registry,
		progressEvery: progressEvery,
		log:           log,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Registry exposes the run registry for the HTTP surface.
func (p *Pipeline) Registry() *Registry { return p.registry }

// NewRun registers a pending run without starting it.
func (p *Pipeline) NewRun() *model.ImportRun { return p.registry.Create() }

// Run executes the pipeline for one set of source files, updating the
// given run as it goes. It returns the final report; failures before
// the import stage mark the run failed and return the error.
func (p *Pipeline) Run(ctx context.Context, run *model.ImportRun, files map[ingest.Source]ingest.File) (*model.ImportReport, error) {
	start := time.Now()
	p.registry.markRunning(run)
	if p.metrics != nil {
		p.metrics.ActiveRuns.Inc()
		defer p.metrics.ActiveRuns.Dec()
	}
	p.log.Info("import run started", "run", run.ID)

	tables, err := p.loader.Load(files)
	if err != nil {
		return p.fail(run, fmt.Errorf("failed to load sources: %w", err))
	}
	for _, t := range tables {
		ingest.Normalize(t)
	}

	combined, err := ingest.Combine(tables)
	if err != nil {
		return p.fail(run, fmt.Errorf("failed to combine sources: %w", err))
	}
	run.TotalRows = combined.Len()
	p.registry.put(run)

	mapped := p.mapper.MapAll(combined)

	report := p.importer.ImportAll(ctx, mapped, func(processed int) {
		if p.metrics != nil {
			p.metrics.RowsProcessed.Inc()
		}
		if p.progressEvery > 0 && processed%p.progressEvery == 0 {
			p.registry.progress(run, processed)
			p.log.Debug("import progress", "run", run.ID, "processed", processed)
		}
	})

	if p.scorer != nil {
		scored, err := p.score(ctx, tables[ingest.SourceGRD])
		if err != nil {
			// Scoring is best effort on top of a finished import; the
			// run still completes with the import report.
			p.log.Error(err, "scoring pass failed", "run", run.ID)
			report.Errors = append(report.Errors, fmt.Sprintf("scoring failed: %v", err))
		} else {
			report.ScoredEpisodes = scored
		}
	}

	p.observe(report, time.Since(start))
	p.registry.markCompleted(run, report)
	p.log.Info("import run completed",
		"run", run.ID,
		"processed", report.Summary.TotalProcessed,
		"errors", report.Summary.TotalErrors,
		"scored", report.ScoredEpisodes,
	)
	return report, nil
}

func (p *Pipeline) score(ctx context.Context, grd *ingest.Table) (int, error) {
	start := time.Now()
	scored, flagged, err := p.scorer.Score(ctx, grd, p.threshold)
	if err != nil {
		return 0, err
	}
	if p.metrics != nil {
		p.metrics.ScoredEpisodes.Add(float64(scored))
		p.metrics.ExtendedStayFlags.Add(float64(flagged))
		p.metrics.ScoringDuration.Observe(time.Since(start).Seconds())
	}
	return scored, nil
}

func (p *Pipeline) fail(run *model.ImportRun, err error) (*model.ImportReport, error) {
	if p.metrics != nil {
		p.metrics.ImportRuns.WithLabelValues(model.RunStatusFailed).Inc()
	}
	p.registry.markFailed(run, err)
	p.log.Error(err, "import run failed", "run", run.ID)
	return nil, err
}

func (p *Pipeline) observe(report *model.ImportReport, elapsed time.Duration) {
	if p.metrics == nil {
		return
	}
	p.metrics.ImportRuns.WithLabelValues(model.RunStatusCompleted).Inc()
	p.metrics.ImportDuration.Observe(elapsed.Seconds())
	for entity, res := range report.Details {
		p.metrics.EntityWrites.WithLabelValues(entity, "created").Add(float64(res.Created))
		p.metrics.EntityWrites.WithLabelValues(entity, "updated").Add(float64(res.Updated))
		p.metrics.EntityWrites.WithLabelValues(entity, "error").Add(float64(res.Errors))
	}
}
