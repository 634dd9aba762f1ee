package worker

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hospitalops/admission-api/internal/ingest"
	"github.com/hospitalops/admission-api/internal/model"
	"github.com/hospitalops/admission-api/internal/pipeline"
	"github.com/hospitalops/admission-api/pkg/logger"
)

// ImportWorker polls a drop directory for a complete set of the four
// source exports and feeds them through the pipeline. Files are moved
// to processed/ or failed/ after each run, so a redelivered set is
// picked up as a fresh run and never imported twice concurrently.
type ImportWorker struct {
	pipeline *pipeline.Pipeline
	dir      string
	interval time.Duration
	log      *logger.Logger
}

func NewImportWorker(p *pipeline.Pipeline, dir string, interval time.Duration, log *logger.Logger) *ImportWorker {
	return &ImportWorker{
		pipeline: p,
		dir:      dir,
		interval: interval,
		log:      log,
	}
}

func (w *ImportWorker) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("import worker started", "dir", w.dir, "interval", w.interval.String())

	for {
		select {
		case <-ctx.Done():
			w.log.Info("import worker shutting down")
			return
		case <-ticker.C:
			if err := w.scan(ctx); err != nil {
				w.log.Error(err, "drop directory scan failed")
			}
		}
	}
}

// scan runs at most one import per tick. An incomplete set is left in
// place for a later tick; sources usually land minutes apart.
func (w *ImportWorker) scan(ctx context.Context) error {
	set, ok, err := w.findSet()
	if err != nil || !ok {
		return err
	}

	run := w.pipeline.NewRun()
	w.log.Info("found complete source set", "run", run.ID)

	runErr := w.runSet(ctx, run, set)
	dest := "processed"
	if runErr != nil {
		dest = "failed"
		w.log.Error(runErr, "import run failed", "run", run.ID)
	}
	return w.archive(set, dest, run.ID.String())
}

// findSet matches files by source-name prefix, e.g. grd_2024-05.xlsx
// lands as the grd source. All four sources must be present.
func (w *ImportWorker) findSet() (map[ingest.Source]string, bool, error) {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read drop directory: %w", err)
	}

	found := make(map[ingest.Source]string)
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := strings.ToLower(e.Name())
		ext := filepath.Ext(name)
		if ext != ".csv" && ext != ".xlsx" {
			continue
		}
		for _, src := range ingest.RequiredSources {
			if strings.HasPrefix(name, string(src)) {
				if _, dup := found[src]; !dup {
					found[src] = filepath.Join(w.dir, e.Name())
				}
			}
		}
	}

	if len(found) != len(ingest.RequiredSources) {
		return nil, false, nil
	}
	return found, true, nil
}

func (w *ImportWorker) runSet(ctx context.Context, run *model.ImportRun, set map[ingest.Source]string) error {
	files := make(map[ingest.Source]ingest.File, len(set))
	var closers []io.Closer
	defer func() {
		for _, c := range closers {
			c.Close()
		}
	}()

	for src, path := range set {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		closers = append(closers, f)

		format := ingest.FormatXLSX
		if strings.EqualFold(filepath.Ext(path), ".csv") {
			format = ingest.FormatCSV
		}
		files[src] = ingest.File{Reader: f, Format: format}
	}

	_, err := w.pipeline.Run(ctx, run, files)
	return err
}

// archive moves a consumed set out of the scan path, prefixed with
// the run id so repeated deliveries of the same filenames never clash.
func (w *ImportWorker) archive(set map[ingest.Source]string, dest, runID string) error {
	dir := filepath.Join(w.dir, dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s directory: %w", dest, err)
	}
	for _, path := range set {
		target := filepath.Join(dir, runID+"_"+filepath.Base(path))
		if err := os.Rename(path, target); err != nil {
			return fmt.Errorf("failed to archive %s: %w", path, err)
		}
	}
	return nil
}
