package pipeline

import (
	"time"

	"github.com/google/uuid"
	"github.com/patrickmn/go-cache"

	"github.com/hospitalops/admission-api/internal/model"
)

// Registry tracks import runs in memory so callers can poll progress
// and fetch the final report. Finished runs expire after the TTL.
type Registry struct {
	runs *cache.Cache
}

func NewRegistry(ttl time.Duration) *Registry {
	return &Registry{runs: cache.New(ttl, ttl)}
}

// Create registers a new pending run.
func (r *Registry) Create() *model.ImportRun {
	run := &model.ImportRun{
		ID:        uuid.New(),
		Status:    model.RunStatusPending,
		StartedAt: time.Now(),
	}
	r.put(run)
	return run
}

// Get returns a run by id.
func (r *Registry) Get(id uuid.UUID) (*model.ImportRun, bool) {
	v, ok := r.runs.Get(id.String())
	if !ok {
		return nil, false
	}
	return v.(*model.ImportRun), true
}

// put refreshes the stored run and its TTL.
func (r *Registry) put(run *model.ImportRun) {
	r.runs.Set(run.ID.String(), run, cache.DefaultExpiration)
}

func (r *Registry) markRunning(run *model.ImportRun) {
	run.Status = model.RunStatusRunning
	r.put(run)
}

func (r *Registry) progress(run *model.ImportRun, processed int) {
	run.ProcessedRows = processed
	r.put(run)
}

func (r *Registry) markCompleted(run *model.ImportRun, report *model.ImportReport) {
	now := time.Now()
	run.Status = model.RunStatusCompleted
	run.FinishedAt = &now
	run.Report = report
	run.ProcessedRows = report.Summary.TotalProcessed
	r.put(run)
}

func (r *Registry) markFailed(run *model.ImportRun, err error) {
	now := time.Now()
	run.Status = model.RunStatusFailed
	run.FinishedAt = &now
	run.Error = err.Error()
	r.put(run)
}
