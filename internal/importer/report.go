package importer

import (
	"github.com/hospitalops/admission-api/internal/model"
)

// Entity keys used in the import report details.
const (
	entityPatients  = "patients"
	entityBeds      = "beds"
	entityEpisodes  = "episodes"
	entityCases     = "case_records"
	entityTransfers = "transfers"
)

var entityOrder = []string{entityPatients, entityBeds, entityEpisodes, entityCases, entityTransfers}

// results accumulates per-entity counters and the error detail list
// during one run.
type results struct {
	entities map[string]*model.EntityResult
	errors   []string
}

func newResults() *results {
	r := &results{entities: make(map[string]*model.EntityResult, len(entityOrder))}
	for _, e := range entityOrder {
		r.entities[e] = &model.EntityResult{}
	}
	return r
}

func (r *results) created(entity string) { r.entities[entity].Created++ }
func (r *results) updated(entity string) { r.entities[entity].Updated++ }

func (r *results) failed(entity string, details ...string) {
	r.entities[entity].Errors++
	r.errors = append(r.errors, details...)
}

// report folds the counters into the wire-level report, capping the
// error list so a pathological file cannot balloon the run record.
func (r *results) report(maxErrors int) *model.ImportReport {
	var processed, success, errs int
	details := make(map[string]model.EntityResult, len(r.entities))
	for name, e := range r.entities {
		details[name] = *e
		processed += e.Created + e.Updated + e.Errors
		success += e.Created + e.Updated
		errs += e.Errors
	}

	rate := 0.0
	if processed > 0 {
		rate = float64(success) / float64(processed) * 100
	}

	capped := r.errors
	if maxErrors > 0 && len(capped) > maxErrors {
		capped = capped[:maxErrors]
	}

	return &model.ImportReport{
		Summary: model.ImportSummary{
			TotalProcessed: processed,
			TotalSuccess:   success,
			TotalErrors:    errs,
			SuccessRate:    rate,
		},
		Details: details,
		Errors:  capped,
	}
}
