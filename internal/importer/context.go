package importer

import (
	"github.com/hospitalops/admission-api/internal/model"
)

// ImportContext carries the caches one import run accumulates while
// walking the mapped entities. A fresh context is created per run so
// nothing leaks between runs.
type ImportContext struct {
	// episodePatient remembers which patient an episode resolved to,
	// so case records and repeated episode rows skip the lookup chain.
	episodePatient map[int64]*model.Patient
	// bedByCode remembers beds already fetched or created this run.
	bedByCode map[string]*model.Bed
}

func NewImportContext() *ImportContext {
	return &ImportContext{
		episodePatient: make(map[int64]*model.Patient),
		bedByCode:      make(map[string]*model.Bed),
	}
}
