package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/hospitalops/admission-api/internal/model"
)

// ErrNotFound is returned by Get-style lookups when no row matches.
var ErrNotFound = errors.New("not found")

// ErrBedOccupied is returned when persisting an open episode on a bed
// that already has another open episode.
var ErrBedOccupied = errors.New("bed already assigned to an open episode")

// All repository interfaces in one file
type (
	PatientRepository interface {
		Create(ctx context.Context, patient *model.Patient) error
		Get(ctx context.Context, id uuid.UUID) (*model.Patient, error)
		GetByRUT(ctx context.Context, rut string) (*model.Patient, error)
		FindByName(ctx context.Context, name string) (*model.Patient, error)
		Update(ctx context.Context, patient *model.Patient) error
	}

	BedRepository interface {
		Create(ctx context.Context, bed *model.Bed) error
		GetByCode(ctx context.Context, code string) (*model.Bed, error)
		Update(ctx context.Context, bed *model.Bed) error
	}

	EpisodeRepository interface {
		Create(ctx context.Context, episode *model.Episode) error
		Get(ctx context.Context, id uuid.UUID) (*model.Episode, error)
		GetByCode(ctx context.Context, code int64) (*model.Episode, error)
		Update(ctx context.Context, episode *model.Episode) error
		UpdatePrediction(ctx context.Context, code int64, label int, probability float64) (bool, error)
	}

	ServiceRepository interface {
		GetByCode(ctx context.Context, code string) (*model.Service, error)
		List(ctx context.Context) ([]*model.Service, error)
	}

	ServiceVisitRepository interface {
		Create(ctx context.Context, visit *model.ServiceVisit) error
		Exists(ctx context.Context, episodeID uuid.UUID, serviceCode, role string) (bool, error)
		ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]*model.ServiceVisit, error)
	}

	CaseRecordRepository interface {
		Create(ctx context.Context, record *model.CaseRecord) error
		ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]*model.CaseRecord, error)
	}

	UserRepository interface {
		GetByEmail(ctx context.Context, email string) (*model.User, error)
	}
)
