package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hospitalops/admission-api/internal/model"
	"github.com/hospitalops/admission-api/internal/repository"
)

type episodeRepository struct {
	db *sqlx.DB
}

func NewEpisodeRepository(db *sqlx.DB) repository.EpisodeRepository {
	return &episodeRepository{db: db}
}

func (r *episodeRepository) Create(ctx context.Context, episode *model.Episode) error {
	if episode.BedID != nil && episode.DischargedAt == nil {
		occupied, err := r.bedHasOpenEpisode(ctx, *episode.BedID, uuid.Nil)
		if err != nil {
			return err
		}
		if occupied {
			return repository.ErrBedOccupied
		}
	}

	query := `
		INSERT INTO episodes (id, code, patient_id, bed_id, admitted_at, discharged_at,
			activity_type, outlier_flag, specialty, pre_surgical_days, post_surgical_days,
			norm_days, predicted_extension, extension_probability, ignore, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	if episode.ID == uuid.Nil {
		episode.ID = uuid.New()
	}
	episode.CreatedAt = time.Now()
	episode.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		episode.ID,
		episode.Code,
		episode.PatientID,
		episode.BedID,
		episode.AdmittedAt,
		episode.DischargedAt,
		episode.ActivityType,
		episode.OutlierFlag,
		episode.Specialty,
		episode.PreSurgicalDays,
		episode.PostSurgicalDays,
		episode.NormDays,
		episode.PredictedExtension,
		episode.ExtensionProbability,
		episode.Ignore,
		episode.CreatedAt,
		episode.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create episode: %w", err)
	}
	return nil
}

func (r *episodeRepository) Get(ctx context.Context, id uuid.UUID) (*model.Episode, error) {
	query := `SELECT * FROM episodes WHERE id = $1`
	var episode model.Episode
	err := r.db.GetContext(ctx, &episode, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode: %w", err)
	}
	return &episode, nil
}

func (r *episodeRepository) GetByCode(ctx context.Context, code int64) (*model.Episode, error) {
	query := `SELECT * FROM episodes WHERE code = $1`
	var episode model.Episode
	err := r.db.GetContext(ctx, &episode, query, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get episode by code: %w", err)
	}
	return &episode, nil
}

func (r *episodeRepository) Update(ctx context.Context, episode *model.Episode) error {
	if episode.BedID != nil && episode.DischargedAt == nil {
		occupied, err := r.bedHasOpenEpisode(ctx, *episode.BedID, episode.ID)
		if err != nil {
			return err
		}
		if occupied {
			return repository.ErrBedOccupied
		}
	}

	query := `
		UPDATE episodes
		SET bed_id = $1, discharged_at = $2, activity_type = $3, outlier_flag = $4,
			specialty = $5, pre_surgical_days = $6, post_surgical_days = $7, norm_days = $8,
			ignore = $9, updated_at = $10
		WHERE id = $11
	`
	_, err := r.db.ExecContext(ctx, query,
		episode.BedID,
		episode.DischargedAt,
		episode.ActivityType,
		episode.OutlierFlag,
		episode.Specialty,
		episode.PreSurgicalDays,
		episode.PostSurgicalDays,
		episode.NormDays,
		episode.Ignore,
		time.Now(),
		episode.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update episode: %w", err)
	}
	return nil
}

// UpdatePrediction writes the scoring result onto an episode by code.
// Returns false when no episode with that code exists; scoring may run
// against episodes not yet persisted.
func (r *episodeRepository) UpdatePrediction(ctx context.Context, code int64, label int, probability float64) (bool, error) {
	query := `
		UPDATE episodes
		SET predicted_extension = $1, extension_probability = $2, updated_at = $3
		WHERE code = $4
	`
	res, err := r.db.ExecContext(ctx, query, label, probability, time.Now(), code)
	if err != nil {
		return false, fmt.Errorf("failed to update episode prediction: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read affected rows: %w", err)
	}
	return rows > 0, nil
}

// bedHasOpenEpisode backs the one-open-episode-per-bed invariant. The
// partial unique index on episodes(bed_id) WHERE discharged_at IS NULL
// is the authoritative guard; this check surfaces a typed error before
// the constraint fires.
func (r *episodeRepository) bedHasOpenEpisode(ctx context.Context, bedID, excludeID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM episodes
			WHERE bed_id = $1 AND discharged_at IS NULL AND id <> $2
		)
	`
	var occupied bool
	if err := r.db.GetContext(ctx, &occupied, query, bedID, excludeID); err != nil {
		return false, fmt.Errorf("failed to check bed occupancy: %w", err)
	}
	return occupied, nil
}
