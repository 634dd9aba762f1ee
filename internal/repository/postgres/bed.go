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

type bedRepository struct {
	db *sqlx.DB
}

func NewBedRepository(db *sqlx.DB) repository.BedRepository {
	return &bedRepository{db: db}
}

func (r *bedRepository) Create(ctx context.Context, bed *model.Bed) error {
	query := `
		INSERT INTO beds (id, code, room, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if bed.ID == uuid.Nil {
		bed.ID = uuid.New()
	}
	bed.CreatedAt = time.Now()
	bed.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query, bed.ID, bed.Code, bed.Room, bed.CreatedAt, bed.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create bed: %w", err)
	}
	return nil
}

func (r *bedRepository) GetByCode(ctx context.Context, code string) (*model.Bed, error) {
	query := `SELECT * FROM beds WHERE code = $1`
	var bed model.Bed
	err := r.db.GetContext(ctx, &bed, query, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get bed by code: %w", err)
	}
	return &bed, nil
}

func (r *bedRepository) Update(ctx context.Context, bed *model.Bed) error {
	query := `UPDATE beds SET room = $1, updated_at = $2 WHERE id = $3`
	_, err := r.db.ExecContext(ctx, query, bed.Room, time.Now(), bed.ID)
	if err != nil {
		return fmt.Errorf("failed to update bed: %w", err)
	}
	return nil
}
