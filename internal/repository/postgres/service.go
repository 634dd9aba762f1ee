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

type serviceRepository struct {
	db *sqlx.DB
}

func NewServiceRepository(db *sqlx.DB) repository.ServiceRepository {
	return &serviceRepository{db: db}
}

func (r *serviceRepository) GetByCode(ctx context.Context, code string) (*model.Service, error) {
	query := `SELECT * FROM services WHERE code = $1`
	var service model.Service
	err := r.db.GetContext(ctx, &service, query, code)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get service by code: %w", err)
	}
	return &service, nil
}

func (r *serviceRepository) List(ctx context.Context) ([]*model.Service, error) {
	query := `SELECT * FROM services ORDER BY code`
	var services []*model.Service
	if err := r.db.SelectContext(ctx, &services, query); err != nil {
		return nil, fmt.Errorf("failed to list services: %w", err)
	}
	return services, nil
}

type serviceVisitRepository struct {
	db *sqlx.DB
}

func NewServiceVisitRepository(db *sqlx.DB) repository.ServiceVisitRepository {
	return &serviceVisitRepository{db: db}
}

func (r *serviceVisitRepository) Create(ctx context.Context, visit *model.ServiceVisit) error {
	query := `
		INSERT INTO service_visits (id, episode_id, service_id, date, role, transfer_order, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	if visit.ID == uuid.Nil {
		visit.ID = uuid.New()
	}
	visit.CreatedAt = time.Now()
	visit.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		visit.ID,
		visit.EpisodeID,
		visit.ServiceID,
		visit.Date,
		visit.Role,
		visit.TransferOrder,
		visit.CreatedAt,
		visit.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create service visit: %w", err)
	}
	return nil
}

func (r *serviceVisitRepository) Exists(ctx context.Context, episodeID uuid.UUID, serviceCode, role string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM service_visits v
			JOIN services s ON s.id = v.service_id
			WHERE v.episode_id = $1 AND s.code = $2 AND v.role = $3
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, episodeID, serviceCode, role); err != nil {
		return false, fmt.Errorf("failed to check service visit: %w", err)
	}
	return exists, nil
}

func (r *serviceVisitRepository) ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]*model.ServiceVisit, error) {
	query := `SELECT * FROM service_visits WHERE episode_id = $1 ORDER BY date, transfer_order`
	var visits []*model.ServiceVisit
	if err := r.db.SelectContext(ctx, &visits, query, episodeID); err != nil {
		return nil, fmt.Errorf("failed to list service visits: %w", err)
	}
	return visits, nil
}
