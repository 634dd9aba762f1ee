package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/hospitalops/admission-api/internal/model"
	"github.com/hospitalops/admission-api/internal/repository"
)

type caseRecordRepository struct {
	db *sqlx.DB
}

func NewCaseRecordRepository(db *sqlx.DB) repository.CaseRecordRepository {
	return &caseRecordRepository{db: db}
}

func (r *caseRecordRepository) Create(ctx context.Context, record *model.CaseRecord) error {
	if record.Status == model.CaseStatusCompleted && record.EndedAt == nil {
		return fmt.Errorf("completed case record requires an end timestamp")
	}

	query := `
		INSERT INTO case_records (id, episode_id, user_id, type, status, started_at, ended_at, report,
			transfer_status, transfer_type, transfer_reason, destination_center,
			rejection_reason, cancellation_reason, transfer_completed_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`
	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
	record.CreatedAt = time.Now()
	record.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		record.ID,
		record.EpisodeID,
		record.UserID,
		record.Type,
		record.Status,
		record.StartedAt,
		record.EndedAt,
		record.Report,
		record.TransferStatus,
		record.TransferType,
		record.TransferReason,
		record.DestinationCenter,
		record.RejectionReason,
		record.CancellationReason,
		record.TransferCompletedAt,
		record.CreatedAt,
		record.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create case record: %w", err)
	}
	return nil
}

func (r *caseRecordRepository) ListByEpisode(ctx context.Context, episodeID uuid.UUID) ([]*model.CaseRecord, error) {
	query := `SELECT * FROM case_records WHERE episode_id = $1 ORDER BY started_at`
	var records []*model.CaseRecord
	if err := r.db.SelectContext(ctx, &records, query, episodeID); err != nil {
		return nil, fmt.Errorf("failed to list case records: %w", err)
	}
	return records, nil
}
