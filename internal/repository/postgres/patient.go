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

type patientRepository struct {
	db *sqlx.DB
}

func NewPatientRepository(db *sqlx.DB) repository.PatientRepository {
	return &patientRepository{db: db}
}

func (r *patientRepository) Create(ctx context.Context, patient *model.Patient) error {
	query := `
		INSERT INTO patients (id, rut, name, sex, birth_date, payer_1, payer_2, plan, social_score, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	if patient.ID == uuid.Nil {
		patient.ID = uuid.New()
	}
	patient.CreatedAt = time.Now()
	patient.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		patient.ID,
		patient.RUT,
		patient.Name,
		patient.Sex,
		patient.BirthDate,
		patient.Payer1,
		patient.Payer2,
		patient.Plan,
		patient.SocialScore,
		patient.CreatedAt,
		patient.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create patient: %w", err)
	}
	return nil
}

func (r *patientRepository) Get(ctx context.Context, id uuid.UUID) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE id = $1`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) GetByRUT(ctx context.Context, rut string) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE rut = $1`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, rut)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get patient by rut: %w", err)
	}
	return &patient, nil
}

// FindByName is the last-resort lookup the importer uses when an
// episode row carries no usable RUT. Case-insensitive substring match,
// first hit wins.
func (r *patientRepository) FindByName(ctx context.Context, name string) (*model.Patient, error) {
	query := `SELECT * FROM patients WHERE name ILIKE '%' || $1 || '%' ORDER BY created_at LIMIT 1`
	var patient model.Patient
	err := r.db.GetContext(ctx, &patient, query, name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, repository.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find patient by name: %w", err)
	}
	return &patient, nil
}

func (r *patientRepository) Update(ctx context.Context, patient *model.Patient) error {
	query := `
		UPDATE patients
		SET name = $1, sex = $2, birth_date = $3, payer_1 = $4, payer_2 = $5, plan = $6, social_score = $7, updated_at = $8
		WHERE id = $9
	`
	_, err := r.db.ExecContext(ctx, query,
		patient.Name,
		patient.Sex,
		patient.BirthDate,
		patient.Payer1,
		patient.Payer2,
		patient.Plan,
		patient.SocialScore,
		time.Now(),
		patient.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update patient: %w", err)
	}
	return nil
}
