package model

import (
	"time"

	"github.com/google/uuid"
)

// Case record statuses
const (
	CaseStatusStarted    = "INICIADA"
	CaseStatusInProgress = "EN_PROGRESO"
	CaseStatusCompleted  = "COMPLETADA"
	CaseStatusCancelled  = "CANCELADA"
)

// Case record types. The vocabulary mirrors the management-type values
// found in the admission-detail export.
const (
	CaseTypeHomecareUCCC      = "HOMECARE_UCCC"
	CaseTypeHomecare          = "HOMECARE"
	CaseTypeTransfer          = "TRASLADO"
	CaseTypeIsapreBenefit     = "ACTIVACION_BENEFICIO_ISAPRE"
	CaseTypeAuthorization     = "AUTORIZACION_PROCEDIMIENTO"
	CaseTypeCoverage          = "COBERTURA"
	CaseTypeBillingCutoff     = "CORTE_CUENTAS"
	CaseTypeClinical          = "GESTION_CLINICA"
	CaseTypePalliativeIntake  = "INGRESO_CUIDADOS_PALIATIVOS"
	CaseTypeAmbulatoryHandoff = "MANEJO_AMBULATORIO"
)

// Transfer statuses, only meaningful when Type is CaseTypeTransfer.
const (
	TransferStatusPending   = "PENDIENTE"
	TransferStatusAccepted  = "ACEPTADO"
	TransferStatusRejected  = "RECHAZADO"
	TransferStatusCancelled = "CANCELADO"
	TransferStatusCompleted = "COMPLETADO"
)

// CaseRecord is a tracked administrative or clinical action tied to one
// episode ("gestión" in the source exports). Transfer details are only
// populated when Type is CaseTypeTransfer.
type CaseRecord struct {
	Base
	EpisodeID uuid.UUID  `db:"episode_id" json:"episode_id" validate:"required"`
	UserID    *uuid.UUID `db:"user_id" json:"user_id"`
	Type      string     `db:"type" json:"type" validate:"required"`
	Status    string     `db:"status" json:"status" validate:"required"`
	StartedAt time.Time  `db:"started_at" json:"started_at" validate:"required"`
	EndedAt   *time.Time `db:"ended_at" json:"ended_at"`
	Report    *string    `db:"report" json:"report"`

	TransferStatus      *string    `db:"transfer_status" json:"transfer_status"`
	TransferType        *string    `db:"transfer_type" json:"transfer_type"`
	TransferReason      *string    `db:"transfer_reason" json:"transfer_reason"`
	DestinationCenter   *string    `db:"destination_center" json:"destination_center"`
	RejectionReason     *string    `db:"rejection_reason" json:"rejection_reason"`
	CancellationReason  *string    `db:"cancellation_reason" json:"cancellation_reason"`
	TransferCompletedAt *time.Time `db:"transfer_completed_at" json:"transfer_completed_at"`
}

// DurationDays is the case duration in days, counted to now while the
// record has no end timestamp.
func (c *CaseRecord) DurationDays() int {
	if c.EndedAt != nil {
		return int(c.EndedAt.Sub(c.StartedAt).Hours() / 24)
	}
	return int(time.Since(c.StartedAt).Hours() / 24)
}
