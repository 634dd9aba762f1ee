package model

import (
	"time"

	"github.com/google/uuid"
)

// Visit roles on the episode/service relation.
const (
	VisitRoleAdmission = "INGRESO"
	VisitRoleTransfer  = "TRASLADO"
	VisitRoleDischarge = "EGRESO"
)

// Service is a clinical service/unit. Static reference data: the import
// pipeline looks services up by code but never creates them.
type Service struct {
	Base
	Code        string `db:"code" json:"code"`
	Description string `db:"description" json:"description"`
}

// ServiceVisit links an episode to a service with a timestamp and a
// role tag. Transfer visits carry an ordering index so transfer chains
// stay ordered.
type ServiceVisit struct {
	Base
	EpisodeID     uuid.UUID  `db:"episode_id" json:"episode_id"`
	ServiceID     uuid.UUID  `db:"service_id" json:"service_id"`
	Date          *time.Time `db:"date" json:"date"`
	Role          string     `db:"role" json:"role"`
	TransferOrder *int       `db:"transfer_order" json:"transfer_order"`
}
