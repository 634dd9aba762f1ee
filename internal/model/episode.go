package model

import (
	"time"

	"github.com/google/uuid"
)

// Episode is one hospitalization, identified by the numeric CMBD code
// shared across all four source exports. DischargedAt nil means the
// episode is still open. A bed may be linked to at most one open
// episode at a time; the repository rejects a second open assignment.
type Episode struct {
	Base
	Code             int64      `db:"code" json:"code" validate:"required"`
	PatientID        uuid.UUID  `db:"patient_id" json:"patient_id" validate:"required"`
	BedID            *uuid.UUID `db:"bed_id" json:"bed_id"`
	AdmittedAt       time.Time  `db:"admitted_at" json:"admitted_at" validate:"required"`
	DischargedAt     *time.Time `db:"discharged_at" json:"discharged_at"`
	ActivityType     string     `db:"activity_type" json:"activity_type"`
	OutlierFlag      *string    `db:"outlier_flag" json:"outlier_flag"`
	Specialty        *string    `db:"specialty" json:"specialty"`
	PreSurgicalDays  *float64   `db:"pre_surgical_days" json:"pre_surgical_days"`
	PostSurgicalDays *float64   `db:"post_surgical_days" json:"post_surgical_days"`
	NormDays         *float64   `db:"norm_days" json:"norm_days"`

	// Extended-stay prediction written by the scoring pass.
	// 0 = within norm, 1 = predicted to exceed.
	PredictedExtension   *int     `db:"predicted_extension" json:"predicted_extension"`
	ExtensionProbability *float64 `db:"extension_probability" json:"extension_probability"`

	Ignore bool `db:"ignore" json:"ignore"`
}

// StayDays is computed, never stored: discharge minus admission, or
// now minus admission while the episode is open.
func (e *Episode) StayDays() int {
	if e.DischargedAt != nil {
		return int(e.DischargedAt.Sub(e.AdmittedAt).Hours() / 24)
	}
	return int(time.Since(e.AdmittedAt).Hours() / 24)
}

// Open reports whether the episode has no discharge timestamp.
func (e *Episode) Open() bool {
	return e.DischargedAt == nil
}
