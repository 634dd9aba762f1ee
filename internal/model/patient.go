package model

import (
	"time"
)

// Sex codes as stored on patients. Unrecognized source values map to SexOther.
const (
	SexMale   = "M"
	SexFemale = "F"
	SexOther  = "O"
)

// MaxPayerLen bounds the payer columns; source exports carry free text
// that is truncated before storage.
const MaxPayerLen = 20

// Patient is a person identified by a Chilean RUT in canonical
// DD.DDD.DDD-C format. A patient is created on first sighting of a RUT
// during an import; subsequent imports only fill fields that are still
// empty (see importer).
type Patient struct {
	Base
	RUT         string     `db:"rut" json:"rut" validate:"required"`
	Name        string     `db:"name" json:"name" validate:"required"`
	Sex         string     `db:"sex" json:"sex" validate:"oneof=M F O"`
	BirthDate   *time.Time `db:"birth_date" json:"birth_date"`
	Payer1      *string    `db:"payer_1" json:"payer_1" validate:"omitempty,max=20"`
	Payer2      *string    `db:"payer_2" json:"payer_2" validate:"omitempty,max=20"`
	Plan        *string    `db:"plan" json:"plan"`
	SocialScore *int       `db:"social_score" json:"social_score"`
}
