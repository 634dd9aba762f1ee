package model

// Bed is a physical bed identified by its code. Room defaults to
// "HAB-<code>" when the source has no room assignment.
type Bed struct {
	Base
	Code string `db:"code" json:"code" validate:"required"`
	Room string `db:"room" json:"room"`
}
