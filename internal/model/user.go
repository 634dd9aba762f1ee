package model

// User is an operator who can own case records. The import pipeline
// only resolves users by email; account management lives elsewhere.
type User struct {
	Base
	Email string `db:"email" json:"email"`
	Name  string `db:"name" json:"name"`
}
