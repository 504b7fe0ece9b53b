package models

import "time"

// Parent is the guardian profile of a user.
type Parent struct {
	ID         string    `db:"id" json:"id"`
	UserID     string    `db:"user_id" json:"user_id"`
	Occupation *string   `db:"occupation" json:"occupation,omitempty"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// ParentStudent links a parent to a student.
type ParentStudent struct {
	ID               string `db:"id" json:"id"`
	ParentID         string `db:"parent_id" json:"parent_id"`
	StudentID        string `db:"student_id" json:"student_id"`
	Relation         string `db:"relation" json:"relation"`
	IsPrimaryContact bool   `db:"is_primary_contact" json:"is_primary_contact"`
}
