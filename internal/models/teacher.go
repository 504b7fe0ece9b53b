package models

import "time"

// Teacher is the teacher profile of a user.
type Teacher struct {
	ID             string     `db:"id" json:"id"`
	UserID         string     `db:"user_id" json:"user_id"`
	EmployeeID     string     `db:"employee_id" json:"employee_id"`
	Qualification  *string    `db:"qualification" json:"qualification,omitempty"`
	Specialization *string    `db:"specialization" json:"specialization,omitempty"`
	JoiningDate    *time.Time `db:"joining_date" json:"joining_date,omitempty"`
	CreatedAt      time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time  `db:"updated_at" json:"updated_at"`
}
