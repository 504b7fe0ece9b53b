package models

import "time"

// UserRole represents the closed set of roles a user may hold.
type UserRole string

const (
	RoleSuperAdmin UserRole = "super_admin"
	RoleAdmin      UserRole = "admin"
	RoleTeacher    UserRole = "teacher"
	RoleStudent    UserRole = "student"
	RoleParent     UserRole = "parent"
)

// Valid reports whether the role is one of the known roles.
func (r UserRole) Valid() bool {
	switch r {
	case RoleSuperAdmin, RoleAdmin, RoleTeacher, RoleStudent, RoleParent:
		return true
	default:
		return false
	}
}

// User represents an application user stored in the users table.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	Username     string     `db:"username" json:"username"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FirstName    string     `db:"first_name" json:"first_name"`
	LastName     string     `db:"last_name" json:"last_name"`
	Phone        *string    `db:"phone" json:"phone,omitempty"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"is_active" json:"is_active"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// FullName joins first and last name.
func (u User) FullName() string {
	return FullName(u.FirstName, u.LastName)
}

// FullName joins name parts skipping empty ones.
func FullName(first, last string) string {
	switch {
	case first == "":
		return last
	case last == "":
		return first
	default:
		return first + " " + last
	}
}

// Pagination contains skip/limit metadata returned in list responses.
type Pagination struct {
	Skip       int `json:"skip"`
	Limit      int `json:"limit"`
	TotalCount int `json:"total_count"`
}
