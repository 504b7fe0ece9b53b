package models

import (
	"context"
	"errors"
)

var (
	// ErrActingTeacherRequired is returned when an administrator performs a
	// teacher-owned write without naming the teacher.
	ErrActingTeacherRequired = errors.New("teacher_id is required when acting as administrator")
	// ErrNoTeacherProfile is returned when a teacher account has no teacher profile.
	ErrNoTeacherProfile = errors.New("teacher profile not found for user")
	// ErrNotTeacherRole is returned for roles that can never act as a teacher.
	ErrNotTeacherRole = errors.New("role cannot act as teacher")
)

// Actor is the authenticated caller with its profile ids resolved.
type Actor struct {
	UserID    string   `json:"user_id"`
	Email     string   `json:"email"`
	Role      UserRole `json:"role"`
	TeacherID string   `json:"teacher_id,omitempty"`
	StudentID string   `json:"student_id,omitempty"`
	ParentID  string   `json:"parent_id,omitempty"`
}

// Can delegates to the role capability table.
func (a *Actor) Can(cap Capability) bool {
	return a != nil && a.Role.Can(cap)
}

// IsAdmin reports administrator roles.
func (a *Actor) IsAdmin() bool {
	return a != nil && a.Role.IsAdmin()
}

// IsStaff reports administrator or teacher roles.
func (a *Actor) IsStaff() bool {
	return a != nil && a.Role.IsStaff()
}

// ActingTeacherID resolves whose name a teacher-owned record is written under.
// Teachers always act as themselves; administrators must name a teacher.
func (a *Actor) ActingTeacherID(explicit string) (string, error) {
	if a == nil {
		return "", ErrNotTeacherRole
	}
	switch {
	case a.Role == RoleTeacher:
		if a.TeacherID == "" {
			return "", ErrNoTeacherProfile
		}
		return a.TeacherID, nil
	case a.Role.IsAdmin():
		if explicit == "" {
			return "", ErrActingTeacherRequired
		}
		return explicit, nil
	default:
		return "", ErrNotTeacherRole
	}
}

// OwnsTeacherRecord reports whether the actor may modify a record owned by teacherID.
func (a *Actor) OwnsTeacherRecord(teacherID string) bool {
	if a == nil {
		return false
	}
	if a.Role.IsAdmin() {
		return true
	}
	return a.Role == RoleTeacher && a.TeacherID != "" && a.TeacherID == teacherID
}

// IsStudent reports whether the actor is the given student.
func (a *Actor) IsStudent(studentID string) bool {
	return a != nil && a.Role == RoleStudent && a.StudentID != "" && a.StudentID == studentID
}

// StudentLinker reports whether a parent is linked to a student.
type StudentLinker interface {
	IsLinked(ctx context.Context, parentID, studentID string) (bool, error)
}

// CanViewStudent allows staff, the student themself and linked parents.
func (a *Actor) CanViewStudent(ctx context.Context, studentID string, linker StudentLinker) (bool, error) {
	switch {
	case a == nil:
		return false, nil
	case a.IsStaff(), a.IsStudent(studentID):
		return true, nil
	case a.Role == RoleParent && a.ParentID != "" && linker != nil:
		return linker.IsLinked(ctx, a.ParentID, studentID)
	default:
		return false, nil
	}
}
