package models

// Capability names an action guarded by role.
type Capability string

const (
	CapMarkAttendance        Capability = "attendance:mark"
	CapViewAttendanceReports Capability = "attendance:reports"
	CapDeleteAttendance      Capability = "attendance:delete"
	CapManageAssessments     Capability = "assessments:manage"
	CapManageGrades          Capability = "grades:manage"
	CapViewAssessmentGrades  Capability = "grades:by-assessment"
	CapDeleteGrades          Capability = "grades:delete"
	CapManageStudents        Capability = "students:manage"
	CapViewStudents          Capability = "students:list"
	CapRequestExports        Capability = "exports:request"
)

var staffCapabilities = []Capability{
	CapMarkAttendance,
	CapViewAttendanceReports,
	CapManageAssessments,
	CapManageGrades,
	CapViewAssessmentGrades,
	CapViewStudents,
	CapRequestExports,
}

var adminCapabilities = append(append([]Capability{}, staffCapabilities...),
	CapDeleteAttendance,
	CapDeleteGrades,
	CapManageStudents,
)

var roleCapabilities = map[UserRole]map[Capability]struct{}{
	RoleSuperAdmin: capabilitySet(adminCapabilities),
	RoleAdmin:      capabilitySet(adminCapabilities),
	RoleTeacher:    capabilitySet(staffCapabilities),
	RoleStudent:    {},
	RoleParent:     {},
}

// Can reports whether the role grants the capability.
func (r UserRole) Can(cap Capability) bool {
	_, ok := roleCapabilities[r][cap]
	return ok
}

// IsAdmin is true for super_admin and admin.
func (r UserRole) IsAdmin() bool {
	return r == RoleSuperAdmin || r == RoleAdmin
}

// IsStaff is true for administrators and teachers.
func (r UserRole) IsStaff() bool {
	return r.IsAdmin() || r == RoleTeacher
}

func capabilitySet(caps []Capability) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, c := range caps {
		set[c] = struct{}{}
	}
	return set
}
