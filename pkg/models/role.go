package models

import "strings"

// Role identifies an agent persona.
type Role string

const (
	// RoleCoordinator plans objectives and synthesizes results.
	RoleCoordinator Role = "coordinator"
	// RoleResearcher gathers facts and background.
	RoleResearcher Role = "researcher"
	// RoleAnalyst evaluates options and data.
	RoleAnalyst Role = "analyst"
	// RoleCoder writes and explains code.
	RoleCoder Role = "coder"
	// RoleWriter drafts prose.
	RoleWriter Role = "writer"
	// RoleReviewer critiques other output.
	RoleReviewer Role = "reviewer"
	// RoleGeneralist handles anything not matched to a specialist.
	RoleGeneralist Role = "generalist"
)

// DefaultRole is used for tasks whose requested role is missing or unknown.
const DefaultRole = RoleGeneralist

// Roles returns every known role in a stable order.
func Roles() []Role {
	return []Role{
		RoleCoordinator,
		RoleResearcher,
		RoleAnalyst,
		RoleCoder,
		RoleWriter,
		RoleReviewer,
		RoleGeneralist,
	}
}

// Valid returns true if the role is a known value.
func (r Role) Valid() bool {
	switch r {
	case RoleCoordinator, RoleResearcher, RoleAnalyst, RoleCoder,
		RoleWriter, RoleReviewer, RoleGeneralist:
		return true
	default:
		return false
	}
}

// ParseRole matches name against the known roles, ignoring case and
// surrounding whitespace. The second return is false when nothing matched.
func ParseRole(name string) (Role, bool) {
	r := Role(strings.ToLower(strings.TrimSpace(name)))
	if r.Valid() {
		return r, true
	}
	return "", false
}

// ResolveRole maps name to a known role, falling back to DefaultRole.
func ResolveRole(name string) Role {
	if r, ok := ParseRole(name); ok {
		return r
	}
	return DefaultRole
}
