package domain

// Role is a member's role within an organization.
type Role string

const (
	RoleViewer Role = "viewer"
	RoleEditor Role = "editor"
	RoleAdmin  Role = "admin"
)

// roleLevels is the single place the role ordering is defined. Every
// comparison in the codebase goes through RoleAtLeast.
var roleLevels = map[Role]int{
	RoleViewer: 1,
	RoleEditor: 2,
	RoleAdmin:  3,
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	_, ok := roleLevels[r]
	return ok
}

// RoleAtLeast reports whether role meets or exceeds minimum in the
// fixed hierarchy (viewer < editor < admin). Unknown roles never
// satisfy any minimum.
func RoleAtLeast(role, minimum Role) bool {
	level, ok := roleLevels[role]
	if !ok {
		return false
	}
	min, ok := roleLevels[minimum]
	if !ok {
		return false
	}
	return level >= min
}
