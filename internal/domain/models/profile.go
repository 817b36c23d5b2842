package models

// RoleKey is the small enumerated role a team member plays in the workflow.
type RoleKey string

const (
	RoleAuthor   RoleKey = "author"
	RoleDesigner RoleKey = "designer"
	RoleApprover RoleKey = "approver"
)

// Valid reports whether r is a known role.
func (r RoleKey) Valid() bool {
	return r == RoleAuthor || r == RoleDesigner || r == RoleApprover
}

// Profile maps an opaque user id to a role and a display name.
type Profile struct {
	UserID   string  `json:"user_id"`
	RoleKey  RoleKey `json:"role_key"`
	FullName string  `json:"full_name"`
}
