package jobs

import "strings"

// Role is the caller's access level, supplied by the identity boundary.
type Role string

const (
	RoleAdmin Role = "admin"
	RoleCoach Role = "coach"
	RoleUser  Role = "user"
)

// Identity is the authenticated caller as reported by the identity provider.
type Identity struct {
	Email         string
	EmailVerified bool
	Role          Role
}

// Elevated reports whether the role may view any transcript.
func (r Role) Elevated() bool {
	return r == RoleAdmin || r == RoleCoach
}

// CanView decides whether the caller may view a transcript owned by
// ownerEmail. Unverified callers are denied outright; admins and coaches see
// everything; everyone else sees only their own uploads.
func CanView(caller Identity, ownerEmail string) bool {
	if !caller.EmailVerified || caller.Email == "" {
		return false
	}
	if caller.Role.Elevated() {
		return true
	}
	return strings.EqualFold(caller.Email, ownerEmail)
}
