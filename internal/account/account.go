// Package account holds the client-side projection of a platform user and
// the capability predicates derived from it.
package account

import (
	"encoding/json"
	"strings"
)

// Role is the canonical authorization role of a user.
// Backends emit several spellings; NormalizeRole folds them at hydration time.
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleMember  Role = "member"
)

// legacyRoles maps historical role spellings to their canonical value.
var legacyRoles = map[string]Role{
	"project_manager": RoleManager,
}

// ExpertiseAdministrative is the expertise area that grants project management
// rights to non-manager users.
const ExpertiseAdministrative = "administrative"

// NormalizeRole maps a raw role string from the backend to a canonical Role.
// Unknown or empty roles become RoleMember.
func NormalizeRole(raw string) Role {
	s := strings.ToLower(strings.TrimSpace(raw))
	switch Role(s) {
	case RoleAdmin, RoleManager, RoleMember:
		return Role(s)
	}
	if r, ok := legacyRoles[s]; ok {
		return r
	}
	return RoleMember
}

// Valid checks if the role is a canonical value
func (r Role) Valid() bool {
	return r == RoleAdmin || r == RoleManager || r == RoleMember
}

// User is the in-memory projection of the backend profile.
type User struct {
	ID        string `json:"id" yaml:"id"`
	FirstName string `json:"firstName" yaml:"first_name"`
	LastName  string `json:"lastName" yaml:"last_name"`
	Email     string `json:"email" yaml:"email"`
	Role      Role   `json:"role" yaml:"role"`
	Expertise string `json:"expertise,omitempty" yaml:"expertise,omitempty"`
	ImageURL  string `json:"image,omitempty" yaml:"image,omitempty"`
}

// UnmarshalJSON normalizes the role while decoding so that no caller ever
// sees a legacy spelling.
func (u *User) UnmarshalJSON(data []byte) error {
	type raw User
	var r raw
	if err := json.Unmarshal(data, &r); err != nil {
		return err
	}
	r.Role = NormalizeRole(string(r.Role))
	*u = User(r)
	return nil
}

// DisplayName returns "First Last", falling back to the email.
func (u *User) DisplayName() string {
	name := strings.TrimSpace(u.FirstName + " " + u.LastName)
	if name == "" {
		return u.Email
	}
	return name
}

// IsAdmin reports whether the user is an administrator.
func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// IsProjectManager reports whether the user holds the manager role.
func (u *User) IsProjectManager() bool {
	return u != nil && u.Role == RoleManager
}

// CanManageProjects is true for admins, managers and users whose expertise
// area is administrative.
func (u *User) CanManageProjects() bool {
	if u == nil {
		return false
	}
	if u.IsAdmin() || u.IsProjectManager() {
		return true
	}
	return strings.EqualFold(strings.TrimSpace(u.Expertise), ExpertiseAdministrative)
}

// Clone returns a copy so snapshots never alias container state.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	return &c
}
