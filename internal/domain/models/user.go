package models

import (
	"fmt"
	"strings"
	"time"
)

// Role is the authorization level of a signed-in user.
type Role string

// Known roles.
const (
	RoleAdmin      Role = "admin"
	RoleManagement Role = "management"
	RoleEntry      Role = "entry"
)

// Roles lists every known role.
var Roles = []Role{RoleAdmin, RoleManagement, RoleEntry}

// ParseRole maps a role name onto a known role. Matching ignores case and surrounding space.
func ParseRole(value string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(value)))
	for _, known := range Roles {
		if r == known {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", value)
}

// User statuses.
const (
	UserActive   = "active"
	UserInactive = "inactive"
)

// User is an account known to the ledger.
type User struct {
	ID        string     `json:"id"`
	Email     string     `json:"email"`
	Name      string     `json:"name"`
	Role      Role       `json:"role"`
	Status    string     `json:"status,omitempty"`
	LastLogin *time.Time `json:"last_login,omitempty"`
}

// Session is the resolved identity behind an access token.
type Session struct {
	Authenticated bool   `json:"authenticated"`
	User          User   `json:"user"`
	Role          Role   `json:"role"`
	AccessToken   string `json:"-"`
}
