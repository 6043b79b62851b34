package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// Role is the access level granted to an identity.
type Role string

const (
	RoleNone   Role = ""
	RoleAdmin  Role = "admin"
	RoleEditor Role = "editor"
	RoleViewer Role = "viewer"
)

// ParseRole normalises a role string. Unknown values map to RoleNone.
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin:
		return RoleAdmin
	case RoleEditor:
		return RoleEditor
	case RoleViewer:
		return RoleViewer
	default:
		return RoleNone
	}
}

// UnmarshalJSON decodes a role through ParseRole, so "Admin" and "admin"
// are the same role and unknown values become RoleNone.
func (r *Role) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = ParseRole(s)
	return nil
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	return ParseRole(string(r)) != RoleNone
}

// Identity is the "who am I" record returned for the active credential.
// It is only ever replaced as a whole.
type Identity struct {
	ID       EntityID `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Active   bool     `json:"is_active"`
	Role     Role     `json:"role"`
}

// RoleOf projects an optional identity onto its role.
func RoleOf(id *Identity) Role {
	if id == nil {
		return RoleNone
	}
	return id.Role
}

// User is an account as listed by the user-management endpoints.
type User struct {
	ID       EntityID `json:"id"`
	Username string   `json:"username"`
	Email    string   `json:"email"`
	Active   bool     `json:"is_active"`
	Role     Role     `json:"role"`
}

// Token is the payload returned by a successful credential exchange.
type Token struct {
	AccessToken string    `json:"access_token"`
	TokenType   string    `json:"token_type"`
	Expiry      time.Time `json:"expires_at,omitempty"`
}

// Credentials carries a username/password pair for the credential exchange.
type Credentials struct {
	Username string
	Password string
}
