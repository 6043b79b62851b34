package domain

// DenyReason explains a negative guard decision.
type DenyReason string

const (
	DenyNone            DenyReason = ""
	DenyUnauthenticated DenyReason = "unauthenticated"
	DenyRoleMismatch    DenyReason = "role_mismatch"
	DenyRoleUnresolved  DenyReason = "role_unresolved"
)

// LoginPath is where denied navigation is sent.
const LoginPath = "/login"

// Decision is the outcome of a guard evaluation. A denial is an expected
// navigation outcome, not an error.
type Decision struct {
	Allowed  bool       `json:"allowed"`
	Redirect string     `json:"redirect,omitempty"`
	Reason   DenyReason `json:"reason,omitempty"`
	Role     Role       `json:"role,omitempty"`
}

// Allow returns a positive decision for role.
func Allow(role Role) Decision {
	return Decision{Allowed: true, Role: role}
}

// Deny returns a negative decision that redirects to the login screen.
func Deny(reason DenyReason, role Role) Decision {
	return Decision{Redirect: LoginPath, Reason: reason, Role: role}
}
