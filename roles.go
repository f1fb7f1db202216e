package credentials

import "strings"

// Role is the account's role
type Role string

const (
	// RoleStandard is the default role for every new account
	RoleStandard Role = "standard"
	// RoleAdministrator is an operator account
	RoleAdministrator Role = "administrator"
)

// IsValid checks if the role is one of the predefined valid roles
func (r Role) IsValid() bool {
	switch r {
	case RoleStandard, RoleAdministrator:
		return true
	default:
		return false
	}
}

// String implements fmt.Stringer
func (r Role) String() string {
	return string(r)
}

// ParseRole converts a string into a Role, accepting a few aliases
func ParseRole(value string) (Role, bool) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "standard", "user":
		return RoleStandard, true
	case "administrator", "admin":
		return RoleAdministrator, true
	default:
		return "", false
	}
}
