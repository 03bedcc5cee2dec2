package session

import (
	"strings"

	"github.com/pkg/errors"
)

// Role is the single actor category held by an Identity.
type Role string

// Roles
const (
	RoleAdmin            Role = "admin"
	RolePrincipal        Role = "principal"
	RoleTeacher          Role = "teacher"
	RoleAccountant       Role = "accountant"
	RoleLibrarian        Role = "librarian"
	RoleTransportManager Role = "transport_manager"
	RoleStudent          Role = "student"
	RoleParent           Role = "parent"
)

var (
	ErrInvalidRole = errors.New("invalid role")

	AllRoles = []Role{
		RoleAdmin,
		RolePrincipal,
		RoleTeacher,
		RoleAccountant,
		RoleLibrarian,
		RoleTransportManager,
		RoleStudent,
		RoleParent,
	}

	Roles = []RoleInfo{
		{Name: "Administrator", Value: RoleAdmin},
		{Name: "Principal", Value: RolePrincipal},
		{Name: "Teacher", Value: RoleTeacher},
		{Name: "Accountant", Value: RoleAccountant},
		{Name: "Librarian", Value: RoleLibrarian},
		{Name: "Transport Manager", Value: RoleTransportManager},
		{Name: "Student", Value: RoleStudent},
		{Name: "Parent / Guardian", Value: RoleParent},
	}
)

type RoleInfo struct {
	Name  string `json:"name"`
	Value Role   `json:"value"`
}

// ParseRole returns the Role matching s exactly.
func ParseRole(s string) (Role, error) {
	role := Role(s)
	if !role.Valid() {
		return "", errors.Wrapf(ErrInvalidRole, "%q", s)
	}
	return role, nil
}

// ParseRoles parses every value of ss, failing on the first unknown role.
func ParseRoles(ss ...string) ([]Role, error) {
	roles := make([]Role, 0, len(ss))
	for _, s := range ss {
		role, err := ParseRole(s)
		if err != nil {
			return nil, err
		}
		roles = append(roles, role)
	}
	return roles, nil
}

func (r Role) Valid() bool {
	for _, role := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

func (r Role) String() string { return string(r) }

// DisplayName returns the human readable name of the role, or the raw value for unknown roles.
func (r Role) DisplayName() string {
	for _, info := range Roles {
		if info.Value == r {
			return info.Name
		}
	}
	return string(r)
}

// JoinRoles renders roles as a comma separated list, keeping their order. eg. "admin, principal"
func JoinRoles(roles []Role) string {
	values := make([]string, 0, len(roles))
	for _, role := range roles {
		values = append(values, string(role))
	}
	return strings.Join(values, ", ")
}

func containsRole(roles []Role, role Role) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}
