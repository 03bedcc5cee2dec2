package session

import (
	"fmt"
	"sort"
)

// Wildcard grants every permission. Only RoleAdmin holds it.
const Wildcard = "*"

type permissionSet map[string]struct{}

// permissions is the policy table. Entries are matched exactly (no prefix matching):
// a role that needs both a module and one of its sub-actions lists both.
var permissions = newPermissionTable(map[Role][]string{
	RoleAdmin: {Wildcard},
	RolePrincipal: {
		"dashboard",
		"students", "students.view", "students.export",
		"staff", "staff.view",
		"attendance", "attendance.view", "attendance.export",
		"exams", "exams.view", "exams.results",
		"reports",
		"clubs", "facilities", "scholarships",
		"finance.view", "library.view", "transport.view",
		"notifications",
	},
	RoleTeacher: {
		"dashboard",
		"students.view",
		"attendance", "attendance.view", "attendance.mark",
		"exams", "exams.view", "exams.grade", "exams.results",
		"clubs",
		"notifications",
	},
	RoleAccountant: {
		"dashboard",
		"finance", "finance.view", "finance.invoices", "finance.payments", "finance.export",
		"scholarships",
		"reports",
		"notifications",
	},
	RoleLibrarian: {
		"dashboard",
		"library", "library.view", "library.loans", "library.export",
		"students.view",
		"notifications",
	},
	RoleTransportManager: {
		"dashboard",
		"transport", "transport.view", "transport.routes", "transport.tracking",
		"notifications",
	},
	RoleStudent: {
		"dashboard",
		"timetable",
		"attendance.self",
		"exams.results",
		"library.view",
		"clubs",
		"notifications",
	},
	RoleParent: {
		"dashboard",
		"children",
		"attendance.children",
		"exams.results",
		"finance.statements",
		"transport.tracking",
		"notifications",
	},
})

func newPermissionTable(entries map[Role][]string) map[Role]permissionSet {
	table := make(map[Role]permissionSet, len(entries))
	for role, perms := range entries {
		set := make(permissionSet, len(perms))
		for _, perm := range perms {
			set[perm] = struct{}{}
		}
		table[role] = set
	}
	if err := validatePermissionTable(table); err != nil {
		panic(err)
	}
	return table
}

// validatePermissionTable checks that every role has a non-empty entry and that only admins hold the Wildcard.
func validatePermissionTable(table map[Role]permissionSet) error {
	for _, role := range AllRoles {
		set, ok := table[role]
		if !ok || len(set) == 0 {
			return fmt.Errorf("session: no permissions defined for role %q", role)
		}
		if _, wild := set[Wildcard]; wild && role != RoleAdmin {
			return fmt.Errorf("session: role %q cannot hold the wildcard permission", role)
		}
	}
	for role := range table {
		if !role.Valid() {
			return fmt.Errorf("session: permissions defined for unknown role %q", role)
		}
	}
	return nil
}

// Allows reports whether role is granted perm by the policy table.
func Allows(role Role, perm string) bool {
	set, ok := permissions[role]
	if !ok {
		return false
	}
	if _, ok := set[Wildcard]; ok {
		return true
	}
	_, ok = set[perm]
	return ok
}

// PermissionsOf returns a sorted copy of the entries granted to role.
func PermissionsOf(role Role) []string {
	set, ok := permissions[role]
	if !ok {
		return nil
	}
	perms := make([]string, 0, len(set))
	for perm := range set {
		perms = append(perms, perm)
	}
	sort.Strings(perms)
	return perms
}
