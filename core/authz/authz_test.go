package authz

import (
	"html/template"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/masomo-portal/core/session"
)

// spyQuerier wraps a real store and counts permission lookups.
type spyQuerier struct {
	*session.Store
	permChecks int
}

func (q *spyQuerier) HasPermission(perm string) bool {
	q.permChecks++
	return q.Store.HasPermission(perm)
}

func storeAs(role session.Role) *session.Store {
	s := session.NewStore(nil)
	if role != "" {
		s.Login(session.Identity{ID: "1", Name: "Test", Role: role})
	}
	return s
}

func TestProtect(t *testing.T) {
	adminPrincipal := []session.Role{session.RoleAdmin, session.RolePrincipal}

	tests := []struct {
		name         string
		role         session.Role
		allowed      []session.Role
		fallback     string
		wantOutcome  Outcome
		wantLocation string
		wantDenial   *Denial
	}{
		{
			name: "unauthenticated", allowed: []session.Role{session.RoleAdmin},
			wantOutcome: RedirectLogin, wantLocation: "/login",
		},
		{
			name: "unauthenticated with fallback", allowed: []session.Role{session.RoleAdmin}, fallback: "/dashboard",
			wantOutcome: RedirectLogin, wantLocation: "/login",
		},
		{
			name: "student without fallback", role: session.RoleStudent, allowed: adminPrincipal,
			wantOutcome: Deny,
			wantDenial:  &Denial{CurrentRole: session.RoleStudent, AllowedRoles: adminPrincipal},
		},
		{
			name: "student with fallback", role: session.RoleStudent, allowed: adminPrincipal, fallback: "/dashboard",
			wantOutcome: RedirectFallback, wantLocation: "/dashboard",
		},
		{name: "principal allowed", role: session.RolePrincipal, allowed: adminPrincipal, wantOutcome: Render},
		{
			name: "admin is not implicitly a teacher", role: session.RoleAdmin, allowed: []session.Role{session.RoleTeacher},
			wantOutcome: Deny,
			wantDenial:  &Denial{CurrentRole: session.RoleAdmin, AllowedRoles: []session.Role{session.RoleTeacher}},
		},
		{
			name: "empty allow-list denies", role: session.RoleAdmin,
			wantOutcome: Deny,
			wantDenial:  &Denial{CurrentRole: session.RoleAdmin},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Protect(storeAs(tt.role), tt.allowed, tt.fallback)
			assert.Equal(t, tt.wantOutcome, got.Outcome, "outcome %s", got.Outcome)
			assert.Equal(t, tt.wantLocation, got.Location)
			if tt.wantDenial == nil {
				assert.Nil(t, got.Denial)
				return
			}
			require.NotNil(t, got.Denial)
			assert.Equal(t, tt.wantDenial.CurrentRole, got.Denial.CurrentRole)
			assert.ElementsMatch(t, tt.wantDenial.AllowedRoles, got.Denial.AllowedRoles)
		})
	}
}

func TestDenial_Allowed(t *testing.T) {
	d := Denial{
		CurrentRole:  session.RoleStudent,
		AllowedRoles: []session.Role{session.RoleAdmin, session.RolePrincipal},
	}
	assert.Equal(t, "admin, principal", d.Allowed())
}

func TestGate_Allows(t *testing.T) {
	tests := []struct {
		name           string
		role           session.Role
		gate           Gate
		want           bool
		wantPermChecks int
	}{
		{name: "no checks, anonymous", gate: Gate{}, want: true},
		{name: "no checks", role: session.RoleStudent, gate: Gate{}, want: true},
		{name: "role passes", role: session.RoleTeacher, gate: Gate{Roles: []session.Role{session.RoleTeacher}}, want: true},
		{name: "role fails", role: session.RoleStudent, gate: Gate{Roles: []session.Role{session.RoleTeacher}}, want: false},
		{name: "permission passes", role: session.RoleAccountant, gate: Gate{Permission: "finance"}, want: true, wantPermChecks: 1},
		{name: "permission fails", role: session.RoleTeacher, gate: Gate{Permission: "finance"}, want: false, wantPermChecks: 1},
		{
			name: "role fails short-circuits permission", role: session.RoleStudent,
			gate: Gate{Roles: []session.Role{session.RoleAccountant}, Permission: "finance"}, want: false,
		},
		{
			name: "both pass", role: session.RoleAccountant,
			gate: Gate{Roles: []session.Role{session.RoleAccountant}, Permission: "finance.export"}, want: true, wantPermChecks: 1,
		},
		{
			name: "role passes, permission fails", role: session.RolePrincipal,
			gate: Gate{Roles: []session.Role{session.RolePrincipal}, Permission: "finance"}, want: false, wantPermChecks: 1,
		},
		{name: "anonymous with permission", gate: Gate{Permission: "dashboard"}, want: false, wantPermChecks: 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := &spyQuerier{Store: storeAs(tt.role)}
			assert.Equal(t, tt.want, tt.gate.Allows(q))
			assert.Equal(t, tt.wantPermChecks, q.permChecks)
		})
	}
}

func TestGate_Render(t *testing.T) {
	children := template.HTML(`<button>Export</button>`)
	fallback := template.HTML(`<span>read only</span>`)
	g := Gate{Permission: "finance.export"}

	assert.Equal(t, children, g.Render(storeAs(session.RoleAccountant), children))
	assert.Equal(t, template.HTML(""), g.Render(storeAs(session.RoleTeacher), children))
	assert.Equal(t, fallback, g.Render(storeAs(session.RoleTeacher), children, fallback))
}
