// Package authz turns Session State queries into page and fragment level decisions.
// It is advisory only: the data behind a page must still be guarded by whoever serves it.
package authz

import "github.com/trezcool/masomo-portal/core/session"

// LoginPath is where unauthenticated visitors are sent.
const LoginPath = "/login"

// Querier is the read surface of session.Store.
type Querier interface {
	IsAuthenticated() bool
	Role() (session.Role, bool)
	HasRole(roles ...session.Role) bool
	HasPermission(perm string) bool
}

var _ Querier = (*session.Store)(nil)

type Outcome int

const (
	Render Outcome = iota
	RedirectLogin
	RedirectFallback
	Deny
)

func (o Outcome) String() string {
	switch o {
	case RedirectLogin:
		return "redirect-login"
	case RedirectFallback:
		return "redirect-fallback"
	case Deny:
		return "deny"
	default:
		return "render"
	}
}

// Denial describes why an authenticated actor was refused a page.
type Denial struct {
	CurrentRole  session.Role
	AllowedRoles []session.Role
}

// Allowed renders the accepted roles, eg. "admin, principal".
func (d Denial) Allowed() string {
	return session.JoinRoles(d.AllowedRoles)
}

type Decision struct {
	Outcome  Outcome
	Location string  // set for redirects
	Denial   *Denial // set for Deny
}

// Protect decides what a page guarded by allowed roles shows to q.
// Authentication is always checked before authorization and roles match exactly.
func Protect(q Querier, allowed []session.Role, fallbackPath string) Decision {
	if !q.IsAuthenticated() {
		return Decision{Outcome: RedirectLogin, Location: LoginPath}
	}
	if !q.HasRole(allowed...) {
		if fallbackPath != "" {
			return Decision{Outcome: RedirectFallback, Location: fallbackPath}
		}
		role, _ := q.Role()
		return Decision{
			Outcome: Deny,
			Denial: &Denial{
				CurrentRole:  role,
				AllowedRoles: append([]session.Role(nil), allowed...),
			},
		}
	}
	return Decision{Outcome: Render}
}
