package authz

import (
	"html/template"

	"github.com/trezcool/masomo-portal/core/session"
)

// Gate hides a UI fragment unless the actor passes every supplied check.
// A nil Roles skips the role check, an empty Permission skips the permission check.
type Gate struct {
	Roles      []session.Role
	Permission string
}

type predicate func(Querier) bool

func (g Gate) predicates() []predicate {
	preds := make([]predicate, 0, 2)
	if g.Roles != nil {
		preds = append(preds, func(q Querier) bool { return q.HasRole(g.Roles...) })
	}
	if g.Permission != "" {
		preds = append(preds, func(q Querier) bool { return q.HasPermission(g.Permission) })
	}
	return preds
}

// Allows runs the role check then the permission check, stopping at the first failure.
func (g Gate) Allows(q Querier) bool {
	for _, allowed := range g.predicates() {
		if !allowed(q) {
			return false
		}
	}
	return true
}

// Render returns children when q passes the gate, fallback otherwise (empty by default).
func (g Gate) Render(q Querier, children template.HTML, fallback ...template.HTML) template.HTML {
	if g.Allows(q) {
		return children
	}
	if len(fallback) > 0 {
		return fallback[0]
	}
	return ""
}
