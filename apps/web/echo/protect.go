package echoweb

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core/authz"
	"github.com/trezcool/masomo-portal/core/session"
)

// protectRoute guards a page: unauthenticated visitors go to the login page and never reach the handler,
// other roles are sent to fallback or shown the Access Denied page.
func protectRoute(allowed []session.Role, fallback string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			store, err := getContextStore(c)
			if err != nil {
				return errors.Wrap(err, "protecting route")
			}

			d := authz.Protect(store, allowed, fallback)
			switch d.Outcome {
			case authz.RedirectLogin, authz.RedirectFallback:
				return c.Redirect(http.StatusFound, d.Location)
			case authz.Deny:
				return c.Render(http.StatusForbidden, "denied", newPageData(c, store, "Access Denied", d.Denial))
			default:
				return next(c)
			}
		}
	}
}
