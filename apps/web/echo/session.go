package echoweb

import (
	"context"
	"net/http"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/core/session"
	sessionstore "github.com/trezcool/masomo-portal/storage/session"
)

const (
	contextStoreKey   = "session.store"
	contextIdleKey    = "session.idle"
	contextAppNameKey = "appName"
	lastSeenKey       = "masomo.lastSeen"
)

var errNoStoreInCtx = errors.New("session store not found in echo.Context")

// loadAndSave loads the browser's scs session and commits it right before the response is written.
// Unlike scs.LoadAndSave it does not buffer the response, so bodies written by the HTTP error handler survive.
func loadAndSave(sm *scs.SessionManager, logger core.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var token string
			if cookie, err := c.Cookie(sm.Cookie.Name); err == nil {
				token = cookie.Value
			}
			ctx, err := sm.Load(c.Request().Context(), token)
			if err != nil {
				return errors.Wrap(err, "loading session")
			}
			c.SetRequest(c.Request().WithContext(ctx))

			res := c.Response()
			res.Before(func() {
				switch sm.Status(ctx) {
				case scs.Modified:
					token, expiry, err := sm.Commit(ctx)
					if err != nil {
						logger.Error("committing session", errors.Wrap(err, "committing session"))
						return
					}
					writeSessionCookie(res, sm, token, expiry)
				case scs.Destroyed:
					writeSessionCookie(res, sm, "", time.Time{})
				}
			})
			return next(c)
		}
	}
}

func writeSessionCookie(w http.ResponseWriter, sm *scs.SessionManager, token string, expiry time.Time) {
	cookie := &http.Cookie{
		Name:     sm.Cookie.Name,
		Value:    token,
		Path:     sm.Cookie.Path,
		Domain:   sm.Cookie.Domain,
		Secure:   sm.Cookie.Secure,
		HttpOnly: sm.Cookie.HttpOnly,
		SameSite: sm.Cookie.SameSite,
	}
	if expiry.IsZero() {
		cookie.Expires = time.Unix(1, 0)
		cookie.MaxAge = -1
	} else if sm.Cookie.Persist {
		cookie.Expires = time.Unix(expiry.Unix()+1, 0)
		cookie.MaxAge = int(time.Until(expiry).Seconds() + 1)
	}

	w.Header().Add("Set-Cookie", cookie.String())
	w.Header().Add("Vary", "Cookie")
	w.Header().Add("Cache-Control", `no-cache="Set-Cookie"`)
}

// storeMiddleware restores the browser's Session Store and applies the idle timeout before any handler runs.
func (s *Server) storeMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()
		idle := &idleTimeout{
			sm:    s.opts.Sessions,
			ctx:   ctx,
			after: s.opts.Conf.Session.IdleTimeout,
			now:   s.opts.Clock,
		}
		store := session.NewStore(
			sessionstore.NewSCSPersister(ctx, s.opts.Sessions),
			session.WithTimeout(idle),
			session.WithLogger(s.opts.Logger),
			session.WithClock(s.opts.Clock),
		)
		idle.check(store)

		c.Set(contextStoreKey, store)
		c.Set(contextIdleKey, idle)
		c.Set(contextAppNameKey, s.opts.Conf.AppName)
		return next(c)
	}
}

func getContextStore(c echo.Context) (*session.Store, error) {
	if store, ok := c.Get(contextStoreKey).(*session.Store); ok {
		return store, nil
	}
	return nil, errNoStoreInCtx
}

// idleTimeout is the session-timeout collaborator of the browser portal.
// It is evaluated on every request instead of running a timer.
type idleTimeout struct {
	sm    *scs.SessionManager
	ctx   context.Context
	after time.Duration
	now   func() time.Time
}

var _ session.TimeoutCanceler = (*idleTimeout)(nil)

// ClearTimeout cancels the pending expiry.
func (t *idleTimeout) ClearTimeout() {
	t.sm.Remove(t.ctx, lastSeenKey)
}

// touch restarts the countdown.
func (t *idleTimeout) touch() {
	t.sm.Put(t.ctx, lastSeenKey, t.now().UnixNano())
}

// check logs store out once if it has been idle for too long, and restarts the countdown otherwise.
func (t *idleTimeout) check(store *session.Store) (expired bool) {
	if t.after <= 0 || !store.IsAuthenticated() {
		return false
	}
	if last, ok := t.sm.Get(t.ctx, lastSeenKey).(int64); ok && t.now().Sub(time.Unix(0, last)) > t.after {
		store.Logout(session.LogoutSessionExpired)
		return true
	}
	t.touch()
	return false
}

func getContextIdle(c echo.Context) *idleTimeout {
	idle, _ := c.Get(contextIdleKey).(*idleTimeout)
	return idle
}
