package sessionstore

import (
	"net/http"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/alexedwards/scs/v2"
	"github.com/alexedwards/scs/v2/memstore"
	"github.com/jmoiron/sqlx"

	"github.com/trezcool/masomo-portal/core"
	"github.com/trezcool/masomo-portal/storage/database"
)

// NewSessionManager returns the scs manager of the web portal.
// Sessions live in the sqlite3 database when there is one, in memory otherwise.
// A zero conf.Session.Lifetime keeps the scs default.
func NewSessionManager(conf *core.Config, db *sqlx.DB) *scs.SessionManager {
	sm := scs.New()
	if db != nil && db.DriverName() == database.SQLite3 {
		sm.Store = sqlite3store.New(db.DB)
	} else {
		sm.Store = memstore.New()
	}
	if conf.Session.Lifetime > 0 {
		sm.Lifetime = conf.Session.Lifetime
	}
	sm.Cookie.Name = conf.Session.CookieName
	sm.Cookie.Path = "/"
	sm.Cookie.HttpOnly = true
	sm.Cookie.SameSite = http.SameSiteLaxMode // good CSRF protection if HTTP GET doesn't modify anything
	sm.Cookie.Secure = conf.Session.CookieSecure
	return sm
}
