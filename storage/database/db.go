package database

import (
	"embed"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/trezcool/goose"
	"github.com/xo/dburl"

	"github.com/trezcool/masomo-portal/core"
)

// supported drivers
const (
	Postgres = "postgres"
	SQLite3  = "sqlite3"
)

//go:embed migrations
var Migrations embed.FS // goose migrations of every supported driver, see MigrationsDir

// MigrationsDir returns the directory of driver's migrations in Migrations.
func MigrationsDir(driver string) string {
	return "migrations/" + driver
}

// Open connects to the database at conf.Database.URL (see github.com/xo/dburl) and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	u, err := dburl.Parse(conf.Database.URL)
	if err != nil {
		return nil, errors.Wrap(err, "parsing database url")
	}
	switch u.Driver {
	case Postgres, SQLite3:
	default:
		return nil, errors.Errorf("unsupported database driver: %s", u.Driver)
	}

	db, err := sqlx.Open(u.Driver, u.DSN)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if u.Driver == SQLite3 {
		// sqlite3 does not support concurrent writers
		db.SetMaxOpenConns(1)
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

// Migrate applies the pending migrations of db's driver.
func Migrate(db *sqlx.DB) error {
	if err := goose.SetDialect(db.DriverName()); err != nil {
		return errors.Wrap(err, "setting migrations dialect")
	}
	if err := goose.RunFS("up", db.DB, Migrations, MigrationsDir(db.DriverName())); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}
