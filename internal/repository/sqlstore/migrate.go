package sqlstore

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
)

//go:embed migrations
var migrationsFS embed.FS

// migrateUp applies every pending migration for the dialect. It opens its own
// short-lived handle because closing a migrate instance closes its database.
func migrateUp(d Dialect, dsn string) error {
	db, err := sqlx.Open(d.driverName(), dsn)
	if err != nil {
		return fmt.Errorf("sqlstore: opening migration handle: %w", err)
	}

	src, err := iofs.New(migrationsFS, "migrations/"+string(d))
	if err != nil {
		db.Close()
		return fmt.Errorf("sqlstore: reading embedded migrations: %w", err)
	}

	var driver database.Driver
	switch d {
	case Postgres:
		driver, err = migratepostgres.WithInstance(db.DB, &migratepostgres.Config{})
	default:
		driver, err = migratesqlite.WithInstance(db.DB, &migratesqlite.Config{})
	}
	if err != nil {
		src.Close()
		db.Close()
		return fmt.Errorf("sqlstore: preparing %s migration driver: %w", d, err)
	}

	m, err := migrate.NewWithInstance("iofs", src, string(d), driver)
	if err != nil {
		src.Close()
		driver.Close()
		return fmt.Errorf("sqlstore: creating migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("sqlstore: applying migrations: %w", err)
	}
	return nil
}
