// Package mpostgres is the connection hub every postgres repository
// shares: one *sql.DB pool, opened once, reused by every unit of work.
package mpostgres

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/ledgerflow/paymentcore/common/mlog"
)

// PostgresConnection is a hub which deals with the postgres connection
// pool and schema migrations.
type PostgresConnection struct {
	ConnectionString string
	MigrationsPath   string
	Logger           mlog.Logger

	DB        *sql.DB
	Connected bool
}

// Connect opens the connection pool, applies pending migrations if
// MigrationsPath is set, and pings to confirm reachability.
func (pc *PostgresConnection) Connect() error {
	db, err := sql.Open("pgx", pc.ConnectionString)
	if err != nil {
		return fmt.Errorf("open postgres connection: %w", err)
	}

	if pc.MigrationsPath != "" {
		if err := pc.migrate(db); err != nil {
			return err
		}
	}

	if err := db.Ping(); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}

	pc.DB = db
	pc.Connected = true

	pc.Logger.Info("connected to postgres")

	return nil
}

func (pc *PostgresConnection) migrate(db *sql.DB) error {
	driver, err := postgres.WithInstance(db, &postgres.Config{MultiStatementEnabled: true})
	if err != nil {
		return fmt.Errorf("build migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+pc.MigrationsPath, "postgres", driver)
	if err != nil {
		return fmt.Errorf("load migrations: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}

	return nil
}

// GetDB returns the connection pool, connecting lazily if necessary.
func (pc *PostgresConnection) GetDB() (*sql.DB, error) {
	if pc.DB == nil {
		if err := pc.Connect(); err != nil {
			return nil, err
		}
	}

	return pc.DB, nil
}

// HealthCheck reports whether the pool is connected and reachable.
func (pc *PostgresConnection) HealthCheck() bool {
	if !pc.Connected || pc.DB == nil {
		return false
	}

	return pc.DB.Ping() == nil
}
