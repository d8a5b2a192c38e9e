package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/sirupsen/logrus"
)

const pingTimeout = 5 * time.Second

// PoolConfig sizes the connection pool
type PoolConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Database wraps the postgres pool the repositories share
type Database struct {
	*sql.DB
	log *logrus.Entry
}

// NewDatabase opens a connection pool and waits for the first successful ping.
func NewDatabase(ctx context.Context, databaseURL string, pool PoolConfig, logger *logrus.Logger) (*Database, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(pool.MaxOpenConns)
	db.SetMaxIdleConns(pool.MaxIdleConns)
	db.SetConnMaxLifetime(pool.ConnMaxLifetime)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	log := logger.WithField("component", "database")
	log.WithFields(logrus.Fields{
		"max_open_conns": pool.MaxOpenConns,
		"max_idle_conns": pool.MaxIdleConns,
	}).Info("Connected to postgres")

	return &Database{DB: db, log: log}, nil
}

// Migrate applies every pending migration found under migrationsPath
func (d *Database) Migrate(migrationsPath string) error {
	driver, err := postgres.WithInstance(d.DB, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		"postgres",
		driver,
	)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, err := m.Version()
	if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
		return fmt.Errorf("failed to read migration version: %w", err)
	}

	if dirty {
		return fmt.Errorf("schema version %d is dirty, fix it manually before restarting", version)
	}

	d.log.WithField("version", version).Info("Schema is up to date")
	return nil
}

// Close releases the pool
func (d *Database) Close() error {
	if d.DB == nil {
		return nil
	}
	d.log.Info("Closing postgres pool")
	return d.DB.Close()
}
