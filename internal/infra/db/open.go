// Package db opens the persistent store and manages its schema. PostgreSQL
// (DATABASE_URL) and SQLite (DATABASE_PATH) are both supported; the batch
// defaults to SQLite so a single file holds the whole pipeline state.
package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"note-curator/internal/resilience/retry"
)

// Driver identifies which database backend a connection uses.
type Driver string

const (
	DriverSQLite   Driver = "sqlite"
	DriverPostgres Driver = "postgres"
)

// ConnectionConfig holds database connection pool configuration.
type ConnectionConfig struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// DefaultConnectionConfig returns the default connection pool configuration.
// SQLite keeps a single writer connection; PostgreSQL pools normally.
func DefaultConnectionConfig(driver Driver) ConnectionConfig {
	if driver == DriverSQLite {
		return ConnectionConfig{
			MaxOpenConns:    1,
			MaxIdleConns:    1,
			ConnMaxLifetime: 1 * time.Hour,
			ConnMaxIdleTime: 30 * time.Minute,
		}
	}
	return ConnectionConfig{
		MaxOpenConns:    10,
		MaxIdleConns:    5,
		ConnMaxLifetime: 1 * time.Hour,
		ConnMaxIdleTime: 30 * time.Minute,
	}
}

// Open creates the database connection for the run. DATABASE_URL selects
// PostgreSQL; otherwise databasePath is opened as a SQLite file (its parent
// directory is created when missing).
func Open(databasePath string) (*sql.DB, Driver, error) {
	if dsn := os.Getenv("DATABASE_URL"); dsn != "" {
		conn, err := openWith("pgx", dsn, DriverPostgres)
		return conn, DriverPostgres, err
	}

	if dir := filepath.Dir(databasePath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, DriverSQLite, fmt.Errorf("Open: create database directory: %w", err)
		}
	}

	conn, err := openWith("sqlite", databasePath, DriverSQLite)
	return conn, DriverSQLite, err
}

func openWith(driverName, dsn string, driver Driver) (*sql.DB, error) {
	conn, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("Open: %w", err)
	}

	cfg := DefaultConnectionConfig(driver)
	conn.SetMaxOpenConns(cfg.MaxOpenConns)
	conn.SetMaxIdleConns(cfg.MaxIdleConns)
	conn.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	conn.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := retry.Do(ctx, retry.StorePolicy(), func() error {
		return conn.PingContext(ctx)
	}); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("Open: ping: %w", err)
	}

	slog.Info("database connection established",
		slog.String("driver", string(driver)),
		slog.Int("max_open_conns", cfg.MaxOpenConns))

	return conn, nil
}
