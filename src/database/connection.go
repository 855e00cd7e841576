package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/nas-ai/uploads-api/src/config"
	"github.com/sirupsen/logrus"
)

// Supported journal drivers
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// DB holds the journal connection pool
type DB struct {
	*sql.DB
	driver string
	logger *logrus.Logger
}

// NewJournalConnection opens the operation journal database.
// CRITICAL: Fails fast if connection cannot be established
func NewJournalConnection(cfg *config.Config, logger *logrus.Logger) (*DB, error) {
	switch cfg.JournalDriver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported journal driver %q", cfg.JournalDriver)
	}

	logger.WithField("driver", cfg.JournalDriver).Info("Connecting to journal database...")

	db, err := sql.Open(cfg.JournalDriver, cfg.JournalDSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(cfg.DBMaxOpenConns)
	db.SetMaxIdleConns(cfg.DBMaxIdleConns)
	if cfg.JournalDriver == DriverSQLite {
		// single writer
		db.SetMaxOpenConns(1)
	}

	if d, err := time.ParseDuration(cfg.DBConnMaxLifetime); err == nil {
		db.SetConnMaxLifetime(d)
	} else {
		logger.Warnf("Invalid DBConnMaxLifetime '%s', using default 5m", cfg.DBConnMaxLifetime)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	// CRITICAL: Fail-fast - Verify connection works
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("CRITICAL: failed to ping database (fail-fast): %w", err)
	}

	logger.WithField("driver", cfg.JournalDriver).Info("Journal database connection established")

	return &DB{
		DB:     db,
		driver: cfg.JournalDriver,
		logger: logger,
	}, nil
}

// X wraps the pool for sqlx based repositories.
func (db *DB) X() *sqlx.DB {
	return sqlx.NewDb(db.DB, db.driver)
}

// Driver returns the driver name the pool was opened with.
func (db *DB) Driver() string {
	return db.driver
}

// Close closes the database connection pool
func (db *DB) Close() error {
	db.logger.Info("Closing journal database connection...")
	return db.DB.Close()
}

// HealthCheck verifies the database connection is still alive
func (db *DB) HealthCheck(ctx context.Context) error {
	if err := db.PingContext(ctx); err != nil {
		db.logger.WithError(err).Error("Journal database health check failed")
		return fmt.Errorf("database health check failed: %w", err)
	}
	return nil
}
