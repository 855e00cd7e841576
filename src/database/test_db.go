package database

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

// NewTestDatabase creates an in-memory SQLite database for testing.
// Repositories create their own tables through EnsureTable.
func NewTestDatabase(logger *logrus.Logger) (*DB, error) {
	db, err := sql.Open(DriverSQLite, ":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to open test database: %w", err)
	}

	// every new connection would see its own empty :memory: database
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping test database: %w", err)
	}

	logger.Debug("Test database (SQLite in-memory) initialized")

	return &DB{
		DB:     db,
		driver: DriverSQLite,
		logger: logger,
	}, nil
}
