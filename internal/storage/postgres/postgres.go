// Package postgres implements the storage.Backend interface on PostgreSQL
// through the GORM backend.
package postgres

import (
	"fmt"
	"log/slog"

	"github.com/WCArena/pudscan/internal/config"
	"github.com/WCArena/pudscan/internal/database"
	gormstorage "github.com/WCArena/pudscan/internal/storage/gorm"

	"gorm.io/gorm"
)

// maxOpenConns bounds the pool shared by the writer and lookups.
const maxOpenConns = 10

// New creates a GORM backend that connects to Postgres on Init.
func New(cfg config.DBConfig, logger *slog.Logger) *gormstorage.Backend {
	return gormstorage.New(gormstorage.Dependencies{
		Open:   func() (*gorm.DB, error) { return Open(cfg) },
		Logger: logger,
	})
}

// Open connects to Postgres and verifies the connection.
func Open(cfg config.DBConfig) (*gorm.DB, error) {
	db, err := database.GetPostgresDB(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to access sql interface: %w", err)
	}
	if err = sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to validate connection: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	return db, nil
}
