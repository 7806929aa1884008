package db

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/sujalbistaa/blurtbox/internal/models"
)

// DefaultURL is used when no DATABASE_URL is configured.
const DefaultURL = "sqlite://blurtbox.db"

// Init opens the local store named by dbURL and migrates it.
// URLs must start with "sqlite://" or "postgres://".
func Init(dbURL string) (*gorm.DB, error) {
	if dbURL == "" {
		dbURL = DefaultURL
		slog.Info("DATABASE_URL not set, using default", "url", dbURL)
	}

	var dialector gorm.Dialector
	switch {
	case strings.HasPrefix(dbURL, "postgres://"):
		dialector = postgres.Open(dbURL)
		slog.Info("connecting to PostgreSQL store")
	case strings.HasPrefix(dbURL, "sqlite://"):
		dsn := strings.TrimPrefix(dbURL, "sqlite://")
		dialector = sqlite.Open(dsn)
		slog.Info("connecting to SQLite store", "path", dsn)
	default:
		return nil, fmt.Errorf("invalid DATABASE_URL %q: must start with postgres:// or sqlite://", dbURL)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite serialises writers anyway; one connection keeps in-memory
	// databases coherent.
	if dialector.Name() == "sqlite" {
		sqlDB.SetMaxOpenConns(1)
	} else {
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetMaxOpenConns(100)
	}

	if err := db.AutoMigrate(&models.Setting{}); err != nil {
		return nil, fmt.Errorf("migrating store: %w", err)
	}

	slog.Info("local store ready")
	return db, nil
}
