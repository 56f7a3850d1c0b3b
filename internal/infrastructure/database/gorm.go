package database

import (
	"fmt"

	"github.com/you/findmyseat/internal/infrastructure/repositories"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Open creates a database connection for the sqlite or postgres state store
func Open(driver, dsn string) (*gorm.DB, error) {
	config := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	switch driver {
	case "sqlite":
		if dsn == "" {
			dsn = "findmyseat.db"
		}
		return gorm.Open(sqlite.Open(dsn), config)
	case "postgres":
		if dsn == "" {
			return nil, fmt.Errorf("postgres storage requires a dsn")
		}
		return gorm.Open(postgres.Open(dsn), config)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// AutoMigrate creates the client state table. Casbin's adapter creates its own
// table when it is constructed.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&repositories.DBStateEntry{}); err != nil {
		return fmt.Errorf("failed to migrate client_state table: %w", err)
	}
	return nil
}
