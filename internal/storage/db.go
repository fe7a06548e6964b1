// Package storage persists a board to Postgres: the published events as an
// append-only log and the object table as a snapshot.
package storage

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"localboard/internal/logger"
)

var log = logger.Tag("storage")

var ErrNotConfigured = errors.New("storage: no database configured")

// Options configures the database connection.
type Options struct {
	DSN          string
	MaxIdleConns int
	MaxOpenConns int
	Migrate      bool
}

// Connect opens the database and, when asked, migrates the tables.
func Connect(opts Options) (*gorm.DB, error) {
	if opts.DSN == "" {
		return nil, ErrNotConfigured
	}
	db, err := gorm.Open(postgres.Open(opts.DSN), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(max(opts.MaxIdleConns, 1))
	sqlDB.SetMaxOpenConns(max(opts.MaxOpenConns, 1))
	sqlDB.SetConnMaxLifetime(time.Hour)
	log.Infof("database connected")

	if opts.Migrate {
		if err := Migrate(db); err != nil {
			return nil, err
		}
	}
	return db, nil
}

// Migrate creates or updates the storage tables.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&EventRecord{}, &ObjectRecord{}); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	log.Infof("database migration completed")
	return nil
}

// Close releases the connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
