// Package databasetest opens throwaway SQLite databases with the worker schema.
package databasetest

import (
	"fmt"
	"path/filepath"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/vipul43/tmdb-sync-worker/internal/database"
	"github.com/vipul43/tmdb-sync-worker/internal/models"
)

// Open creates a file-backed SQLite database under t.TempDir and migrates
// every model. A single connection keeps concurrent tests free of lock errors.
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", filepath.Join(t.TempDir(), "worker.db"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		NowFunc: database.NowUTC,
		Logger:  logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(
		&models.SyncJob{},
		&models.SyncErrorLog{},
		&models.Genre{},
		&models.Movie{},
		&models.SyncBatchTask{},
	); err != nil {
		t.Fatalf("failed to migrate sqlite: %v", err)
	}

	return db
}
