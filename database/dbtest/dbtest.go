// Package dbtest opens throwaway SQLite databases for tests.
package dbtest

import (
	"fmt"
	"sync/atomic"

	"survey-voice-api/database"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memSeq atomic.Int64

// OpenInMemory returns a migrated SQLite database private to the caller
func OpenInMemory() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:survey_mem_%d?mode=memory&cache=shared&_foreign_keys=1", memSeq.Add(1))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// a single connection keeps shared-cache SQLite from reporting table locks
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}
