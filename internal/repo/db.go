// Package repo implements the data persistence layer for the update feed,
// backed by GORM. This file contains database bootstrapping helpers for
// SQLite (pure Go driver) and PostgreSQL, plus schema migrations.
package repo

import (
	"os"
	"path/filepath"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/dmakov/tg-update-store/internal/domain"
)

// SchemaVersion is recorded in schema_info by Migrate. Bump it together
// with any model change that alters the wire contract.
const SchemaVersion = 1

// OpenSQLite opens (or creates) a SQLite database and applies PRAGMAs.
func OpenSQLite(path string) (*gorm.DB, error) {
	// Fail early if parent directory does not exist (instead of sqlite "out of memory (14)" on Windows).
	if dir := filepath.Dir(path); dir != "." {
		if _, err := os.Stat(dir); err != nil {
			return nil, err
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	// PRAGMAs
	db.Exec("PRAGMA journal_mode=WAL;")
	db.Exec("PRAGMA synchronous=NORMAL;")
	db.Exec("PRAGMA foreign_keys=ON;")
	db.Exec("PRAGMA busy_timeout=5000;")

	// Pool
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(10)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// OpenPostgres opens a PostgreSQL database for production deployments where
// several ingesting processes share one store.
func OpenPostgres(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}

	if sqlDB, err := db.DB(); err == nil {
		sqlDB.SetMaxOpenConns(25)
		sqlDB.SetMaxIdleConns(10)
		sqlDB.SetConnMaxIdleTime(5 * time.Minute)
		sqlDB.SetConnMaxLifetime(30 * time.Minute)
	}

	return db, nil
}

// Migrate applies the schema. Entity tables go first so payload foreign
// keys have something to reference, then payload tables, then the dispatch
// and association tables. Finally the schema_info row is stamped.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(
		&domain.User{},
		&domain.Chat{},
		&domain.Message{},
		&domain.EditedMessage{},
		&domain.CallbackQuery{},
		&domain.InlineQuery{},
		&domain.ChosenInlineResult{},
		&domain.ShippingQuery{},
		&domain.PreCheckoutQuery{},
		&domain.Poll{},
		&domain.PollAnswer{},
		&domain.ChatMemberUpdate{},
		&domain.ChatJoinRequest{},
		&domain.Update{},
		&domain.UserChat{},
		&domain.Conversation{},
		&domain.RequestLimiterEntry{},
		&domain.SchemaInfo{},
	); err != nil {
		return err
	}

	info := domain.SchemaInfo{ID: 1, Version: SchemaVersion}
	return db.Save(&info).Error
}
