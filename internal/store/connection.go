package store

import (
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/pterm/pterm"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Config holds the report database settings.
type Config struct {
	Path         string
	MaxOpenConns int
	MaxIdleConns int
	ConnMaxLife  time.Duration
}

// NewConnection opens the report database and migrates the schema.
// WAL mode plus a busy timeout keeps the single-writer/many-reader access
// pattern of the orchestrator from tripping SQLITE_BUSY.
func NewConnection(cfg *Config, log *pterm.Logger) (*gorm.DB, error) {
	dsn := cfg.Path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt: true,
		Logger:      logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open report database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database handle: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLife > 0 {
		sqlDB.SetConnMaxLifetime(cfg.ConnMaxLife)
	}

	if err := db.AutoMigrate(&Report{}, &ReportIssue{}); err != nil {
		return nil, fmt.Errorf("migrate report schema: %w", err)
	}

	log.Debug("Report database ready", log.Args("path", cfg.Path))
	return db, nil
}
