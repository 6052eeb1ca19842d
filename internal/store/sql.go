package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormLogger "gorm.io/gorm/logger"

	"github.com/agenthands/nutrigraph/internal/platform/logger"
)

// HistoryRecord is one persisted list.
type HistoryRecord struct {
	Key       string `gorm:"primaryKey;size:128"`
	Entries   string `gorm:"type:text;not null"`
	UpdatedAt time.Time
}

func (HistoryRecord) TableName() string { return "search_history" }

type SQLStore struct {
	log *logger.Logger
	db  *gorm.DB
}

// OpenSQLStore opens sqlite or postgres and migrates the history table.
func OpenSQLStore(driver, dsn string, log *logger.Logger) (*SQLStore, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(driver) {
	case "", "sqlite":
		dialector = sqlite.Open(dsn)
	case "postgres", "postgresql":
		dialector = postgres.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported sql driver %q", driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", driver, err)
	}
	return NewSQLStore(db, log)
}

// NewSQLStore wraps an open connection.
func NewSQLStore(db *gorm.DB, log *logger.Logger) (*SQLStore, error) {
	if err := db.AutoMigrate(&HistoryRecord{}); err != nil {
		return nil, fmt.Errorf("migrate search_history: %w", err)
	}
	return &SQLStore{log: logger.OrNop(log).With("store", "sql"), db: db}, nil
}

func (s *SQLStore) Load(ctx context.Context, key string) ([]string, error) {
	var rec HistoryRecord
	err := s.db.WithContext(ctx).Where("key = ?", key).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load history %s: %w", key, err)
	}
	return decodeEntries(rec.Entries)
}

func (s *SQLStore) Save(ctx context.Context, key string, entries []string) error {
	raw, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	rec := HistoryRecord{Key: key, Entries: raw, UpdatedAt: time.Now()}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"entries", "updated_at"}),
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("save history %s: %w", key, err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
