package cache

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"github.com/RyanBlaney/sonido-camelot/analysis"
)

const (
	// DefaultDBFile is used when no path is configured
	DefaultDBFile = "sonido-camelot-cache.sqlite3"

	// DefaultSQLiteEntries bounds a SQLiteStore created with a non-positive size
	DefaultSQLiteEntries = 10000
)

// cachedResult is one stored analysis, serialised as JSON
type cachedResult struct {
	ID         string    `gorm:"primaryKey;type:varchar(36)"`
	ContentKey string    `gorm:"uniqueIndex:idx_content_key;type:varchar(64)"`
	Payload    []byte    `gorm:"not null"`
	AccessedAt time.Time `gorm:"index:idx_accessed_at"`
	CreatedAt  time.Time
}

func (cachedResult) TableName() string {
	return "analysis_results"
}

// SQLiteStore persists results in a SQLite file and evicts the least
// recently used rows beyond its size bound. Safe for concurrent use.
type SQLiteStore struct {
	db         *gorm.DB
	sqlDB      *sql.DB
	maxEntries int
}

// NewSQLiteStore opens or creates the cache database at path
func NewSQLiteStore(path string, maxEntries int) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultDBFile
	}
	if maxEntries <= 0 {
		maxEntries = DefaultSQLiteEntries
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating cache dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite cache: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	// one writer keeps sqlite free of lock contention
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&cachedResult{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}

	return &SQLiteStore{db: db, sqlDB: sqlDB, maxEntries: maxEntries}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (*analysis.AnalysisResult, bool, error) {
	var row cachedResult
	err := s.db.WithContext(ctx).Where("content_key = ?", key).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("querying cached result: %w", err)
	}

	var result analysis.AnalysisResult
	if err := json.Unmarshal(row.Payload, &result); err != nil {
		return nil, false, fmt.Errorf("decoding cached result: %w", err)
	}

	if err := s.db.WithContext(ctx).Model(&row).Update("accessed_at", time.Now()).Error; err != nil {
		return nil, false, fmt.Errorf("touching cached result: %w", err)
	}
	return &result, true, nil
}

func (s *SQLiteStore) Put(ctx context.Context, key string, result *analysis.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encoding result: %w", err)
	}

	now := time.Now()
	row := cachedResult{
		ID:         uuid.NewString(),
		ContentKey: key,
		Payload:    payload,
		AccessedAt: now,
		CreatedAt:  now,
	}

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "content_key"}},
			DoUpdates: clause.AssignmentColumns([]string{"payload", "accessed_at"}),
		}).Create(&row).Error
		if err != nil {
			return fmt.Errorf("storing result: %w", err)
		}
		return s.evict(tx)
	})
}

// evict removes the least recently used rows above the size bound
func (s *SQLiteStore) evict(tx *gorm.DB) error {
	var count int64
	if err := tx.Model(&cachedResult{}).Count(&count).Error; err != nil {
		return fmt.Errorf("counting cached results: %w", err)
	}
	excess := int(count) - s.maxEntries
	if excess <= 0 {
		return nil
	}

	var ids []string
	err := tx.Model(&cachedResult{}).
		Order("accessed_at ASC").
		Limit(excess).
		Pluck("id", &ids).Error
	if err != nil {
		return fmt.Errorf("selecting rows to evict: %w", err)
	}
	if err := tx.Where("id IN ?", ids).Delete(&cachedResult{}).Error; err != nil {
		return fmt.Errorf("evicting cached results: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Len(ctx context.Context) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&cachedResult{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("counting cached results: %w", err)
	}
	return int(count), nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}
