// Package store keeps a history of scored sessions in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"github.com/August13742/Homebrew-Karaoke/scoring"
)

// DefaultDBFile is used when no path is configured.
const DefaultDBFile = "karaoke.sqlite3"

// ErrNotFound is returned when a session id is unknown.
var ErrNotFound = errors.New("session not found")

// Record is one finished session.
type Record struct {
	ID            string    `gorm:"primaryKey;type:varchar(36)" json:"id"`
	Song          string    `gorm:"index:idx_song" json:"song"`
	Chart         string    `json:"chart"`
	KeyShift      int       `json:"key_shift"`
	Score         float64   `json:"score"`
	Accuracy      float64   `json:"accuracy"`
	ScoredSeconds float64   `json:"scored_seconds"`
	Perfect       int       `json:"perfect"`
	Good          int       `json:"good"`
	Ok            int       `json:"ok"`
	Miss          int       `json:"miss"`
	Silent        int       `json:"silent"`
	CreatedAt     time.Time `gorm:"index:idx_created" json:"created_at"`
}

// NewRecord summarizes a final score. A fresh id is assigned when id is empty.
func NewRecord(id, song, chart string, keyShift int, st scoring.ScoreState) Record {
	if id == "" {
		id = uuid.NewString()
	}
	return Record{
		ID:            id,
		Song:          song,
		Chart:         chart,
		KeyShift:      keyShift,
		Score:         st.Cumulative,
		Accuracy:      st.Accuracy(),
		ScoredSeconds: st.ScoredSeconds,
		Perfect:       st.Count(scoring.Perfect),
		Good:          st.Count(scoring.Good),
		Ok:            st.Count(scoring.Ok),
		Miss:          st.Count(scoring.Miss),
		Silent:        st.Count(scoring.Silent),
	}
}

// Store wraps the gorm handle.
type Store struct {
	db    *gorm.DB
	sqlDB *sql.DB
}

// Open creates or opens the database at path and migrates the schema.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating db dir: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("getting sql.DB from gorm: %w", err)
	}
	// sqlite serializes writers anyway
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Record{}); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &Store{db: db, sqlDB: sqlDB}, nil
}

// Close releases the database.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// Save inserts or replaces a record.
func (s *Store) Save(ctx context.Context, rec Record) error {
	if rec.ID == "" {
		return errors.New("record has no id")
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("saving session %s: %w", rec.ID, err)
	}
	return nil
}

// Get loads one record.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return rec, fmt.Errorf("loading session %s: %w", id, err)
	}
	return rec, nil
}

// List returns the most recent records first. limit <= 0 returns all.
func (s *Store) List(ctx context.Context, song string, limit int) ([]Record, error) {
	q := s.db.WithContext(ctx).Order("created_at DESC")
	if song != "" {
		q = q.Where("song = ?", song)
	}
	if limit > 0 {
		q = q.Limit(limit)
	}

	var recs []Record
	if err := q.Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return recs, nil
}

// Best returns the highest scoring record for song.
func (s *Store) Best(ctx context.Context, song string) (Record, error) {
	var rec Record
	err := s.db.WithContext(ctx).Where("song = ?", song).Order("score DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return rec, fmt.Errorf("%w: no sessions for %q", ErrNotFound, song)
	}
	if err != nil {
		return rec, fmt.Errorf("loading best session: %w", err)
	}
	return rec, nil
}
