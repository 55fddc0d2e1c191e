// Package decisionlog persists emitted decisions to SQLite. It backs the
// synchronous query interface and the supersedes chain; it is not a
// performance-history store.
package decisionlog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"fusor/internal/decision"
	"fusor/internal/pkg/symbol"

	"gorm.io/datatypes"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ErrNotFound means no decision has been recorded for the pair yet.
var ErrNotFound = errors.New("decision not found")

type decisionRecord struct {
	ID           uint   `gorm:"primaryKey"`
	DecisionID   string `gorm:"uniqueIndex;size:64"`
	SupersedesID string `gorm:"size:64"`
	Symbol       string `gorm:"index:idx_pair;size:32"`
	Timeframe    string `gorm:"index:idx_pair;size:16"`
	Class        string `gorm:"size:16"`
	Confidence   float64
	Payload      datatypes.JSON
	DecidedAt    time.Time `gorm:"index"`
	CreatedAt    time.Time
}

func (decisionRecord) TableName() string { return "decisions" }

// Store is the append-only decision log.
type Store struct {
	db *gorm.DB
}

// New opens (or creates) the SQLite log at path and migrates the schema.
func New(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("decision log: path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&decisionRecord{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// WAL allows concurrent HTTP reads while the pipeline appends.
	sqlDB.SetMaxOpenConns(4)
	return &Store{db: db}, nil
}

// Append records one emitted decision.
func (s *Store) Append(ctx context.Context, d decision.TradingDecision) error {
	payload, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("decision log: marshal failed: %w", err)
	}
	rec := decisionRecord{
		DecisionID:   d.ID,
		SupersedesID: d.SupersedesID,
		Symbol:       d.Symbol,
		Timeframe:    d.Timeframe,
		Class:        string(d.Class),
		Confidence:   d.Confidence,
		Payload:      datatypes.JSON(payload),
		DecidedAt:    d.Timestamp,
	}
	return s.db.WithContext(ctx).Create(&rec).Error
}

// Latest returns the most recent decision for the pair. A timeframe of ""
// matches any timeframe.
func (s *Store) Latest(ctx context.Context, sym, timeframe string) (decision.TradingDecision, error) {
	q := s.db.WithContext(ctx).Where("symbol = ?", symbol.Canonical(sym))
	if tf := strings.TrimSpace(timeframe); tf != "" {
		q = q.Where("timeframe = ?", tf)
	}
	var rec decisionRecord
	err := q.Order("decided_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return decision.TradingDecision{}, ErrNotFound
	}
	if err != nil {
		return decision.TradingDecision{}, err
	}
	return rec.unmarshal()
}

// History returns up to limit decisions for the pair, newest first.
func (s *Store) History(ctx context.Context, sym, timeframe string, limit int) ([]decision.TradingDecision, error) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Where("symbol = ?", symbol.Canonical(sym))
	if tf := strings.TrimSpace(timeframe); tf != "" {
		q = q.Where("timeframe = ?", tf)
	}
	var recs []decisionRecord
	if err := q.Order("decided_at DESC").Limit(limit).Find(&recs).Error; err != nil {
		return nil, err
	}
	out := make([]decision.TradingDecision, 0, len(recs))
	for _, rec := range recs {
		d, err := rec.unmarshal()
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (r decisionRecord) unmarshal() (decision.TradingDecision, error) {
	var d decision.TradingDecision
	if err := json.Unmarshal(r.Payload, &d); err != nil {
		return decision.TradingDecision{}, fmt.Errorf("decision log: corrupt payload for %s: %w", r.DecisionID, err)
	}
	return d, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}
