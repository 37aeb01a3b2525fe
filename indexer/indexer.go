// Package indexer journals committed ledger events into a SQL database so
// they can be queried after the fact.
package indexer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"marketledger/core/events"
	"marketledger/core/types"
)

const (
	DefaultListLimit = 100
	MaxListLimit     = 1000
)

// subjectKeys are the attributes that identify what an event is about, in
// priority order.
var subjectKeys = []string{"order", "listing", "instance", "plan", "entry", "contest", "vault", "account", "mint", "from"}

// EventRecord is one journaled event.
type EventRecord struct {
	ID         uint64    `gorm:"primaryKey;autoIncrement" json:"id"`
	EventID    uuid.UUID `gorm:"type:uuid;uniqueIndex" json:"eventId"`
	Type       string    `gorm:"index;not null" json:"type"`
	Subject    string    `gorm:"index" json:"subject"`
	Attributes string    `gorm:"type:text;not null" json:"-"`
	CreatedAt  time.Time `json:"createdAt"`
}

// Event decodes the journaled payload.
func (r EventRecord) Event() (*types.Event, error) {
	attrs := map[string]string{}
	if r.Attributes != "" {
		if err := json.Unmarshal([]byte(r.Attributes), &attrs); err != nil {
			return nil, fmt.Errorf("indexer: decode event %d: %w", r.ID, err)
		}
	}
	return &types.Event{Type: r.Type, Attributes: attrs}, nil
}

// Filter narrows List. Zero fields match everything.
type Filter struct {
	Type    string
	Subject string
	AfterID uint64
	Limit   int
}

// payloadEvent is implemented by emitted events that carry a typed payload.
type payloadEvent interface {
	Event() *types.Event
}

// Indexer persists events handed to it by the engine.
type Indexer struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the journal database. DSNs starting with postgres:// or
// postgresql:// use postgres; anything else is a sqlite file path or URI.
func Open(dsn string) (*gorm.DB, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, errors.New("indexer: empty dsn")
	}
	cfg := &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return gorm.Open(postgres.Open(dsn), cfg)
	}
	if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
		if dir := filepath.Dir(dsn); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, err
			}
		}
	}
	return gorm.Open(sqlite.Open(dsn), cfg)
}

// New migrates the schema and returns an indexer writing to db.
func New(db *gorm.DB, logger *slog.Logger) (*Indexer, error) {
	if db == nil {
		return nil, errors.New("indexer: nil database")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if err := db.AutoMigrate(&EventRecord{}); err != nil {
		return nil, fmt.Errorf("indexer: migrate: %w", err)
	}
	return &Indexer{db: db, logger: logger}, nil
}

// Emit implements events.Emitter. Journal failures are logged and dropped;
// the ledger has already committed.
func (ix *Indexer) Emit(evt events.Event) {
	if ix == nil || evt == nil {
		return
	}
	payload := &types.Event{Type: evt.EventType()}
	if pe, ok := evt.(payloadEvent); ok && pe.Event() != nil {
		payload = pe.Event()
	}
	if err := ix.Record(context.Background(), payload); err != nil {
		ix.logger.Error("indexer: failed to journal event",
			slog.String("type", payload.Type),
			slog.String("error", err.Error()))
	}
}

// Record journals a single event.
func (ix *Indexer) Record(ctx context.Context, evt *types.Event) error {
	if evt == nil {
		return errors.New("indexer: nil event")
	}
	attrs := evt.Attributes
	if attrs == nil {
		attrs = map[string]string{}
	}
	encoded, err := json.Marshal(attrs)
	if err != nil {
		return err
	}
	rec := EventRecord{
		EventID:    uuid.New(),
		Type:       evt.Type,
		Subject:    subjectOf(attrs),
		Attributes: string(encoded),
	}
	return ix.db.WithContext(ctx).Create(&rec).Error
}

// List returns journaled events in emission order.
func (ix *Indexer) List(ctx context.Context, f Filter) ([]EventRecord, error) {
	limit := f.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	q := ix.db.WithContext(ctx).Model(&EventRecord{}).Where("id > ?", f.AfterID)
	if t := strings.TrimSpace(f.Type); t != "" {
		q = q.Where("type = ?", t)
	}
	if s := strings.TrimSpace(f.Subject); s != "" {
		q = q.Where("subject = ?", strings.ToLower(s))
	}
	var out []EventRecord
	if err := q.Order("id asc").Limit(limit).Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Close releases the underlying connection pool.
func (ix *Indexer) Close() error {
	sqlDB, err := ix.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func subjectOf(attrs map[string]string) string {
	for _, key := range subjectKeys {
		if v := strings.TrimSpace(attrs[key]); v != "" {
			return strings.ToLower(v)
		}
	}
	return ""
}
