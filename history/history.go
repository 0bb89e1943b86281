// Package history keeps a list of generated books, newest first.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Record describes one generated book.
type Record struct {
	ID        string    `json:"id"`
	StoryKey  string    `json:"story_key"`
	Title     string    `json:"title"`
	ChildName string    `json:"child_name"`
	ModelKey  string    `json:"model_key,omitempty"`
	PDFPath   string    `json:"pdf_path"`
	PageCount int       `json:"page_count"`
	CreatedAt time.Time `json:"created_at"`
}

// Store saves and lists records. Implementations are safe for concurrent use.
type Store interface {
	Save(ctx context.Context, rec Record) (Record, error)
	List(ctx context.Context, limit int) ([]Record, error)
}

const DefaultMax = 100

func prepare(rec Record) Record {
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	return rec
}

// MemoryStore holds up to max records in process memory.
type MemoryStore struct {
	mu      sync.RWMutex
	records []Record
	max     int
}

func NewMemoryStore(max int) *MemoryStore {
	if max <= 0 {
		max = DefaultMax
	}
	return &MemoryStore{max: max}
}

func (m *MemoryStore) Save(ctx context.Context, rec Record) (Record, error) {
	rec = prepare(rec)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append([]Record{rec}, m.records...)
	if len(m.records) > m.max {
		m.records = m.records[:m.max]
	}
	return rec, nil
}

func (m *MemoryStore) List(ctx context.Context, limit int) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if limit <= 0 || limit > len(m.records) {
		limit = len(m.records)
	}
	out := make([]Record, limit)
	copy(out, m.records[:limit])
	return out, nil
}
