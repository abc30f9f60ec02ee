package store

import (
	"context"
	"sync"

	mcperrors "github.com/ajitpratap0/mcp-userhub/pkg/errors"
)

// MemoryStore keeps records in process memory.
type MemoryStore struct {
	mu      sync.Mutex
	records []Record
	lastID  int
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) List(ctx context.Context) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Record, len(s.records))
	for i, r := range s.records {
		out[i] = Record{ID: r.ID, Fields: copyFields(r.Fields)}
	}
	return out, nil
}

func (s *MemoryStore) Append(ctx context.Context, fields map[string]interface{}) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	s.records = append(s.records, Record{ID: s.lastID, Fields: copyFields(fields)})
	return s.lastID, nil
}

func (s *MemoryStore) Get(ctx context.Context, id int) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range s.records {
		if r.ID == id {
			return Record{ID: r.ID, Fields: copyFields(r.Fields)}, nil
		}
	}
	return Record{}, mcperrors.RecordNotFound(id)
}

func (s *MemoryStore) Close() error { return nil }
