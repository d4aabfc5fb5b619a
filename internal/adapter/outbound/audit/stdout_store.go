package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/param-gate/paramgate/internal/domain/audit"
)

// StdoutStore writes rejection entries as JSON Lines to a writer
// (stdout in production) and keeps a bounded in-memory cache so Recent
// still works.
type StdoutStore struct {
	mu    sync.Mutex
	w     io.Writer
	cache *entryCache
}

// NewStdoutStore creates a store writing to w.
func NewStdoutStore(w io.Writer) *StdoutStore {
	return &StdoutStore{w: w, cache: newEntryCache(1000)}
}

// Append writes each entry as one JSON line.
func (s *StdoutStore) Append(_ context.Context, entries ...audit.Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range entries {
		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal rejection entry: %w", err)
		}
		if _, err := s.w.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write rejection entry: %w", err)
		}
		s.cache.Add(e)
	}
	return nil
}

// Recent returns up to limit cached entries, newest first.
func (s *StdoutStore) Recent(_ context.Context, limit int) ([]audit.Entry, error) {
	return s.cache.Recent(limit), nil
}

// Close is a no-op; the writer is not owned by the store.
func (s *StdoutStore) Close() error { return nil }

// Compile-time check that StdoutStore implements audit.Store.
var _ audit.Store = (*StdoutStore)(nil)
