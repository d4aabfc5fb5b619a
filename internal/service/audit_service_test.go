package service

import (
	"context"
	"log/slog"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/param-gate/paramgate/internal/domain/audit"
	"github.com/param-gate/paramgate/pkg/changeset"
)

// memStore is an in-memory audit.Store for tests.
type memStore struct {
	mu      sync.Mutex
	entries []audit.Entry
	block   chan struct{} // when non-nil, Append blocks until closed
}

func (m *memStore) Append(_ context.Context, entries ...audit.Entry) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entries...)
	return nil
}

func (m *memStore) Recent(_ context.Context, limit int) ([]audit.Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := len(m.entries)
	if limit > 0 && limit < n {
		n = limit
	}
	out := make([]audit.Entry, 0, n)
	for i := len(m.entries) - 1; i >= len(m.entries)-n; i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memStore) Close() error { return nil }

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func TestAuditService_RecordsRejections(t *testing.T) {
	defer goleak.VerifyNone(t)

	store := &memStore{}
	svc := NewAuditService(store, slog.New(slog.DiscardHandler),
		WithFlushInterval(10*time.Millisecond),
	)
	svc.Start()

	r := httptest.NewRequest("POST", "/users", nil)
	cs := changeset.New(nil).AddError("name", "can't be blank")
	svc.Record(r, "create", cs, 422)

	svc.Stop()

	if store.count() != 1 {
		t.Fatalf("expected 1 entry, got %d", store.count())
	}
	entries, _ := store.Recent(context.Background(), 1)
	e := entries[0]
	if e.Action != "create" || e.Method != "POST" || e.Path != "/users" || e.Status != 422 {
		t.Errorf("unexpected entry: %+v", e)
	}
	if e.ID == "" {
		t.Error("entry has no ID")
	}
	if got := e.Errors["name"]; len(got) != 1 {
		t.Errorf("errors not carried: %v", e.Errors)
	}
}

func TestAuditService_BatchFlushOnSize(t *testing.T) {
	store := &memStore{}
	svc := NewAuditService(store, slog.New(slog.DiscardHandler),
		WithBatchSize(2),
		WithFlushInterval(time.Hour), // only size triggers the flush
	)
	svc.Start()

	r := httptest.NewRequest("POST", "/x", nil)
	svc.Record(r, "a", nil, 422)
	svc.Record(r, "b", nil, 422)

	deadline := time.Now().Add(2 * time.Second)
	for store.count() < 2 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	svc.Stop()

	if store.count() != 2 {
		t.Errorf("expected size-triggered flush of 2 entries, got %d", store.count())
	}
}

func TestAuditService_DropsWhenFull(t *testing.T) {
	block := make(chan struct{})
	store := &memStore{block: block}

	var dropped int
	svc := NewAuditService(store, slog.New(slog.DiscardHandler),
		WithChannelSize(1),
		WithBatchSize(1),
		WithSendTimeout(0),
		WithOnDrop(func() { dropped++ }),
	)
	svc.Start()

	r := httptest.NewRequest("POST", "/x", nil)
	// First entry is consumed by the worker which then blocks in Append;
	// the second fills the channel; further entries drop.
	for i := 0; i < 5; i++ {
		svc.Record(r, "a", nil, 422)
	}

	if svc.DroppedEntries() == 0 {
		t.Error("expected drops with a blocked store and full channel")
	}
	if dropped != int(svc.DroppedEntries()) {
		t.Errorf("drop hook fired %d times, counter says %d", dropped, svc.DroppedEntries())
	}

	close(block)
	svc.Stop()
}

func TestAuditService_NilChangeset(t *testing.T) {
	store := &memStore{}
	svc := NewAuditService(store, slog.New(slog.DiscardHandler))
	svc.Start()

	svc.Record(httptest.NewRequest("POST", "/x", nil), "a", nil, 422)
	svc.Stop()

	if store.count() != 1 {
		t.Fatalf("expected entry for nil changeset, got %d", store.count())
	}
}
