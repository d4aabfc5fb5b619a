// Package service contains application services.
package service

import (
	"context"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/param-gate/paramgate/internal/domain/audit"
	"github.com/param-gate/paramgate/pkg/changeset"
)

// AuditService records validation rejections asynchronously: a buffered
// channel feeds a background worker that batches writes to the store, so
// the request hot path never blocks on persistence.
type AuditService struct {
	store         audit.Store
	entryChan     chan audit.Entry
	wg            sync.WaitGroup
	logger        *slog.Logger
	batchSize     int
	flushInterval time.Duration

	channelSize int
	sendTimeout time.Duration // 0 = drop immediately when full
	dropCount   atomic.Int64
	onDrop      func() // optional metrics hook
}

// AuditOption configures AuditService.
type AuditOption func(*AuditService)

// WithBatchSize sets the number of entries batched before a write.
func WithBatchSize(size int) AuditOption {
	return func(s *AuditService) {
		s.batchSize = size
	}
}

// WithFlushInterval sets the interval at which pending entries flush.
func WithFlushInterval(interval time.Duration) AuditOption {
	return func(s *AuditService) {
		s.flushInterval = interval
	}
}

// WithChannelSize sets the entry channel buffer size.
func WithChannelSize(size int) AuditOption {
	return func(s *AuditService) {
		s.entryChan = make(chan audit.Entry, size)
		s.channelSize = size
	}
}

// WithSendTimeout sets the backpressure timeout: 0 drops immediately
// when the channel is full, >0 blocks up to the timeout before dropping.
func WithSendTimeout(timeout time.Duration) AuditOption {
	return func(s *AuditService) {
		s.sendTimeout = timeout
	}
}

// WithOnDrop registers a hook called once per dropped entry.
func WithOnDrop(fn func()) AuditOption {
	return func(s *AuditService) {
		s.onDrop = fn
	}
}

// NewAuditService creates an AuditService writing to store.
func NewAuditService(store audit.Store, logger *slog.Logger, opts ...AuditOption) *AuditService {
	defaultChannelSize := 1000
	s := &AuditService{
		store:         store,
		entryChan:     make(chan audit.Entry, defaultChannelSize),
		logger:        logger,
		batchSize:     100,
		flushInterval: time.Second,
		channelSize:   defaultChannelSize,
		sendTimeout:   100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start begins the background worker.
func (s *AuditService) Start() {
	s.wg.Add(1)
	go s.worker()
}

// Record builds a rejection entry from the request and changeset and
// hands it to the worker. When the channel stays full past the send
// timeout the entry is dropped and counted.
func (s *AuditService) Record(r *http.Request, action string, cs *changeset.Changeset, status int) {
	var errs map[string][]string
	if cs != nil {
		errs = cs.Errors
	}
	entry := audit.Entry{
		ID:     uuid.New().String(),
		Time:   time.Now().UTC(),
		Action: action,
		Method: r.Method,
		Path:   r.URL.Path,
		Status: status,
		Errors: errs,
	}

	select {
	case s.entryChan <- entry:
		return
	default:
	}

	if s.sendTimeout <= 0 {
		s.recordDrop(entry)
		return
	}

	select {
	case s.entryChan <- entry:
	case <-time.After(s.sendTimeout):
		s.recordDrop(entry)
	}
}

// Recent returns up to limit recorded rejections, newest first.
func (s *AuditService) Recent(ctx context.Context, limit int) ([]audit.Entry, error) {
	return s.store.Recent(ctx, limit)
}

// DroppedEntries returns the total dropped entries.
func (s *AuditService) DroppedEntries() int64 {
	return s.dropCount.Load()
}

// ChannelDepth returns the number of entries waiting in the channel.
func (s *AuditService) ChannelDepth() int {
	return len(s.entryChan)
}

// ChannelCapacity returns the channel buffer size.
func (s *AuditService) ChannelCapacity() int {
	return cap(s.entryChan)
}

// Stop signals the worker to stop and waits for pending entries to
// flush. The service cannot be restarted afterwards.
func (s *AuditService) Stop() {
	close(s.entryChan)
	s.wg.Wait()
}

func (s *AuditService) recordDrop(entry audit.Entry) {
	drops := s.dropCount.Add(1)
	if s.onDrop != nil {
		s.onDrop()
	}
	s.logger.Warn("rejection entry dropped",
		"action", entry.Action,
		"path", entry.Path,
		"total_drops", drops,
	)
}

// worker collects entries and flushes them in batches.
func (s *AuditService) worker() {
	defer s.wg.Done()

	batch := make([]audit.Entry, 0, s.batchSize)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()

	flush := func() {
		if len(batch) == 0 {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := s.store.Append(ctx, batch...); err != nil {
			s.logger.Error("audit batch write failed",
				"entries", len(batch),
				"error", err,
			)
		}
		cancel()
		batch = batch[:0]
	}

	for {
		select {
		case entry, ok := <-s.entryChan:
			if !ok {
				flush()
				return
			}
			batch = append(batch, entry)
			if len(batch) >= s.batchSize {
				flush()
			}
		case <-ticker.C:
			flush()
		}
	}
}
