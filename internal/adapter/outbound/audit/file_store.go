// Package audit provides file-based persistence for validation
// rejections: JSON Lines with daily rotation, retention cleanup, and an
// in-memory cache of recent entries.
package audit

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"github.com/param-gate/paramgate/internal/domain/audit"
)

// rejectionFilePattern matches rejection log filenames: rejections-YYYY-MM-DD.log
var rejectionFilePattern = regexp.MustCompile(`^rejections-(\d{4}-\d{2}-\d{2})\.log$`)

// FileConfig holds configuration for the file-based store.
type FileConfig struct {
	// Dir is the directory where rejection files are stored.
	Dir string
	// RetentionDays is the number of days to keep files (default 7).
	RetentionDays int
	// CacheSize is the number of recent entries kept in memory (default 1000).
	CacheSize int
}

// FileStore implements audit.Store with daily rotation, retention, and a
// recent-entry cache.
type FileStore struct {
	dir           string
	retentionDays int
	currentFile   *os.File
	currentDate   string
	cache         *entryCache
	mu            sync.Mutex
	logger        *slog.Logger
	cancel        context.CancelFunc
	closed        bool
}

// NewFileStore creates the directory if needed, opens today's log file,
// runs retention cleanup, warms the cache from today's file, and starts
// the hourly cleanup goroutine.
func NewFileStore(cfg FileConfig, logger *slog.Logger) (*FileStore, error) {
	if cfg.RetentionDays <= 0 {
		cfg.RetentionDays = 7
	}
	if cfg.CacheSize <= 0 {
		cfg.CacheSize = 1000
	}

	if err := os.MkdirAll(cfg.Dir, 0700); err != nil {
		return nil, fmt.Errorf("create audit directory: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &FileStore{
		dir:           cfg.Dir,
		retentionDays: cfg.RetentionDays,
		cache:         newEntryCache(cfg.CacheSize),
		logger:        logger,
		cancel:        cancel,
	}

	today := time.Now().UTC().Format(time.DateOnly)
	if err := s.openCurrentFileLocked(today); err != nil {
		cancel()
		return nil, fmt.Errorf("open rejection file: %w", err)
	}

	s.runCleanup()
	s.warmCache()

	go s.cleanupLoop(ctx)

	return s, nil
}

// Append stores entries as JSON Lines, rotating to a new file when the
// UTC date changes.
func (s *FileStore) Append(_ context.Context, entries ...audit.Entry) error {
	if len(entries) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("audit store is closed")
	}

	for _, e := range entries {
		dateStr := e.Time.UTC().Format(time.DateOnly)
		if dateStr != s.currentDate {
			if err := s.rotateLocked(dateStr); err != nil {
				return fmt.Errorf("date rotation: %w", err)
			}
		}

		data, err := json.Marshal(e)
		if err != nil {
			return fmt.Errorf("marshal rejection entry: %w", err)
		}
		if _, err := s.currentFile.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write rejection entry: %w", err)
		}

		s.cache.Add(e)
	}

	return nil
}

// Recent returns up to limit entries from the cache, newest first.
func (s *FileStore) Recent(_ context.Context, limit int) ([]audit.Entry, error) {
	return s.cache.Recent(limit), nil
}

// Close stops the cleanup goroutine and closes the current file.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.cancel()

	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		err := s.currentFile.Close()
		s.currentFile = nil
		return err
	}
	return nil
}

// openCurrentFileLocked opens or creates the rejection file for the date.
func (s *FileStore) openCurrentFileLocked(dateStr string) error {
	path := filepath.Join(s.dir, fmt.Sprintf("rejections-%s.log", dateStr))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return err
	}
	s.currentFile = f
	s.currentDate = dateStr
	return nil
}

// rotateLocked closes the current file and opens the one for dateStr.
func (s *FileStore) rotateLocked(dateStr string) error {
	if s.currentFile != nil {
		_ = s.currentFile.Sync()
		_ = s.currentFile.Close()
	}
	return s.openCurrentFileLocked(dateStr)
}

// warmCache loads today's entries into the cache so Recent works across
// restarts.
func (s *FileStore) warmCache() {
	path := filepath.Join(s.dir, fmt.Sprintf("rejections-%s.log", s.currentDate))
	f, err := os.Open(path)
	if err != nil {
		return
	}
	defer func() { _ = f.Close() }()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		var e audit.Entry
		if err := json.Unmarshal(scanner.Bytes(), &e); err != nil {
			continue
		}
		s.cache.Add(e)
	}
}

// cleanupLoop runs retention cleanup hourly until the store closes.
func (s *FileStore) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.runCleanup()
		}
	}
}

// runCleanup deletes rejection files older than the retention window.
func (s *FileStore) runCleanup() {
	cutoff := time.Now().UTC().AddDate(0, 0, -s.retentionDays).Format(time.DateOnly)

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		s.logger.Warn("retention cleanup: read dir failed", "error", err)
		return
	}

	for _, e := range entries {
		matches := rejectionFilePattern.FindStringSubmatch(e.Name())
		if matches == nil {
			continue
		}
		if matches[1] < cutoff {
			path := filepath.Join(s.dir, e.Name())
			if err := os.Remove(path); err != nil {
				s.logger.Warn("retention cleanup: remove failed", "file", e.Name(), "error", err)
			} else {
				s.logger.Info("retention cleanup: removed old rejection file", "file", e.Name())
			}
		}
	}
}

// entryCache is a bounded ring of recent entries.
type entryCache struct {
	mu      sync.RWMutex
	entries []audit.Entry
	max     int
}

func newEntryCache(max int) *entryCache {
	return &entryCache{max: max}
}

// Add appends an entry, evicting the oldest when full.
func (c *entryCache) Add(e audit.Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = append(c.entries, e)
	if len(c.entries) > c.max {
		c.entries = c.entries[len(c.entries)-c.max:]
	}
}

// Recent returns up to n entries, newest first.
func (c *entryCache) Recent(n int) []audit.Entry {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if n <= 0 || n > len(c.entries) {
		n = len(c.entries)
	}
	out := make([]audit.Entry, 0, n)
	for i := len(c.entries) - 1; i >= len(c.entries)-n; i-- {
		out = append(out, c.entries[i])
	}
	return out
}

// Compile-time check that FileStore implements audit.Store.
var _ audit.Store = (*FileStore)(nil)
