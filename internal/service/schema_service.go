package service

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	"github.com/cespare/xxhash/v2"

	"github.com/param-gate/paramgate/pkg/changeset"
	"github.com/param-gate/paramgate/pkg/schema"
	"github.com/param-gate/paramgate/pkg/validate"
)

// Outcome is the cacheable result of validating one parameter set.
type Outcome struct {
	Valid   bool
	Changes map[string]any
	Errors  map[string][]string
}

// lruEntry is a doubly-linked list node for the LRU cache.
type lruEntry struct {
	key     uint64
	outcome Outcome
	prev    *lruEntry
	next    *lruEntry
}

// ResultCache provides bounded LRU caching for validation outcomes.
// Thread-safe with Mutex (both Get and Put mutate LRU order).
type ResultCache struct {
	mu      sync.Mutex
	entries map[uint64]*lruEntry
	head    *lruEntry // most recently used
	tail    *lruEntry // least recently used
	maxSize int
}

// NewResultCache creates a new LRU cache with the given max size.
func NewResultCache(maxSize int) *ResultCache {
	return &ResultCache{
		entries: make(map[uint64]*lruEntry, maxSize),
		maxSize: maxSize,
	}
}

// Get retrieves a cached outcome. On hit, the entry is promoted to the
// head (most recently used).
func (c *ResultCache) Get(key uint64) (Outcome, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok {
		c.moveToHeadLocked(e)
		return e.outcome, true
	}
	return Outcome{}, false
}

// Put stores an outcome. If at capacity, the least recently used entry
// is evicted.
func (c *ResultCache) Put(key uint64, outcome Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.outcome = outcome
		c.moveToHeadLocked(e)
		return
	}

	if len(c.entries) >= c.maxSize {
		c.evictTailLocked()
	}

	e := &lruEntry{key: key, outcome: outcome}
	c.entries[key] = e
	c.pushHeadLocked(e)
}

// Len returns the number of cached outcomes.
func (c *ResultCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *ResultCache) pushHeadLocked(e *lruEntry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *ResultCache) moveToHeadLocked(e *lruEntry) {
	if c.head == e {
		return
	}
	// Unlink.
	if e.prev != nil {
		e.prev.next = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	}
	if c.tail == e {
		c.tail = e.prev
	}
	// Relink at head.
	e.prev = nil
	e.next = c.head
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
}

func (c *ResultCache) evictTailLocked() {
	if c.tail == nil {
		return
	}
	evicted := c.tail
	delete(c.entries, evicted.key)
	c.tail = evicted.prev
	if c.tail != nil {
		c.tail.next = nil
	} else {
		c.head = nil
	}
}

// cacheKey hashes the schema name and the sorted raw params.
// Sorting makes the key deterministic across map iteration orders.
// Values are JSON-encoded so the key keeps type distinctions: the query
// string "1" and the JSON number 1 cast differently and must never share
// an outcome.
func cacheKey(schemaName string, params map[string]any) uint64 {
	h := xxhash.New()

	_, _ = h.WriteString(schemaName)
	_, _ = h.Write([]byte{0}) // separator

	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		_, _ = h.WriteString(k)
		_, _ = h.Write([]byte{0})
		data, err := json.Marshal(params[k])
		if err != nil {
			// Unmarshalable values still need a type-faithful encoding.
			data = []byte(fmt.Sprintf("%T:%v", params[k], params[k]))
		}
		_, _ = h.Write(data)
		_, _ = h.Write([]byte{0})
	}

	return h.Sum64()
}

// SchemaService binds parameter schemas into ready validators, with an
// optional LRU cache of validation outcomes for repeated inputs.
type SchemaService struct {
	engine  schema.RuleEngine
	logger  *slog.Logger
	cache   *ResultCache
	onCache func(hit bool)
}

// SchemaOption configures SchemaService.
type SchemaOption func(*SchemaService)

// WithResultCacheSize enables outcome caching with the given capacity.
// Zero (the default) disables caching.
func WithResultCacheSize(size int) SchemaOption {
	return func(s *SchemaService) {
		if size > 0 {
			s.cache = NewResultCache(size)
		}
	}
}

// WithCacheObserver registers a hook invoked for every cache lookup,
// typically to record hit/miss metrics. Only fires when caching is on.
func WithCacheObserver(fn func(hit bool)) SchemaOption {
	return func(s *SchemaService) {
		s.onCache = fn
	}
}

// NewSchemaService creates a SchemaService. The engine may be nil when
// no schema declares rules.
func NewSchemaService(engine schema.RuleEngine, logger *slog.Logger, opts ...SchemaOption) *SchemaService {
	s := &SchemaService{engine: engine, logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Bind compiles the schema's rules and returns a validator for it. With
// caching enabled the validator consults the outcome cache before
// re-running field casts and rules.
func (s *SchemaService) Bind(sch *schema.Schema) (validate.Validator, error) {
	bound, err := sch.Bind(s.engine)
	if err != nil {
		return nil, fmt.Errorf("binding schema %q: %w", sch.Name(), err)
	}
	if s.cache == nil {
		return bound, nil
	}
	return &cachingValidator{name: sch.Name(), bound: bound, cache: s.cache, onCache: s.onCache}, nil
}

// MustBind is Bind that panics on error.
func (s *SchemaService) MustBind(sch *schema.Schema) validate.Validator {
	v, err := s.Bind(sch)
	if err != nil {
		panic(err)
	}
	return v
}

// cachingValidator consults the shared outcome cache before delegating
// to the bound validator.
type cachingValidator struct {
	name    string
	bound   *schema.BoundValidator
	cache   *ResultCache
	onCache func(hit bool)
}

// Validate implements validate.Validator.
func (v *cachingValidator) Validate(r *http.Request, params map[string]any) *changeset.Changeset {
	key := cacheKey(v.name, params)

	outcome, ok := v.cache.Get(key)
	if v.onCache != nil {
		v.onCache(ok)
	}
	if ok {
		// Handlers may mutate their changeset (PutChange); hand out
		// copies so the cached maps stay pristine across requests.
		return &changeset.Changeset{
			Valid:   outcome.Valid,
			Params:  params,
			Changes: copyChanges(outcome.Changes),
			Errors:  copyErrors(outcome.Errors),
		}
	}

	cs := v.bound.Validate(r, params)
	// The handler receives cs and may mutate it; cache copies, not the
	// live maps.
	v.cache.Put(key, Outcome{
		Valid:   cs.Valid,
		Changes: copyChanges(cs.Changes),
		Errors:  copyErrors(cs.Errors),
	})
	return cs
}

func copyChanges(src map[string]any) map[string]any {
	out := make(map[string]any, len(src))
	for k, v := range src {
		out[k] = v
	}
	return out
}

func copyErrors(src map[string][]string) map[string][]string {
	out := make(map[string][]string, len(src))
	for k, v := range src {
		out[k] = append([]string(nil), v...)
	}
	return out
}

// Compile-time check that cachingValidator implements validate.Validator.
var _ validate.Validator = (*cachingValidator)(nil)
