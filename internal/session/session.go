// Package session keeps per-visitor state for the web UI. Nothing in a
// session outlives the process.
package session

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/FranksOps/reliefscope/internal/cache"
	"github.com/FranksOps/reliefscope/internal/pipeline"
	"github.com/FranksOps/reliefscope/internal/reliefweb"
	"github.com/FranksOps/reliefscope/internal/table"
)

// Limit bounds for the number of reports fetched per interaction.
const (
	MinLimit     = 1
	MaxLimit     = 50
	DefaultLimit = 5
)

// DefaultTTL is how long an idle session is kept.
const DefaultTTL = 30 * time.Minute

// ClampLimit forces n into [MinLimit, MaxLimit].
func ClampLimit(n int) int {
	return min(max(n, MinLimit), MaxLimit)
}

// Session is one visitor's state. Callers hold Lock for the duration of an
// interaction so interactions within a session never overlap.
type Session struct {
	ID string

	mu sync.Mutex

	Limit          int
	Query          string
	Columns        []string
	Supplement     *table.Table
	SupplementName string

	cache    *sessionCache
	lastSeen time.Time // guarded by Store.mu
}

func (s *Session) Lock()   { s.mu.Lock() }
func (s *Session) Unlock() { s.mu.Unlock() }

// SetLimit stores n clamped to the allowed range.
func (s *Session) SetLimit(n int) { s.Limit = ClampLimit(n) }

// SetSupplement replaces the uploaded table. A nil table clears it. Selected
// columns the new merged schema no longer has are dropped, and a selection
// left empty that way falls back to the default one.
func (s *Session) SetSupplement(name string, t *table.Table) {
	s.Supplement = t
	s.SupplementName = name
	if t == nil {
		s.SupplementName = ""
	}
	s.pruneColumns()
}

func (s *Session) pruneColumns() {
	if len(s.Columns) == 0 {
		return
	}
	merged, _, err := table.LeftJoin(reliefweb.Normalize(nil), s.Supplement, reliefweb.ColTitle, table.TitleAliases...)
	if err != nil {
		merged = reliefweb.Normalize(nil)
	}
	available := merged.Columns()
	kept := slices.DeleteFunc(slices.Clone(s.Columns), func(c string) bool {
		return !slices.Contains(available, c)
	})
	if len(kept) == 0 {
		kept = slices.Clone(reliefweb.DefaultSelection)
	}
	s.Columns = kept
}

// Request builds the pipeline request for the session's current state.
func (s *Session) Request() pipeline.Request {
	return pipeline.Request{
		Query:      s.Query,
		Limit:      s.Limit,
		Supplement: s.Supplement,
		Columns:    slices.Clone(s.Columns),
		Cache:      s.cache,
	}
}

// Options configures a Store.
type Options struct {
	// TTL expires sessions idle for longer. Zero means DefaultTTL.
	TTL          time.Duration
	CachePolicy  cache.Policy
	DefaultQuery string
	Logger       *slog.Logger
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Store holds live sessions. It is safe for concurrent use.
type Store struct {
	opts     Options
	logger   *slog.Logger
	mu       sync.Mutex
	sessions map[string]*Session
	// fetches is shared by every session; entries are keyed by session ID.
	fetches cache.Cache[fetchKey, []reliefweb.RawReport]
}

// NewStore creates an empty Store.
func NewStore(opts Options) *Store {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.DefaultQuery == "" {
		opts.DefaultQuery = reliefweb.DefaultQuery
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		opts:     opts,
		logger:   logger,
		sessions: make(map[string]*Session),
		fetches:  cache.New[fetchKey, []reliefweb.RawReport](opts.CachePolicy),
	}
}

// Create starts a session with default state.
func (s *Store) Create() *Session {
	sess := &Session{
		ID:      uuid.NewString(),
		Limit:   DefaultLimit,
		Query:   s.opts.DefaultQuery,
		Columns: slices.Clone(reliefweb.DefaultSelection),
	}
	sess.cache = newSessionCache(sess.ID, s.fetches)

	s.mu.Lock()
	sess.lastSeen = s.opts.Now()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()

	s.logger.Debug("session created", "session", sess.ID)
	return sess
}

// Get returns a live session and marks it as used. Expired sessions are
// dropped and reported as missing.
func (s *Store) Get(id string) (*Session, bool) {
	if id == "" {
		return nil, false
	}
	now := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[id]
	if !ok {
		return nil, false
	}
	if now.Sub(sess.lastSeen) > s.opts.TTL {
		delete(s.sessions, id)
		sess.cache.Purge()
		return nil, false
	}
	sess.lastSeen = now
	return sess, true
}

// GetOrCreate returns the session for id, or a new one when id is unknown or
// expired. created reports which.
func (s *Store) GetOrCreate(id string) (sess *Session, created bool) {
	if sess, ok := s.Get(id); ok {
		return sess, false
	}
	return s.Create(), true
}

// Reset ends the session. It reports whether the session existed.
func (s *Store) Reset(id string) bool {
	s.mu.Lock()
	sess, ok := s.sessions[id]
	delete(s.sessions, id)
	s.mu.Unlock()

	if ok {
		sess.cache.Purge()
		s.logger.Debug("session reset", "session", id)
	}
	return ok
}

// Sweep drops every expired session and returns how many were removed.
func (s *Store) Sweep() int {
	now := s.opts.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for id, sess := range s.sessions {
		if now.Sub(sess.lastSeen) > s.opts.TTL {
			delete(s.sessions, id)
			sess.cache.Purge()
			n++
		}
	}
	return n
}

// Len returns the number of sessions held, expired or not.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// Run sweeps every interval until ctx is done. Zero interval means TTL/2.
func (s *Store) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = s.opts.TTL / 2
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := s.Sweep(); n > 0 {
				s.logger.Info("expired idle sessions", "count", n, "live", s.Len())
			}
		}
	}
}

type fetchKey struct {
	session string
	query   reliefweb.QueryKey
}

// sessionCache is one session's view of the store's shared fetch cache.
type sessionCache struct {
	id     string
	shared cache.Cache[fetchKey, []reliefweb.RawReport]

	mu   sync.Mutex
	keys map[reliefweb.QueryKey]struct{}
}

var _ cache.Cache[reliefweb.QueryKey, []reliefweb.RawReport] = (*sessionCache)(nil)

func newSessionCache(id string, shared cache.Cache[fetchKey, []reliefweb.RawReport]) *sessionCache {
	return &sessionCache{id: id, shared: shared, keys: make(map[reliefweb.QueryKey]struct{})}
}

func (c *sessionCache) Get(key reliefweb.QueryKey) ([]reliefweb.RawReport, bool) {
	return c.shared.Get(fetchKey{c.id, key})
}

func (c *sessionCache) Put(key reliefweb.QueryKey, reports []reliefweb.RawReport) {
	c.mu.Lock()
	c.keys[key] = struct{}{}
	c.mu.Unlock()
	c.shared.Put(fetchKey{c.id, key}, reports)
}

func (c *sessionCache) Remove(key reliefweb.QueryKey) {
	c.mu.Lock()
	delete(c.keys, key)
	c.mu.Unlock()
	c.shared.Remove(fetchKey{c.id, key})
}

func (c *sessionCache) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.keys {
		c.shared.Remove(fetchKey{c.id, key})
	}
	clear(c.keys)
}

// Len counts the session's entries still held by the shared cache.
func (c *sessionCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for key := range c.keys {
		if _, ok := c.shared.Get(fetchKey{c.id, key}); ok {
			n++
		}
	}
	return n
}
