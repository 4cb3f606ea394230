package memory

import (
	"fmt"
	"sync"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// Store is the session-keyed registry of memory strategies. It is the sole
// owner of per-session memory state: Get lazily creates a strategy on first
// reference and every later Get for the same session returns that same
// instance. Idle sessions are evicted after the configured TTL, refreshed
// on each access; a zero TTL retains sessions for the process lifetime.
//
// The Store is constructor-injected wherever it is needed; there is no
// package-level instance.
type Store struct {
	mu        sync.Mutex
	sessions  *gocache.Cache
	ttl       time.Duration
	kind      Kind
	window    int
	compactor Compactor
}

// NewStore creates a Store from configuration. The compactor is required
// when the configured strategy compacts remotely (summary, summary_window,
// entity) and is ignored otherwise.
func NewStore(cfg *Config, compactor Compactor) (*Store, error) {
	ttl, err := cfg.validate()
	if err != nil {
		return nil, err
	}
	if cfg.Strategy.requiresCompactor() && compactor == nil {
		return nil, fmt.Errorf("%w: %s", ErrMissingCompactor, cfg.Strategy)
	}

	expiration := gocache.NoExpiration
	cleanup := time.Duration(0)
	if ttl > 0 {
		expiration = ttl
		cleanup = ttl / 2
	}

	return &Store{
		sessions:  gocache.New(expiration, cleanup),
		ttl:       ttl,
		kind:      cfg.Strategy,
		window:    cfg.WindowSize,
		compactor: compactor,
	}, nil
}

// Get returns the session's strategy, creating it on first reference. The
// strategy kind is chosen at creation and fixed for the session's lifetime.
// Access refreshes the session's eviction deadline.
func (s *Store) Get(sessionID string) (Strategy, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if cached, ok := s.sessions.Get(sessionID); ok {
		strategy := cached.(Strategy)
		s.sessions.SetDefault(sessionID, strategy)
		return strategy, nil
	}

	strategy, err := newStrategy(s.kind, s.window, s.compactor)
	if err != nil {
		return nil, err
	}
	s.sessions.SetDefault(sessionID, strategy)
	return strategy, nil
}

// OnEvict registers a callback invoked when a session's memory entry is
// removed, whether by the TTL sweep or an explicit Clear. At most one
// callback is held; registering replaces the previous one.
func (s *Store) OnEvict(fn func(sessionID string)) {
	s.sessions.OnEvicted(func(key string, _ any) { fn(key) })
}

// Clear discards the session's memory entirely. Unknown sessions are a no-op.
func (s *Store) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions.Delete(sessionID)
}

// Len returns the number of live sessions, counting entries that have
// expired but not yet been swept.
func (s *Store) Len() int {
	return s.sessions.ItemCount()
}
