package convo

import (
	"errors"
	"sync"
	"time"

	"github.com/famulus-ai/famulus/internal/models"
)

// ErrStaleWrite is returned when a Put carries a version older than the
// stored one. The caller's result was superseded by a newer message.
var ErrStaleWrite = errors.New("conversation context superseded by newer write")

// recentIntentsSize bounds the per-conversation intent ring used to bias
// classification of near-term follow-ups.
const recentIntentsSize = 3

// StoreConfig holds context store configuration
type StoreConfig struct {
	TTL           time.Duration // Context considered stale past this
	SweepInterval time.Duration // Janitor period
	MaxTurns      int           // Default enrichment turn budget
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() *StoreConfig {
	return &StoreConfig{
		TTL:           5 * time.Minute,
		SweepInterval: time.Minute,
		MaxTurns:      3,
	}
}

// Store is the conversation context store: an in-memory map keyed by
// conversation id with TTL eviction and version-stamped writes. In-flight
// enrichments are discarded on restart; that loss boundary is accepted.
type Store struct {
	config   *StoreConfig
	contexts map[string]*Context
	intents  map[string][]models.Intent
	locks    map[string]*sync.Mutex
	mu       sync.RWMutex
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewStore creates a context store and starts its eviction janitor.
func NewStore(config *StoreConfig) *Store {
	if config == nil {
		config = DefaultStoreConfig()
	}

	s := &Store{
		config:   config,
		contexts: make(map[string]*Context),
		intents:  make(map[string][]models.Intent),
		locks:    make(map[string]*sync.Mutex),
		stopCh:   make(chan struct{}),
	}

	go s.sweep()
	return s
}

// Acquire locks the conversation and returns its release function. All
// processing for one conversation id runs under this lock, so the
// single-pending-operation invariant cannot race.
func (s *Store) Acquire(conversationID string) func() {
	s.mu.Lock()
	lock, ok := s.locks[conversationID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[conversationID] = lock
	}
	s.mu.Unlock()

	lock.Lock()
	return lock.Unlock
}

// Get returns the live context for a conversation. Stale contexts are
// evicted and reported as absent, so the next message starts fresh.
func (s *Store) Get(conversationID string) (*Context, bool) {
	s.mu.RLock()
	ctx, ok := s.contexts[conversationID]
	s.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if ctx.Expired(s.config.TTL, time.Now()) {
		s.Delete(conversationID)
		return nil, false
	}

	return ctx, true
}

// Put stores a context, stamping a new version. If the stored version has
// moved past the version the caller read, the write is discarded with
// ErrStaleWrite.
func (s *Store) Put(ctx *Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.contexts[ctx.ConversationID]
	if ok && existing.Version > ctx.Version {
		return ErrStaleWrite
	}

	now := time.Now()
	if ctx.CreatedAt.IsZero() {
		ctx.CreatedAt = now
	}
	ctx.LastUpdated = now
	ctx.Version++
	s.contexts[ctx.ConversationID] = ctx
	return nil
}

// Delete removes a conversation's context. The recent-intents ring
// survives deletion; it biases classification across operations.
func (s *Store) Delete(conversationID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.contexts, conversationID)
}

// PushIntent appends a resolved intent to the conversation's bounded ring.
func (s *Store) PushIntent(conversationID string, intent models.Intent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ring := append(s.intents[conversationID], intent)
	if len(ring) > recentIntentsSize {
		ring = ring[len(ring)-recentIntentsSize:]
	}
	s.intents[conversationID] = ring
}

// RecentIntents returns the conversation's recent intents, oldest first.
func (s *Store) RecentIntents(conversationID string) []models.Intent {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ring := s.intents[conversationID]
	out := make([]models.Intent, len(ring))
	copy(out, ring)
	return out
}

// Len returns the number of live contexts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.contexts)
}

// MaxTurns returns the configured default enrichment turn budget.
func (s *Store) MaxTurns() int {
	return s.config.MaxTurns
}

// Close stops the eviction janitor.
func (s *Store) Close() {
	s.stopOnce.Do(func() { close(s.stopCh) })
}

// sweep evicts expired contexts periodically.
func (s *Store) sweep() {
	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			now := time.Now()
			s.mu.Lock()
			for id, ctx := range s.contexts {
				if ctx.Expired(s.config.TTL, now) {
					delete(s.contexts, id)
				}
			}
			s.mu.Unlock()
		case <-s.stopCh:
			return
		}
	}
}
