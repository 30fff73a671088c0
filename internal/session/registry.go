// Package session keeps per-user chat state in process memory with idle expiry.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/metrics"
)

// DefaultTTL is the idle time after which a session is torn down.
const DefaultTTL = time.Hour

// Session groups the conversations of one user, one per persona.
type Session struct {
	ID          string
	StudyNumber string
	CreatedAt   time.Time

	memoryCapacity int

	mu            sync.Mutex
	lastSeen      time.Time
	conversations map[string]*Conversation
}

// Conversation returns the conversation for contextID, creating it on first use.
func (s *Session) Conversation(contextID string) *Conversation {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.conversations[contextID]
	if !ok {
		conv = newConversation(contextID, s.memoryCapacity)
		s.conversations[contextID] = conv
	}
	return conv
}

// Contexts lists the persona IDs that have a conversation, sorted.
func (s *Session) Contexts() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := make([]string, 0, len(s.conversations))
	for id := range s.conversations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// LastSeen returns the last time the session was accessed.
func (s *Session) LastSeen() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastSeen
}

func (s *Session) touch(now time.Time) {
	s.mu.Lock()
	s.lastSeen = now
	s.mu.Unlock()
}

// busy reports whether any conversation has a turn in flight.
func (s *Session) busy() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.conversations {
		if c.Busy() {
			return true
		}
	}
	return false
}

// Options configures a Registry.
type Options struct {
	TTL            time.Duration
	MemoryCapacity int
	Logger         *zap.Logger
	// Now overrides the clock. Defaults to time.Now.
	Now func() time.Time
}

// Registry owns all live sessions.
type Registry struct {
	ttl            time.Duration
	memoryCapacity int
	logger         *zap.Logger
	now            func() time.Time

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry(opts Options) *Registry {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Registry{
		ttl:            opts.TTL,
		memoryCapacity: opts.MemoryCapacity,
		logger:         opts.Logger,
		now:            opts.Now,
		sessions:       make(map[string]*Session),
	}
}

// Create starts a new session. studyNumber may be empty.
func (r *Registry) Create(studyNumber string) *Session {
	now := r.now()
	s := &Session{
		ID:             uuid.NewString(),
		StudyNumber:    studyNumber,
		CreatedAt:      now,
		memoryCapacity: r.memoryCapacity,
		lastSeen:       now,
		conversations:  make(map[string]*Conversation),
	}

	r.mu.Lock()
	r.sessions[s.ID] = s
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	return s
}

// Get returns a live session and refreshes its idle timer.
func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	s, ok := r.sessions[id]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.ErrSessionNotFound
	}
	s.touch(r.now())
	return s, nil
}

// Delete tears a session down.
func (r *Registry) Delete(id string) error {
	r.mu.Lock()
	_, ok := r.sessions[id]
	delete(r.sessions, id)
	n := len(r.sessions)
	r.mu.Unlock()

	if !ok {
		return domain.ErrSessionNotFound
	}
	metrics.SessionsActive.Set(float64(n))
	return nil
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// Sweep removes sessions idle for longer than the TTL and returns how many were removed.
// Sessions with a turn in flight are kept.
func (r *Registry) Sweep(now time.Time) int {
	r.mu.Lock()
	removed := 0
	for id, s := range r.sessions {
		if now.Sub(s.LastSeen()) > r.ttl && !s.busy() {
			delete(r.sessions, id)
			removed++
		}
	}
	n := len(r.sessions)
	r.mu.Unlock()

	metrics.SessionsActive.Set(float64(n))
	if removed > 0 {
		r.logger.Info("Expired idle sessions", zap.Int("removed", removed), zap.Int("active", n))
	}
	return removed
}

// Run sweeps on every tick until ctx is done.
func (r *Registry) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.Sweep(r.now())
		}
	}
}
