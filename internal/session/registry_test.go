package session

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/hareshsuppiah/sport-science-ai-chat/internal/domain"
	"github.com/hareshsuppiah/sport-science-ai-chat/internal/metrics"
)

func TestMain(m *testing.M) {
	metrics.Register()
	os.Exit(m.Run())
}

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestRegistry(ttl time.Duration) (*Registry, *fakeClock) {
	clock := &fakeClock{now: time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)}
	return NewRegistry(Options{TTL: ttl, MemoryCapacity: 10, Now: clock.Now}), clock
}

func TestCreateGetDelete(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)

	s := r.Create("S-042")
	if s.ID == "" {
		t.Fatal("expected session id")
	}
	if s.StudyNumber != "S-042" {
		t.Errorf("unexpected study number: %q", s.StudyNumber)
	}

	got, err := r.Get(s.ID)
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if got != s {
		t.Error("expected the same session")
	}

	if err := r.Delete(s.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := r.Get(s.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound after delete, got %v", err)
	}
	if err := r.Delete(s.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Errorf("expected ErrSessionNotFound on second delete, got %v", err)
	}
}

func TestCreate_UniqueIDs(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	seen := make(map[string]bool)
	for range 100 {
		s := r.Create("")
		if seen[s.ID] {
			t.Fatalf("duplicate session id %s", s.ID)
		}
		seen[s.ID] = true
	}
	if r.Len() != 100 {
		t.Errorf("expected 100 sessions, got %d", r.Len())
	}
}

func TestSweep_ExpiresIdleSessions(t *testing.T) {
	r, clock := newTestRegistry(30 * time.Minute)

	stale := r.Create("")
	clock.Advance(20 * time.Minute)
	fresh := r.Create("")
	clock.Advance(15 * time.Minute)

	removed := r.Sweep(clock.Now())
	if removed != 1 {
		t.Fatalf("expected 1 removed, got %d", removed)
	}
	if _, err := r.Get(stale.ID); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Error("expected stale session to be gone")
	}
	if _, err := r.Get(fresh.ID); err != nil {
		t.Errorf("expected fresh session to survive: %v", err)
	}
	if got := testutil.ToFloat64(metrics.SessionsActive); got != 1 {
		t.Errorf("expected sessions_active=1, got %v", got)
	}
}

func TestSweep_GetRefreshesIdleTimer(t *testing.T) {
	r, clock := newTestRegistry(30 * time.Minute)

	s := r.Create("")
	clock.Advance(25 * time.Minute)
	if _, err := r.Get(s.ID); err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	clock.Advance(25 * time.Minute)

	if removed := r.Sweep(clock.Now()); removed != 0 {
		t.Errorf("expected touched session to survive, removed %d", removed)
	}
}

func TestSweep_KeepsBusySessions(t *testing.T) {
	r, clock := newTestRegistry(time.Minute)

	s := r.Create("")
	conv := s.Conversation("study-1")
	if !conv.TryBegin() {
		t.Fatal("expected TryBegin to succeed")
	}
	clock.Advance(time.Hour)

	if removed := r.Sweep(clock.Now()); removed != 0 {
		t.Errorf("expected busy session to survive, removed %d", removed)
	}
	conv.End()
	if removed := r.Sweep(clock.Now()); removed != 1 {
		t.Errorf("expected idle session removed after End, removed %d", removed)
	}
}

func TestRun_StopsOnCancel(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		r.Run(ctx, time.Millisecond)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestSession_ConversationsAreIsolated(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	s := r.Create("")

	a := s.Conversation("sleep-scientist")
	b := s.Conversation("strength-coach")
	if a == b {
		t.Fatal("expected distinct conversations per context")
	}
	if s.Conversation("sleep-scientist") != a {
		t.Error("expected the same conversation on repeated lookup")
	}

	at := time.Now()
	a.Memory().Add(domain.NewMessage(domain.RoleUser, "How much sleep do sprinters need?", at))
	a.Append(domain.NewMessage(domain.RoleUser, "How much sleep do sprinters need?", at))

	if b.Memory().Len() != 0 {
		t.Errorf("expected other context memory untouched, got %d", b.Memory().Len())
	}
	if _, total := b.Transcript(0, 0); total != 0 {
		t.Errorf("expected other context transcript untouched, got %d", total)
	}
	if !a.TryBegin() {
		t.Fatal("expected TryBegin on a")
	}
	if !b.TryBegin() {
		t.Error("a busy context must not block another context")
	}

	ids := s.Contexts()
	if len(ids) != 2 || ids[0] != "sleep-scientist" || ids[1] != "strength-coach" {
		t.Errorf("unexpected contexts: %v", ids)
	}
}

func TestSession_MemoryCapacityApplied(t *testing.T) {
	r, _ := newTestRegistry(time.Hour)
	conv := r.Create("").Conversation("study-1")

	for i := range 15 {
		conv.Memory().Add(domain.NewMessage(domain.RoleUser, string(rune('a'+i)), time.Now()))
	}
	if conv.Memory().Len() != 10 {
		t.Errorf("expected capacity 10 applied, got %d", conv.Memory().Len())
	}
}
