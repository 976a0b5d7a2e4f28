package conversation

import (
	"sync"
	"time"

	"github.com/set-night/npsbot/internal/domain"
)

type entry struct {
	mu       sync.Mutex
	session  *domain.Session
	refs     int
	lastSeen time.Time
}

// Store keeps one session per identity. A session is only touched while its
// entry lock is held, so turns for the same identity run one after another.
type Store struct {
	mu      sync.Mutex
	entries map[string]*entry
	ttl     time.Duration
	now     func() time.Time
}

// NewStore creates a store whose idle sessions expire after ttl. A zero ttl
// disables expiry.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		entries: make(map[string]*entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Acquire returns the session for identity, creating it on first use, and
// blocks until no other turn holds it. The caller must call release exactly once.
func (s *Store) Acquire(identity string) (*domain.Session, func()) {
	s.mu.Lock()
	e, ok := s.entries[identity]
	if !ok {
		now := s.now()
		e = &entry{session: domain.NewSession(identity, now), lastSeen: now}
		s.entries[identity] = e
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	return e.session, s.releaser(e)
}

// Peek returns a snapshot of an existing session without creating one.
func (s *Store) Peek(identity string) (domain.SessionView, bool) {
	s.mu.Lock()
	e, ok := s.entries[identity]
	if !ok {
		s.mu.Unlock()
		return domain.SessionView{}, false
	}
	e.refs++
	s.mu.Unlock()

	e.mu.Lock()
	view := e.session.View()
	e.mu.Unlock()

	s.mu.Lock()
	e.refs--
	s.mu.Unlock()
	return view, true
}

func (s *Store) releaser(e *entry) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			e.mu.Unlock()
			s.mu.Lock()
			e.refs--
			e.lastSeen = s.now()
			s.mu.Unlock()
		})
	}
}

// CleanupExpired drops sessions idle for longer than the ttl. Sessions held
// by a turn or under operator control are kept.
func (s *Store) CleanupExpired() int {
	if s.ttl <= 0 {
		return 0
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := s.now().Add(-s.ttl)
	removed := 0
	for id, e := range s.entries {
		if e.refs > 0 || e.session.ManualMode {
			continue
		}
		if e.lastSeen.Before(cutoff) {
			delete(s.entries, id)
			removed++
		}
	}
	return removed
}

type StoreStats struct {
	Total  int
	Manual int
	Busy   int
}

func (s *Store) Stats() StoreStats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := StoreStats{Total: len(s.entries)}
	for _, e := range s.entries {
		if e.refs > 0 {
			st.Busy++
			continue
		}
		if e.session.ManualMode {
			st.Manual++
		}
	}
	return st
}
