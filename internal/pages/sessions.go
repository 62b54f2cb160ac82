package pages

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/HerbHall/curio/pkg/content"
)

// ErrSessionNotFound is returned for unknown or expired session ids.
var ErrSessionNotFound = errors.New("session not found")

const defaultSessionTTL = 30 * time.Minute

// Session is one viewer's state on a page: the active tab plus every tab's
// filters and page cursor.
type Session struct {
	mu       sync.Mutex
	id       string
	tabs     *content.Tabs
	version  uint64
	lastSeen time.Time
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// sessionStore keeps sessions in memory and expires idle ones.
type sessionStore struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration
	now      func() time.Time
}

func newSessionStore(ttl time.Duration, now func() time.Time) *sessionStore {
	if ttl <= 0 {
		ttl = defaultSessionTTL
	}
	if now == nil {
		now = time.Now
	}
	return &sessionStore{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		now:      now,
	}
}

func (st *sessionStore) create(tabs *content.Tabs, version uint64) *Session {
	s := &Session{
		id:       uuid.NewString(),
		tabs:     tabs,
		version:  version,
		lastSeen: st.now(),
	}
	st.mu.Lock()
	st.sessions[s.id] = s
	st.mu.Unlock()
	return s
}

// get returns a live session and marks it as seen. Expired sessions are
// removed on access.
func (st *sessionStore) get(id string) (*Session, error) {
	st.mu.Lock()
	defer st.mu.Unlock()

	s, ok := st.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	now := st.now()
	if now.Sub(s.lastSeen) > st.ttl {
		delete(st.sessions, id)
		return nil, ErrSessionNotFound
	}
	s.lastSeen = now
	return s, nil
}

func (st *sessionStore) delete(id string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	_, ok := st.sessions[id]
	delete(st.sessions, id)
	return ok
}

// sweep removes idle sessions and returns how many were removed.
func (st *sessionStore) sweep() int {
	st.mu.Lock()
	defer st.mu.Unlock()

	now := st.now()
	removed := 0
	for id, s := range st.sessions {
		if now.Sub(s.lastSeen) > st.ttl {
			delete(st.sessions, id)
			removed++
		}
	}
	return removed
}

func (st *sessionStore) len() int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	return len(st.sessions)
}
