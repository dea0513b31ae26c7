package store

import (
	"encoding/json"
	"sort"
	"sync"
	"time"

	"github.com/aaronzipp/snake-arena/internal/game"
	"github.com/aaronzipp/snake-arena/internal/models"
)

// SessionStore is the process-wide registry of live sessions.
//
// The store never takes a session lock while holding its own, so callers may
// hold a session lock while calling Delete or ScheduleDisposal.
type SessionStore struct {
	sessions map[string]*models.Session
	timers   map[string]*time.Timer
	mu       sync.RWMutex
	now      func() time.Time
}

// NewSessionStore creates a new session store
func NewSessionStore() *SessionStore {
	return &SessionStore{
		sessions: make(map[string]*models.Session),
		timers:   make(map[string]*time.Timer),
		now:      time.Now,
	}
}

// Create allocates a waiting session with the host enrolled under a fresh id
func (s *SessionStore) Create(host models.Identity, color models.Color, config json.RawMessage) *models.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	id := game.GenerateRoomID(now)
	for {
		if _, exists := s.sessions[id]; !exists {
			break
		}
		id = game.GenerateRoomID(now)
	}

	session := models.NewSession(id, host, color, config, now)
	s.sessions[id] = session
	return session
}

// Get retrieves a live session by id
func (s *SessionStore) Get(id string) (*models.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, exists := s.sessions[id]
	if !exists || session.Abandoned() {
		return nil, false
	}
	return session, true
}

// Delete removes a session and cancels its pending disposal; unknown ids are a no-op
func (s *SessionStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteLocked(id)
}

func (s *SessionStore) deleteLocked(id string) {
	if t, ok := s.timers[id]; ok {
		t.Stop()
		delete(s.timers, id)
	}
	delete(s.sessions, id)
}

// ScheduleDisposal removes the session after the given delay unless it was
// already removed. Rescheduling replaces any earlier timer.
func (s *SessionStore) ScheduleDisposal(id string, after time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, exists := s.sessions[id]
	if !exists {
		return
	}
	if t, ok := s.timers[id]; ok {
		t.Stop()
	}

	var timer *time.Timer
	timer = time.AfterFunc(after, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		// the timer may have been replaced or the id re-registered
		if s.timers[id] != timer {
			return
		}
		delete(s.timers, id)
		if s.sessions[id] == target {
			delete(s.sessions, id)
		}
	})
	s.timers[id] = timer
}

// DisposalPending reports whether a disposal timer is armed for the id
func (s *SessionStore) DisposalPending(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.timers[id]
	return ok
}

// snapshot returns the registered sessions without holding any session lock
func (s *SessionStore) snapshot() []*models.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list := make([]*models.Session, 0, len(s.sessions))
	for _, session := range s.sessions {
		list = append(list, session)
	}
	return list
}

// ListActive returns every session that is neither finished nor abandoned
func (s *SessionStore) ListActive() []models.ListedSession {
	listed := make([]models.ListedSession, 0)
	for _, session := range s.snapshot() {
		session.RLock()
		if !session.Abandoned() && !session.State.Terminal() {
			listed = append(listed, models.ListedSession{
				ID:          session.ID,
				PlayerCount: len(session.Roster),
				State:       session.State,
			})
		}
		session.RUnlock()
	}
	sort.Slice(listed, func(i, j int) bool { return listed[i].ID < listed[j].ID })
	return listed
}

// IDsContaining returns the ids of live sessions whose roster contains the user
func (s *SessionStore) IDsContaining(userID string) []string {
	var ids []string
	for _, session := range s.snapshot() {
		session.RLock()
		if !session.Abandoned() && session.Has(userID) {
			ids = append(ids, session.ID)
		}
		session.RUnlock()
	}
	sort.Strings(ids)
	return ids
}

// Len returns the number of registered sessions, including finished ones
// awaiting disposal
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}
