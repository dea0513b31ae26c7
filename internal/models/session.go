package models

import (
	"encoding/json"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// Session represents one match room and its lifecycle state
type Session struct {
	ID        string
	Host      string
	State     LifecycleState
	Roster    map[string]*Participant    // participantID -> Participant
	Snakes    map[string]json.RawMessage // participantID -> opaque client state
	Config    json.RawMessage
	Turn      int64
	CreatedAt time.Time
	StartedAt time.Time
	EndedAt   time.Time
	WinnerID  string

	mu        sync.RWMutex
	abandoned atomic.Bool
}

// NewSession creates a waiting session with the host enrolled
func NewSession(id string, host Identity, color Color, config json.RawMessage, now time.Time) *Session {
	s := &Session{
		ID:        id,
		Host:      host.UserID,
		State:     StateWaiting,
		Roster:    make(map[string]*Participant),
		Snakes:    make(map[string]json.RawMessage),
		Config:    config,
		CreatedAt: now,
	}
	s.Roster[host.UserID] = &Participant{
		ID:    host.UserID,
		Name:  host.Name,
		Color: color,
		Alive: true,
	}
	return s
}

// Lock acquires the session's write lock
func (s *Session) Lock() {
	s.mu.Lock()
}

// Unlock releases the session's write lock
func (s *Session) Unlock() {
	s.mu.Unlock()
}

// RLock acquires the session's read lock
func (s *Session) RLock() {
	s.mu.RLock()
}

// RUnlock releases the session's read lock
func (s *Session) RUnlock() {
	s.mu.RUnlock()
}

// MarkAbandoned flags a session whose roster emptied (must be called with lock held)
func (s *Session) MarkAbandoned() {
	s.abandoned.Store(true)
}

// Abandoned reports whether the session was emptied; safe without the lock
func (s *Session) Abandoned() bool {
	return s.abandoned.Load()
}

// Has reports whether the participant is enrolled (must be called with lock held)
func (s *Session) Has(participantID string) bool {
	_, ok := s.Roster[participantID]
	return ok
}

// AliveCount counts participants still alive (must be called with lock held)
func (s *Session) AliveCount() int {
	n := 0
	for _, p := range s.Roster {
		if p.Alive {
			n++
		}
	}
	return n
}

// Participants returns the roster sorted by ID (must be called with lock held)
func (s *Session) Participants() []*Participant {
	list := make([]*Participant, 0, len(s.Roster))
	for _, p := range s.Roster {
		list = append(list, p)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list
}

// Summary copies the final roster for persistence (must be called with lock held)
func (s *Session) Summary() SessionSummary {
	players := make([]ParticipantResult, 0, len(s.Roster))
	for _, p := range s.Participants() {
		players = append(players, ParticipantResult{
			UserID:   p.ID,
			Username: p.Name,
			Score:    p.Score,
			Alive:    p.Alive,
		})
	}
	return SessionSummary{
		SessionID:    s.ID,
		Participants: players,
		WinnerID:     s.WinnerID,
		StartedAt:    s.StartedAt,
		EndedAt:      s.EndedAt,
		Duration:     s.EndedAt.Sub(s.StartedAt),
	}
}
