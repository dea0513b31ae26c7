package game

import (
	"encoding/json"
	"time"

	"github.com/aaronzipp/snake-arena/internal/models"
)

// The transitions below must be called with the session's write lock held.

// DeathOutcome describes the effect of a player_died event
type DeathOutcome struct {
	Finished bool
	WinnerID string // empty when finished as a draw
}

// CheckLive rejects sessions that were abandoned after lookup
func CheckLive(s *models.Session) error {
	if s == nil || s.Abandoned() {
		return Errorf(KindNotFound, "Room not found")
	}
	return nil
}

// Join enrolls a participant into a waiting session
func Join(s *models.Session, who models.Identity, color models.Color) error {
	if s.State != models.StateWaiting {
		return Errorf(KindPreconditionFailed, "Game already started")
	}
	if s.Has(who.UserID) {
		return Errorf(KindPreconditionFailed, "Already in room")
	}
	if len(s.Roster) >= MaxParticipants {
		return Errorf(KindPreconditionFailed, "Room is full")
	}
	s.Roster[who.UserID] = &models.Participant{
		ID:    who.UserID,
		Name:  who.Name,
		Color: color,
		Alive: true,
	}
	return nil
}

// Start moves a waiting session to active on the host's request
func Start(s *models.Session, requester string, now time.Time) error {
	if s.Host != requester {
		return Errorf(KindForbidden, "Only host can start the game")
	}
	if !s.State.CanAdvanceTo(models.StateActive) {
		return Errorf(KindPreconditionFailed, "Game already started")
	}
	if len(s.Roster) < MinParticipants {
		return Errorf(KindPreconditionFailed, "Need at least %d players", MinParticipants)
	}
	s.State = models.StateActive
	s.StartedAt = now
	return nil
}

// ApplyUpdate stores the requester's opaque state and score and advances the turn
func ApplyUpdate(s *models.Session, requester string, snake json.RawMessage, score int64) error {
	if s.State.Terminal() {
		return ErrTerminal
	}
	if s.State != models.StateActive {
		return Errorf(KindPreconditionFailed, "Game not started")
	}
	p, ok := s.Roster[requester]
	if !ok {
		return Errorf(KindForbidden, "Not a player in this room")
	}
	s.Snakes[requester] = snake
	p.Score = score
	s.Turn++
	return nil
}

// ApplyDeath marks the requester dead and finishes the session when at most
// one participant remains alive
func ApplyDeath(s *models.Session, requester string, now time.Time) (DeathOutcome, error) {
	if s.State.Terminal() {
		return DeathOutcome{}, ErrTerminal
	}
	if s.State != models.StateActive {
		return DeathOutcome{}, Errorf(KindPreconditionFailed, "Game not started")
	}
	p, ok := s.Roster[requester]
	if !ok {
		return DeathOutcome{}, Errorf(KindForbidden, "Not a player in this room")
	}
	p.Alive = false

	if s.AliveCount() > 1 {
		return DeathOutcome{}, nil
	}

	s.State = models.StateFinished
	s.EndedAt = now
	// no survivor means both died on the same turn; that is a draw
	for _, survivor := range s.Roster {
		if survivor.Alive {
			s.WinnerID = survivor.ID
		}
	}
	return DeathOutcome{Finished: true, WinnerID: s.WinnerID}, nil
}

// Leave removes a participant in any state. It reports whether anything was
// removed and whether the roster is now empty.
func Leave(s *models.Session, participantID string) (removed, empty bool) {
	if !s.Has(participantID) {
		return false, len(s.Roster) == 0
	}
	delete(s.Roster, participantID)
	delete(s.Snakes, participantID)
	if len(s.Roster) == 0 {
		s.MarkAbandoned()
		return true, true
	}
	return true, false
}
