// Package render builds the client-facing views of a session.
package render

import (
	"encoding/json"

	"github.com/aaronzipp/snake-arena/internal/models"
	"github.com/aaronzipp/snake-arena/internal/protocol"
)

// Game snapshots a session for the wire (must be called with the session lock held)
func Game(s *models.Session) protocol.GameView {
	players := s.Participants()
	view := protocol.GameView{
		ID:      s.ID,
		HostID:  s.Host,
		Players: make([]models.Participant, 0, len(players)),
		Snakes:  make([]protocol.SnakeEntry, 0, len(s.Snakes)),
		Fruits:  []json.RawMessage{},
		State:   s.State,
		Turn:    s.Turn,
		Config:  s.Config,
		Winner:  s.WinnerID,
	}
	for _, p := range players {
		view.Players = append(view.Players, *p)
		if data, ok := s.Snakes[p.ID]; ok {
			view.Snakes = append(view.Snakes, protocol.SnakeEntry{PlayerID: p.ID, Data: data})
		}
	}
	return view
}
