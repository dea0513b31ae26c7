package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/aaronzipp/snake-arena/internal/models"
)

// SnakeEntry is one [playerId, snakeData] pair in a game view
type SnakeEntry struct {
	PlayerID string
	Data     json.RawMessage
}

// MarshalJSON encodes the entry as a two element array
func (e SnakeEntry) MarshalJSON() ([]byte, error) {
	data := e.Data
	if len(data) == 0 {
		data = json.RawMessage("null")
	}
	return json.Marshal([]any{e.PlayerID, data})
}

// UnmarshalJSON decodes a [playerId, snakeData] pair
func (e *SnakeEntry) UnmarshalJSON(b []byte) error {
	var pair []json.RawMessage
	if err := json.Unmarshal(b, &pair); err != nil {
		return err
	}
	if len(pair) != 2 {
		return fmt.Errorf("snake entry: want 2 elements, got %d", len(pair))
	}
	if err := json.Unmarshal(pair[0], &e.PlayerID); err != nil {
		return err
	}
	e.Data = pair[1]
	return nil
}

// GameView is the full session state sent to clients
type GameView struct {
	ID      string                `json:"id"`
	HostID  string                `json:"hostId"`
	Players []models.Participant  `json:"players"`
	Snakes  []SnakeEntry          `json:"snakes"`
	Fruits  []json.RawMessage     `json:"fruits"`
	State   models.LifecycleState `json:"state"`
	Turn    int64                 `json:"turn"`
	Config  json.RawMessage       `json:"config,omitempty"`
	Winner  string                `json:"winner,omitempty"`
}

type Authenticated struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type ErrorPayload struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

type RoomCreated struct {
	RoomID string   `json:"roomId"`
	Game   GameView `json:"game"`
}

type PlayerJoined struct {
	PlayerID string   `json:"playerId"`
	Username string   `json:"username"`
	Game     GameView `json:"game"`
}

type GameStarted struct {
	Game GameView `json:"game"`
}

type PlayerDiedEvent struct {
	PlayerID string `json:"playerId"`
	Username string `json:"username"`
}

// GameOver carries a null winner on a draw
type GameOver struct {
	Winner     *string  `json:"winner"`
	FinalState GameView `json:"finalState"`
}

type PlayerLeft struct {
	PlayerID string    `json:"playerId"`
	Username string    `json:"username"`
	Game     *GameView `json:"game,omitempty"`
}
