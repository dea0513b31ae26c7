// Package protocol defines the JSON frames exchanged over the game socket.
//
// Every frame is an envelope {"type": ..., "data": ...}. Inbound frames decode
// into one concrete Message per Kind; client game state (snakeData, config) is
// carried as json.RawMessage and never interpreted.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/aaronzipp/snake-arena/internal/models"
)

// ErrUnknownKind is returned by Decode for unrecognised message types.
var ErrUnknownKind = errors.New("unknown message type")

// Envelope is the wire wrapper around every frame.
type Envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Message is one decoded inbound frame.
type Message interface {
	Kind() Kind
}

type Authenticate struct {
	IDToken  string `json:"idToken"`
	Username string `json:"username"`
}

type CreateRoom struct {
	Config json.RawMessage `json:"config,omitempty"`
	Color  *models.Color   `json:"color,omitempty"`
}

type JoinRoom struct {
	RoomID string        `json:"roomId"`
	Color  *models.Color `json:"color,omitempty"`
}

type StartGame struct {
	RoomID string `json:"roomId"`
}

type GameUpdate struct {
	RoomID    string          `json:"roomId"`
	SnakeData json.RawMessage `json:"snakeData"`
	Score     int64           `json:"score"`
}

type PlayerDied struct {
	RoomID string `json:"roomId"`
}

type LeaveRoom struct {
	RoomID string `json:"roomId"`
}

func (Authenticate) Kind() Kind { return KindAuthenticate }
func (CreateRoom) Kind() Kind   { return KindCreateRoom }
func (JoinRoom) Kind() Kind     { return KindJoinRoom }
func (StartGame) Kind() Kind    { return KindStartGame }
func (GameUpdate) Kind() Kind   { return KindGameUpdate }
func (PlayerDied) Kind() Kind   { return KindPlayerDied }
func (LeaveRoom) Kind() Kind    { return KindLeaveRoom }

// Decode parses a frame into its concrete message.
func Decode(frame []byte) (Message, error) {
	var env Envelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("decode envelope: %w", err)
	}

	var msg Message
	switch Kind(env.Type) {
	case KindAuthenticate:
		msg = &Authenticate{}
	case KindCreateRoom:
		msg = &CreateRoom{}
	case KindJoinRoom:
		msg = &JoinRoom{}
	case KindStartGame:
		msg = &StartGame{}
	case KindGameUpdate:
		msg = &GameUpdate{}
	case KindPlayerDied:
		msg = &PlayerDied{}
	case KindLeaveRoom:
		msg = &LeaveRoom{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, env.Type)
	}

	if len(env.Data) > 0 && string(env.Data) != "null" {
		if err := json.Unmarshal(env.Data, msg); err != nil {
			return nil, fmt.Errorf("decode %s: %w", env.Type, err)
		}
	}
	return deref(msg), nil
}

func deref(msg Message) Message {
	switch m := msg.(type) {
	case *Authenticate:
		return *m
	case *CreateRoom:
		return *m
	case *JoinRoom:
		return *m
	case *StartGame:
		return *m
	case *GameUpdate:
		return *m
	case *PlayerDied:
		return *m
	case *LeaveRoom:
		return *m
	}
	return msg
}

// Encode wraps data in an envelope for the named event.
func Encode(event string, data any) ([]byte, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", event, err)
	}
	return json.Marshal(Envelope{Type: event, Data: raw})
}
