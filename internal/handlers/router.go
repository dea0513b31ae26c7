package handlers

import (
	"context"
	"errors"

	"github.com/aaronzipp/snake-arena/internal/game"
	"github.com/aaronzipp/snake-arena/internal/models"
	"github.com/aaronzipp/snake-arena/internal/protocol"
)

// HandleMessage decodes one inbound frame and runs it to completion.
// Frames from a single connection must be handled one at a time.
func (ctx *Context) HandleMessage(reqCtx context.Context, connID string, frame []byte) {
	msg, err := protocol.Decode(frame)
	if err != nil {
		ctx.logger().Debug("rejected frame", "conn_id", connID, "error", err)
		ctx.sendError(connID, game.Errorf(game.KindPreconditionFailed, "Invalid message"))
		return
	}

	if auth, ok := msg.(protocol.Authenticate); ok {
		ctx.handleAuthenticate(reqCtx, connID, auth)
		return
	}

	who, ok := ctx.Identities.Lookup(connID)
	if !ok {
		ctx.sendError(connID, game.Errorf(game.KindUnauthenticated, "Not authenticated"))
		return
	}

	switch m := msg.(type) {
	case protocol.CreateRoom:
		err = ctx.handleCreateRoom(connID, who, m)
	case protocol.JoinRoom:
		err = ctx.handleJoinRoom(connID, who, m)
	case protocol.StartGame:
		err = ctx.handleStartGame(who, m)
	case protocol.GameUpdate:
		err = ctx.handleGameUpdate(who, m)
	case protocol.PlayerDied:
		err = ctx.handlePlayerDied(who, m)
	case protocol.LeaveRoom:
		err = ctx.handleLeaveRoom(connID, who, m)
	}

	if err == nil || errors.Is(err, game.ErrTerminal) {
		return
	}
	ctx.logger().Debug("request rejected",
		"conn_id", connID, "user_id", who.UserID, "type", string(msg.Kind()), "kind", string(game.KindOf(err)), "error", err)
	ctx.sendError(connID, err)
}

// lookup resolves a session id to a live session
func (ctx *Context) lookup(roomID string) (*models.Session, error) {
	s, ok := ctx.Sessions.Get(roomID)
	if !ok {
		return nil, game.Errorf(game.KindNotFound, "Room not found")
	}
	return s, nil
}

func (ctx *Context) send(connID, event string, data any) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		ctx.logger().Error("failed to encode frame", "event", event, "error", err)
		return
	}
	ctx.transport().Send(connID, frame)
}

// broadcast queues an event for every connection in the room. Callers hold
// the session lock so each room sees its events in mutation order.
func (ctx *Context) broadcast(roomID, event string, data any) {
	frame, err := protocol.Encode(event, data)
	if err != nil {
		ctx.logger().Error("failed to encode frame", "event", event, "room_id", roomID, "error", err)
		return
	}
	ctx.transport().Broadcast(roomID, frame)
}

func (ctx *Context) sendError(connID string, err error) {
	var gerr *game.Error
	if !errors.As(err, &gerr) {
		gerr = game.Errorf(game.KindUpstreamFailure, "Internal error")
	}
	ctx.send(connID, protocol.EventError, protocol.ErrorPayload{
		Message: gerr.Message,
		Code:    string(gerr.Kind),
	})
}
