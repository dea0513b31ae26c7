package handlers

import (
	"github.com/aaronzipp/snake-arena/internal/game"
	"github.com/aaronzipp/snake-arena/internal/models"
	"github.com/aaronzipp/snake-arena/internal/protocol"
	"github.com/aaronzipp/snake-arena/internal/render"
)

// handleCreateRoom opens a waiting session with the requester as host
func (ctx *Context) handleCreateRoom(connID string, who models.Identity, msg protocol.CreateRoom) error {
	color := models.DefaultHostColor
	if msg.Color != nil {
		color = *msg.Color
	}

	s := ctx.Sessions.Create(who, color, msg.Config)
	s.Lock()
	defer s.Unlock()

	ctx.transport().Join(s.ID, connID)
	ctx.logger().Info("room created", "room_id", s.ID, "user_id", who.UserID)
	ctx.send(connID, protocol.EventRoomCreated, protocol.RoomCreated{RoomID: s.ID, Game: render.Game(s)})
	return nil
}

// handleJoinRoom enrolls the requester into a waiting session
func (ctx *Context) handleJoinRoom(connID string, who models.Identity, msg protocol.JoinRoom) error {
	s, err := ctx.lookup(msg.RoomID)
	if err != nil {
		return err
	}

	color := models.DefaultJoinColor
	if msg.Color != nil {
		color = *msg.Color
	}

	s.Lock()
	defer s.Unlock()
	if err := game.CheckLive(s); err != nil {
		return err
	}
	if err := game.Join(s, who, color); err != nil {
		return err
	}

	ctx.transport().Join(s.ID, connID)
	ctx.logger().Info("player joined", "room_id", s.ID, "user_id", who.UserID, "players", len(s.Roster))
	ctx.broadcast(s.ID, protocol.EventPlayerJoined, protocol.PlayerJoined{
		PlayerID: who.UserID,
		Username: who.Name,
		Game:     render.Game(s),
	})
	return nil
}

// handleLeaveRoom removes the requester from a session in any state
func (ctx *Context) handleLeaveRoom(connID string, who models.Identity, msg protocol.LeaveRoom) error {
	s, err := ctx.lookup(msg.RoomID)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()
	if err := game.CheckLive(s); err != nil {
		return err
	}
	ctx.leaveLocked(s, who, connID)
	return nil
}

// Disconnect removes the connection's identity from every session it belongs
// to and forgets the binding. Unauthenticated connections are a no-op.
func (ctx *Context) Disconnect(connID string) {
	who, ok := ctx.Identities.Purge(connID)
	if !ok {
		return
	}
	ctx.logger().Info("user disconnected", "conn_id", connID, "user_id", who.UserID)

	for _, id := range ctx.Sessions.IDsContaining(who.UserID) {
		s, ok := ctx.Sessions.Get(id)
		if !ok {
			continue
		}
		s.Lock()
		if !s.Abandoned() {
			ctx.leaveLocked(s, who, connID)
		}
		s.Unlock()
	}
}

// leaveLocked applies a leave and notifies whoever remains (must be called
// with the session lock held)
func (ctx *Context) leaveLocked(s *models.Session, who models.Identity, connID string) {
	name := who.Name
	if p, ok := s.Roster[who.UserID]; ok {
		name = p.Name
	}

	removed, empty := game.Leave(s, who.UserID)
	ctx.transport().Leave(s.ID, connID)
	if !removed {
		return
	}

	if empty {
		ctx.Sessions.Delete(s.ID)
		ctx.logger().Info("room closed", "room_id", s.ID)
		return
	}

	view := render.Game(s)
	ctx.logger().Info("player left", "room_id", s.ID, "user_id", who.UserID, "players", len(s.Roster))
	ctx.broadcast(s.ID, protocol.EventPlayerLeft, protocol.PlayerLeft{
		PlayerID: who.UserID,
		Username: name,
		Game:     &view,
	})
}
