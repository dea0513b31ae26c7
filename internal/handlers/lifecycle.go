package handlers

import (
	"github.com/aaronzipp/snake-arena/internal/game"
	"github.com/aaronzipp/snake-arena/internal/models"
	"github.com/aaronzipp/snake-arena/internal/protocol"
	"github.com/aaronzipp/snake-arena/internal/render"
)

// handleStartGame moves a waiting session to active on the host's request
func (ctx *Context) handleStartGame(who models.Identity, msg protocol.StartGame) error {
	s, err := ctx.lookup(msg.RoomID)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()
	if err := game.CheckLive(s); err != nil {
		return err
	}
	if err := game.Start(s, who.UserID, ctx.now()); err != nil {
		return err
	}

	ctx.logger().Info("game started", "room_id", s.ID, "players", len(s.Roster))
	ctx.broadcast(s.ID, protocol.EventGameStarted, protocol.GameStarted{Game: render.Game(s)})
	return nil
}

// handleGameUpdate relays a participant's turn state to the room
func (ctx *Context) handleGameUpdate(who models.Identity, msg protocol.GameUpdate) error {
	s, err := ctx.lookup(msg.RoomID)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()
	if err := game.CheckLive(s); err != nil {
		return err
	}
	if err := game.ApplyUpdate(s, who.UserID, msg.SnakeData, msg.Score); err != nil {
		return err
	}

	ctx.broadcast(s.ID, protocol.EventGameState, render.Game(s))
	return nil
}

// handlePlayerDied records a death and, when at most one participant is left
// alive, ends the session
func (ctx *Context) handlePlayerDied(who models.Identity, msg protocol.PlayerDied) error {
	s, err := ctx.lookup(msg.RoomID)
	if err != nil {
		return err
	}

	s.Lock()
	defer s.Unlock()
	if err := game.CheckLive(s); err != nil {
		return err
	}
	outcome, err := game.ApplyDeath(s, who.UserID, ctx.now())
	if err != nil {
		return err
	}

	ctx.broadcast(s.ID, protocol.EventPlayerDied, protocol.PlayerDiedEvent{
		PlayerID: who.UserID,
		Username: s.Roster[who.UserID].Name,
	})
	if !outcome.Finished {
		return nil
	}

	var winner *string
	if outcome.WinnerID != "" {
		winner = &outcome.WinnerID
	}
	ctx.broadcast(s.ID, protocol.EventGameOver, protocol.GameOver{Winner: winner, FinalState: render.Game(s)})
	ctx.logger().Info("game over", "room_id", s.ID, "winner", outcome.WinnerID, "turns", s.Turn)

	ctx.Recorder.RecordCompletedSessionAsync(s.Summary())
	ctx.Sessions.ScheduleDisposal(s.ID, ctx.gracePeriod())
	return nil
}
