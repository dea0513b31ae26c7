package handlers

import (
	"context"
	"strings"

	"github.com/aaronzipp/snake-arena/internal/models"
	"github.com/aaronzipp/snake-arena/internal/protocol"
)

func (ctx *Context) handleAuthenticate(reqCtx context.Context, connID string, msg protocol.Authenticate) {
	log := ctx.logger().With("conn_id", connID)

	if strings.TrimSpace(msg.IDToken) == "" {
		ctx.send(connID, protocol.EventAuthError, protocol.ErrorPayload{Message: "Missing idToken"})
		return
	}

	verifyCtx, cancel := context.WithTimeout(reqCtx, ctx.authTimeout())
	defer cancel()

	userID, err := ctx.Verifier.Verify(verifyCtx, msg.IDToken)
	if err != nil {
		log.Warn("authentication failed", "error", err)
		ctx.send(connID, protocol.EventAuthError, protocol.ErrorPayload{Message: "Authentication failed"})
		return
	}

	name := strings.TrimSpace(msg.Username)
	if name == "" {
		name = userID
	}

	if err := ctx.Recorder.TouchUser(verifyCtx, userID, name); err != nil {
		log.Error("failed to record login", "user_id", userID, "error", err)
		ctx.send(connID, protocol.EventAuthError, protocol.ErrorPayload{Message: "Authentication failed"})
		return
	}

	// the peer may have gone away while we were waiting on upstream calls
	if !ctx.transport().Connected(connID) {
		log.Debug("connection closed during authentication", "user_id", userID)
		return
	}

	ctx.Identities.Bind(connID, models.Identity{UserID: userID, Name: name})
	log.Info("user authenticated", "user_id", userID)
	ctx.send(connID, protocol.EventAuthenticated, protocol.Authenticated{UserID: userID, Username: name})
}
