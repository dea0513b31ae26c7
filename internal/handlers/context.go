package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/aaronzipp/snake-arena/internal/game"
	"github.com/aaronzipp/snake-arena/internal/identity"
	"github.com/aaronzipp/snake-arena/internal/models"
	"github.com/aaronzipp/snake-arena/internal/store"
	"github.com/aaronzipp/snake-arena/internal/ws"
)

// DefaultAuthTimeout bounds one identity verification
const DefaultAuthTimeout = 10 * time.Second

// Transport delivers frames to connections and room groups
type Transport interface {
	Send(connID string, frame []byte) bool
	Broadcast(room string, frame []byte) int
	Join(room, connID string)
	Leave(room, connID string)
	Connected(connID string) bool
}

// Recorder is the persistence surface the handlers rely on
type Recorder interface {
	RecordCompletedSessionAsync(summary models.SessionSummary)
	TouchUser(ctx context.Context, userID, username string) error
	UserStats(ctx context.Context, userID string, recent int) (models.UserStats, []models.ResultRecord, error)
	Leaderboard(ctx context.Context, limit int) ([]models.UserStats, error)
}

// Context holds shared application dependencies
type Context struct {
	Sessions    *store.SessionStore
	Identities  *identity.Cache
	Verifier    identity.Verifier
	Recorder    Recorder
	Hub         *ws.Hub
	Transport   Transport // defaults to Hub
	GracePeriod time.Duration
	AuthTimeout time.Duration
	PublicURL   string
	Logger      *slog.Logger
	Now         func() time.Time
}

func (ctx *Context) transport() Transport {
	if ctx.Transport != nil {
		return ctx.Transport
	}
	return ctx.Hub
}

func (ctx *Context) logger() *slog.Logger {
	if ctx.Logger != nil {
		return ctx.Logger
	}
	return slog.Default()
}

func (ctx *Context) now() time.Time {
	if ctx.Now != nil {
		return ctx.Now()
	}
	return time.Now()
}

func (ctx *Context) gracePeriod() time.Duration {
	if ctx.GracePeriod > 0 {
		return ctx.GracePeriod
	}
	return game.DefaultGracePeriod
}

func (ctx *Context) authTimeout() time.Duration {
	if ctx.AuthTimeout > 0 {
		return ctx.AuthTimeout
	}
	return DefaultAuthTimeout
}
