// Package persistence records completed sessions and per-user aggregates.
//
// Writes are best effort: the outcome of a match is whatever was broadcast to
// its participants, so storage failures are logged and never surfaced to the
// session that produced them.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sourcegraph/conc"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/aaronzipp/snake-arena/internal/models"
)

const tracerName = "github.com/aaronzipp/snake-arena/internal/persistence"

// DefaultTimeout bounds one asynchronous completion write.
const DefaultTimeout = 10 * time.Second

// ErrUserNotFound is returned by Store.UserStats for unknown users.
var ErrUserNotFound = errors.New("user not found")

// StatsDelta is an additive change to a user aggregate.
type StatsDelta struct {
	Username    string
	GamesPlayed int64
	TotalScore  int64
	Wins        int64
}

// Store is the durable record store.
type Store interface {
	AppendResult(ctx context.Context, rec models.ResultRecord) error
	IncrementUserStats(ctx context.Context, userID string, delta StatsDelta) error
	TouchUser(ctx context.Context, userID, username string, at time.Time) error
	UserStats(ctx context.Context, userID string) (models.UserStats, error)
	RecentResults(ctx context.Context, userID string, limit int) ([]models.ResultRecord, error)
	Leaderboard(ctx context.Context, limit int) ([]models.UserStats, error)
}

// Gateway is the only path from the game core to the record store.
type Gateway struct {
	store   Store
	logger  *slog.Logger
	tracer  trace.Tracer
	timeout time.Duration
	newID   func() string
	now     func() time.Time

	pending sync.WaitGroup
}

// NewGateway wraps store. A zero timeout selects DefaultTimeout.
func NewGateway(store Store, logger *slog.Logger, timeout time.Duration) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Gateway{
		store:   store,
		logger:  logger.With("component", "persistence"),
		tracer:  otel.Tracer(tracerName),
		timeout: timeout,
		newID:   func() string { return uuid.New().String() },
		now:     time.Now,
	}
}

// RecordCompletedSessionAsync records summary in the background and returns
// immediately.
func (g *Gateway) RecordCompletedSessionAsync(summary models.SessionSummary) {
	g.pending.Add(1)
	go func() {
		defer g.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), g.timeout)
		defer cancel()
		g.RecordCompletedSession(ctx, summary)
	}()
}

// Wait blocks until every asynchronous write has finished.
func (g *Gateway) Wait() {
	g.pending.Wait()
}

// RecordCompletedSession appends the result record and then applies each
// participant's aggregate update independently. Failures are logged.
func (g *Gateway) RecordCompletedSession(ctx context.Context, summary models.SessionSummary) {
	ctx, span := g.tracer.Start(ctx, "persistence.RecordCompletedSession",
		trace.WithAttributes(
			attribute.String("room.id", summary.SessionID),
			attribute.Int("room.participants", len(summary.Participants)),
		))
	defer span.End()

	log := g.logger.With("room_id", summary.SessionID)

	rec := models.ResultRecord{
		ID:         g.newID(),
		RoomID:     summary.SessionID,
		Players:    summary.Participants,
		Winner:     summary.WinnerID,
		StartTime:  summary.StartedAt.UnixMilli(),
		EndTime:    summary.EndedAt.UnixMilli(),
		DurationMS: summary.Duration.Milliseconds(),
	}
	if err := g.store.AppendResult(ctx, rec); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "append result")
		log.Error("failed to save game result", "error", err)
	}

	var (
		wg       conc.WaitGroup
		mu       sync.Mutex
		failures int
	)
	for _, p := range summary.Participants {
		wg.Go(func() {
			delta := StatsDelta{
				Username:    p.Username,
				GamesPlayed: 1,
				TotalScore:  p.Score,
			}
			if summary.WinnerID != "" && p.UserID == summary.WinnerID {
				delta.Wins = 1
			}
			if err := g.store.IncrementUserStats(ctx, p.UserID, delta); err != nil {
				mu.Lock()
				failures++
				mu.Unlock()
				log.Error("failed to update user stats", "user_id", p.UserID, "error", err)
			}
		})
	}
	if recovered := wg.WaitAndRecover(); recovered != nil {
		failures++
		log.Error("panic while updating user stats", "error", recovered.AsError())
	}

	if failures > 0 {
		span.SetStatus(codes.Error, fmt.Sprintf("%d user stats updates failed", failures))
		return
	}
	log.Info("game result saved", "record_id", rec.ID, "winner", summary.WinnerID)
}

// TouchUser records the user's display name and login time.
func (g *Gateway) TouchUser(ctx context.Context, userID, username string) error {
	ctx, span := g.tracer.Start(ctx, "persistence.TouchUser",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	if err := g.store.TouchUser(ctx, userID, username, g.now()); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "touch user")
		return fmt.Errorf("touch user %s: %w", userID, err)
	}
	return nil
}

// UserStats returns the aggregate for a user and their most recent results.
func (g *Gateway) UserStats(ctx context.Context, userID string, recent int) (models.UserStats, []models.ResultRecord, error) {
	ctx, span := g.tracer.Start(ctx, "persistence.UserStats",
		trace.WithAttributes(attribute.String("user.id", userID)))
	defer span.End()

	stats, err := g.store.UserStats(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "user stats")
		}
		return models.UserStats{}, nil, err
	}
	results, err := g.store.RecentResults(ctx, userID, recent)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "recent results")
		return models.UserStats{}, nil, fmt.Errorf("recent results: %w", err)
	}
	return stats, results, nil
}

// Leaderboard returns the top users by total score.
func (g *Gateway) Leaderboard(ctx context.Context, limit int) ([]models.UserStats, error) {
	ctx, span := g.tracer.Start(ctx, "persistence.Leaderboard",
		trace.WithAttributes(attribute.Int("limit", limit)))
	defer span.End()

	users, err := g.store.Leaderboard(ctx, limit)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "leaderboard")
		return nil, fmt.Errorf("leaderboard: %w", err)
	}
	return users, nil
}
