// Package sqlite provides a SQLite-backed record store for completed sessions.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/aaronzipp/snake-arena/internal/models"
	"github.com/aaronzipp/snake-arena/internal/persistence"
	"github.com/aaronzipp/snake-arena/internal/persistence/sqlite/migrations"
)

// Store persists results and user aggregates in SQLite.
type Store struct {
	sqlDB *sql.DB
}

var _ persistence.Store = (*Store)(nil)

func toMillis(value time.Time) int64 {
	if value.IsZero() {
		return 0
	}
	return value.UTC().UnixMilli()
}

func fromMillis(value int64) time.Time {
	if value == 0 {
		return time.Time{}
	}
	return time.UnixMilli(value).UTC()
}

// Open opens a SQLite store and applies embedded migrations.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("storage path is required")
	}
	dsn := filepath.Clean(path) +
		"?_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// one writer at a time; concurrent stat updates queue on the pool
	sqlDB.SetMaxOpenConns(1)

	ctx := context.Background()
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{sqlDB: sqlDB}, nil
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

// AppendResult inserts one immutable result record and its participant index.
func (s *Store) AppendResult(ctx context.Context, rec models.ResultRecord) error {
	if strings.TrimSpace(rec.ID) == "" {
		return fmt.Errorf("result id is required")
	}
	players, err := json.Marshal(rec.Players)
	if err != nil {
		return fmt.Errorf("encode players: %w", err)
	}

	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
INSERT INTO results (id, room_id, winner, start_time, end_time, duration_ms, players_json)
VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.RoomID, rec.Winner, rec.StartTime, rec.EndTime, rec.DurationMS, string(players),
	); err != nil {
		return fmt.Errorf("insert result: %w", err)
	}
	for _, p := range rec.Players {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO result_players (result_id, user_id) VALUES (?, ?)`,
			rec.ID, p.UserID,
		); err != nil {
			return fmt.Errorf("index result player %s: %w", p.UserID, err)
		}
	}
	return tx.Commit()
}

// IncrementUserStats adds delta to the user's aggregate, creating it if needed.
func (s *Store) IncrementUserStats(ctx context.Context, userID string, delta persistence.StatsDelta) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (user_id, username, games_played, total_score, wins)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    games_played = users.games_played + excluded.games_played,
    total_score = users.total_score + excluded.total_score,
    wins = users.wins + excluded.wins,
    username = CASE WHEN users.username = '' THEN excluded.username ELSE users.username END`,
		userID, delta.Username, delta.GamesPlayed, delta.TotalScore, delta.Wins,
	)
	if err != nil {
		return fmt.Errorf("increment user stats: %w", err)
	}
	return nil
}

// TouchUser upserts the username and last login time.
func (s *Store) TouchUser(ctx context.Context, userID, username string, at time.Time) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user id is required")
	}
	_, err := s.sqlDB.ExecContext(ctx, `
INSERT INTO users (user_id, username, last_login) VALUES (?, ?, ?)
ON CONFLICT (user_id) DO UPDATE SET
    username = excluded.username,
    last_login = excluded.last_login`,
		userID, username, toMillis(at),
	)
	if err != nil {
		return fmt.Errorf("touch user: %w", err)
	}
	return nil
}

// UserStats returns one user aggregate.
func (s *Store) UserStats(ctx context.Context, userID string) (models.UserStats, error) {
	row := s.sqlDB.QueryRowContext(ctx, `
SELECT user_id, username, last_login, games_played, total_score, wins
FROM users WHERE user_id = ?`, userID)
	stats, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return models.UserStats{}, persistence.ErrUserNotFound
	}
	if err != nil {
		return models.UserStats{}, fmt.Errorf("get user stats: %w", err)
	}
	return stats, nil
}

// RecentResults returns the user's latest results, newest first.
func (s *Store) RecentResults(ctx context.Context, userID string, limit int) ([]models.ResultRecord, error) {
	if limit <= 0 {
		return []models.ResultRecord{}, nil
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT r.id, r.room_id, r.winner, r.start_time, r.end_time, r.duration_ms, r.players_json
FROM results r
JOIN result_players rp ON rp.result_id = r.id
WHERE rp.user_id = ?
ORDER BY r.end_time DESC, r.id DESC
LIMIT ?`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query results: %w", err)
	}
	defer rows.Close()

	results := make([]models.ResultRecord, 0, limit)
	for rows.Next() {
		var (
			rec     models.ResultRecord
			players string
		)
		if err := rows.Scan(&rec.ID, &rec.RoomID, &rec.Winner, &rec.StartTime, &rec.EndTime, &rec.DurationMS, &players); err != nil {
			return nil, fmt.Errorf("scan result: %w", err)
		}
		if err := json.Unmarshal([]byte(players), &rec.Players); err != nil {
			return nil, fmt.Errorf("decode players for %s: %w", rec.ID, err)
		}
		results = append(results, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate results: %w", err)
	}
	return results, nil
}

// Leaderboard returns users ordered by total score.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.UserStats, error) {
	if limit <= 0 {
		return []models.UserStats{}, nil
	}
	rows, err := s.sqlDB.QueryContext(ctx, `
SELECT user_id, username, last_login, games_played, total_score, wins
FROM users
ORDER BY total_score DESC, user_id ASC
LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	users := make([]models.UserStats, 0, limit)
	for rows.Next() {
		stats, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan leaderboard row: %w", err)
		}
		users = append(users, stats)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate leaderboard: %w", err)
	}
	return users, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (models.UserStats, error) {
	var (
		stats     models.UserStats
		lastLogin int64
	)
	if err := row.Scan(&stats.UserID, &stats.Username, &lastLogin, &stats.GamesPlayed, &stats.TotalScore, &stats.Wins); err != nil {
		return models.UserStats{}, err
	}
	stats.LastLogin = fromMillis(lastLogin)
	return stats, nil
}
