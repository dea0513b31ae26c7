package models

import "time"

// ParticipantResult is one roster entry frozen at session completion
type ParticipantResult struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Score    int64  `json:"score"`
	Alive    bool   `json:"alive"`
}

// SessionSummary is the terminal snapshot handed to persistence
type SessionSummary struct {
	SessionID    string
	Participants []ParticipantResult
	WinnerID     string // empty on a draw
	StartedAt    time.Time
	EndedAt      time.Time
	Duration     time.Duration
}

// ResultRecord is a persisted, immutable completed-session record
type ResultRecord struct {
	ID         string              `json:"id"`
	RoomID     string              `json:"roomId"`
	Players    []ParticipantResult `json:"players"`
	Winner     string              `json:"winner,omitempty"`
	StartTime  int64               `json:"startTime"`
	EndTime    int64               `json:"endTime"`
	DurationMS int64               `json:"duration"`
}

// UserStats is the per-user aggregate maintained across sessions
type UserStats struct {
	UserID      string    `json:"id"`
	Username    string    `json:"username"`
	LastLogin   time.Time `json:"lastLogin,omitzero"`
	GamesPlayed int64     `json:"gamesPlayed"`
	TotalScore  int64     `json:"totalScore"`
	Wins        int64     `json:"wins"`
}

// ListedSession is one row of the active session listing
type ListedSession struct {
	ID          string         `json:"id"`
	PlayerCount int            `json:"playerCount"`
	State       LifecycleState `json:"state"`
}
