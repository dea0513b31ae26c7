package models

// Color is an RGB triple as sent by clients
type Color [3]int

var (
	// DefaultHostColor is used when create_room omits a color
	DefaultHostColor = Color{0, 255, 0}
	// DefaultJoinColor is used when join_room omits a color
	DefaultJoinColor = Color{0, 0, 255}
)

// Participant represents a player enrolled in a session roster
type Participant struct {
	ID    string `json:"id"`
	Name  string `json:"username"`
	Color Color  `json:"color"`
	Score int64  `json:"score"`
	Alive bool   `json:"alive"`
}

// Identity is the authenticated user bound to a connection
type Identity struct {
	UserID string
	Name   string
}
