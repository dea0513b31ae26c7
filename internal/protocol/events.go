package protocol

// Kind names an inbound message type
type Kind string

// Inbound message kinds
const (
	KindAuthenticate Kind = "authenticate"
	KindCreateRoom   Kind = "create_room"
	KindJoinRoom     Kind = "join_room"
	KindStartGame    Kind = "start_game"
	KindGameUpdate   Kind = "game_update"
	KindPlayerDied   Kind = "player_died"
	KindLeaveRoom    Kind = "leave_room"
)

// Outbound event names
const (
	EventAuthenticated = "authenticated"
	EventAuthError     = "auth_error"
	EventError         = "error"
	EventRoomCreated   = "room_created"
	EventPlayerJoined  = "player_joined"
	EventGameStarted   = "game_started"
	EventGameState     = "game_state"
	EventPlayerDied    = "player_died"
	EventGameOver      = "game_over"
	EventPlayerLeft    = "player_left"
)
