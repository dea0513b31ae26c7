package game

import "time"

const (
	// MaxParticipants is the roster capacity of a session
	MaxParticipants = 4

	// MinParticipants is the minimum roster size required to start
	MinParticipants = 2

	// DefaultGracePeriod is how long a finished session stays retrievable
	DefaultGracePeriod = 30 * time.Second

	// RoomIDPrefix starts every generated session id
	RoomIDPrefix = "room_"

	// RoomSuffixLength is the length of the random part of a session id
	RoomSuffixLength = 9

	// RoomSuffixChars are the characters used for the random suffix
	RoomSuffixChars = "0123456789abcdefghijklmnopqrstuvwxyz"
)
