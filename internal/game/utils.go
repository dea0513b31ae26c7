package game

import (
	crand "crypto/rand"
	"math/big"
	"math/rand"
	"strconv"
	"time"
)

// GenerateRoomID creates a session id from the current time and a random suffix
func GenerateRoomID(now time.Time) string {
	suffix := make([]byte, RoomSuffixLength)
	for i := range RoomSuffixLength {
		n, err := crand.Int(crand.Reader, big.NewInt(int64(len(RoomSuffixChars))))
		if err != nil {
			// fallback to math/rand if crypto fails
			suffix[i] = RoomSuffixChars[rand.Intn(len(RoomSuffixChars))]
			continue
		}
		suffix[i] = RoomSuffixChars[n.Int64()]
	}
	return RoomIDPrefix + strconv.FormatInt(now.UnixMilli(), 10) + "_" + string(suffix)
}
