package redis

import (
	"fmt"

	"github.com/mcoot/chesschain-go/internal/model"
)

// Key prefix for all coordinator data
const keyPrefix = "chesschain"

// participantKey returns the Redis key for a participant's metadata
func participantKey(id model.ParticipantID) string {
	return fmt.Sprintf("%s:participant:%s", keyPrefix, id)
}

// sessionKey returns the Redis key for an archived session
func sessionKey(id model.SessionID) string {
	return fmt.Sprintf("%s:session:%s", keyPrefix, id)
}

// movesKey returns the Redis key for the LIST of a session's move records
func movesKey(id model.SessionID) string {
	return fmt.Sprintf("%s:moves:%s", keyPrefix, id)
}
