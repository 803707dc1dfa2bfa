package signature

import (
	"encoding/json"

	"github.com/mcoot/chesschain-go/internal/model"
)

// CanonicalMovePayload is the byte string a client signs for a move: a JSON
// object with lexicographically sorted keys. The sequence binds the signature
// to one position in one session's log.
func CanonicalMovePayload(sessionID model.SessionID, sequence int, move model.Move) []byte {
	// encoding/json sorts map keys
	payload := map[string]any{
		"from":       move.From,
		"promotion":  move.Promotion,
		"sequence":   sequence,
		"session_id": string(sessionID),
		"to":         move.To,
	}
	data, _ := json.Marshal(payload)
	return data
}
