package protocol

import (
	"encoding/json"
	"fmt"

	"github.com/mcoot/chesschain-go/internal/model"
)

// Inbound is a message a client may send. The set is closed to this package.
type Inbound interface {
	Message
	inbound()
}

// Authenticate binds the connection to an identity and optionally declares its public key
type Authenticate struct {
	Identity  string `json:"identity"`
	PublicKey string `json:"public_key,omitempty"`
}

// JoinQueue asks to be paired with the next waiting participant
type JoinQueue struct{}

// SubmitMove submits the next move of a session
type SubmitMove struct {
	SessionID      string `json:"session_id"`
	Move           Move   `json:"move"`
	TerminalLabel  string `json:"terminal_label,omitempty"`
	PositionDigest string `json:"position_digest,omitempty"`
	Signature      string `json:"signature,omitempty"` // hex or base64
}

// Resign concedes the session
type Resign struct {
	SessionID string `json:"session_id"`
}

// OfferDraw proposes a draw to the opponent
type OfferDraw struct {
	SessionID string `json:"session_id"`
}

// DrawResponse accepts or declines the opponent's pending draw offer
type DrawResponse struct {
	SessionID string `json:"session_id"`
	Accepted  bool   `json:"accepted"`
}

// GetGameState requests a full snapshot of a session
type GetGameState struct {
	SessionID string `json:"session_id"`
}

// Ping is a liveness probe
type Ping struct{}

func (Authenticate) MessageType() MessageType { return TypeAuthenticate }
func (JoinQueue) MessageType() MessageType    { return TypeJoinQueue }
func (SubmitMove) MessageType() MessageType   { return TypeMove }
func (Resign) MessageType() MessageType       { return TypeResign }
func (OfferDraw) MessageType() MessageType    { return TypeDrawOffer }
func (DrawResponse) MessageType() MessageType { return TypeDrawResponse }
func (GetGameState) MessageType() MessageType { return TypeGetGameState }
func (Ping) MessageType() MessageType         { return TypePing }

func (Authenticate) inbound() {}
func (JoinQueue) inbound()    {}
func (SubmitMove) inbound()   {}
func (Resign) inbound()       {}
func (OfferDraw) inbound()    {}
func (DrawResponse) inbound() {}
func (GetGameState) inbound() {}
func (Ping) inbound()         {}

// Decode parses a raw frame into its typed inbound message
func Decode(data []byte) (Inbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedMessage, err)
	}

	var msg Inbound
	switch env.Type {
	case TypeAuthenticate:
		msg = &Authenticate{}
	case TypeJoinQueue:
		msg = &JoinQueue{}
	case TypeMove:
		msg = &SubmitMove{}
	case TypeResign:
		msg = &Resign{}
	case TypeDrawOffer:
		msg = &OfferDraw{}
	case TypeDrawResponse:
		msg = &DrawResponse{}
	case TypeGetGameState:
		msg = &GetGameState{}
	case TypePing:
		msg = &Ping{}
	case "":
		return nil, fmt.Errorf("%w: missing type", model.ErrMalformedMessage)
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownMessageType, env.Type)
	}

	if len(env.Payload) > 0 && string(env.Payload) != "null" {
		if err := json.Unmarshal(env.Payload, msg); err != nil {
			return nil, fmt.Errorf("%w: %s payload: %v", model.ErrMalformedMessage, env.Type, err)
		}
	}
	return msg, nil
}

// EncodeRequest wraps an inbound message in its envelope for sending to the coordinator
func EncodeRequest(msg Inbound) ([]byte, error) {
	return encode(msg)
}

// ModelMove converts the wire move to the domain move
func (m Move) ModelMove() model.Move {
	return model.Move{From: m.From, To: m.To, Promotion: m.Promotion}
}

// MoveFromModel converts a domain move to its wire form
func MoveFromModel(m model.Move) Move {
	return Move{From: m.From, To: m.To, Promotion: m.Promotion}
}
