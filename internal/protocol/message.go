package protocol

import (
	"encoding/json"
	"fmt"
)

// MessageType discriminates the envelope payload
type MessageType string

// Inbound message types
const (
	TypeAuthenticate MessageType = "authenticate"
	TypeJoinQueue    MessageType = "joinQueue"
	TypeMove         MessageType = "move"
	TypeResign       MessageType = "resign"
	TypeDrawOffer    MessageType = "drawOffer" // also sent outbound to the offer's recipient
	TypeDrawResponse MessageType = "drawResponse"
	TypeGetGameState MessageType = "getGameState"
	TypePing         MessageType = "ping"
)

// Outbound message types
const (
	TypeQueueJoined        MessageType = "queueJoined"
	TypeMatchFound         MessageType = "matchFound"
	TypeOpponentMove       MessageType = "opponentMove"
	TypeMoveAccepted       MessageType = "moveAccepted"
	TypeGameOver           MessageType = "gameOver"
	TypeResignConfirmed    MessageType = "resignConfirmed"
	TypeDrawOfferSent      MessageType = "drawOfferSent"
	TypeDrawDeclined       MessageType = "drawDeclined"
	TypeGameState          MessageType = "gameState"
	TypeError              MessageType = "error"
	TypePong               MessageType = "pong"
	TypeOpponentConnection MessageType = "opponentConnection"
)

// Envelope is the frame every message travels in
type Envelope struct {
	Type    MessageType     `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Message is implemented by every typed payload
type Message interface {
	MessageType() MessageType
}

// Move is the wire form of a move
type Move struct {
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

func encode(msg Message) ([]byte, error) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", msg.MessageType(), err)
	}
	return json.Marshal(Envelope{Type: msg.MessageType(), Payload: payload})
}
