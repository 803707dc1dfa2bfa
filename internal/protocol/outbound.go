package protocol

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mcoot/chesschain-go/internal/model"
)

// Outbound is a message the coordinator sends to a client
type Outbound interface {
	Message
	outbound()
}

// Opponent describes the other participant of a session
type Opponent struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
	Wins        int    `json:"wins"`
	Losses      int    `json:"losses"`
	Draws       int    `json:"draws"`
}

// Result is the wire form of a session result; Winner is null for a draw
type Result struct {
	Winner *string `json:"winner"`
	Reason string  `json:"reason"`
}

// MoveEntry is one record of a move log
type MoveEntry struct {
	Sequence       int       `json:"sequence"`
	Side           string    `json:"side"`
	Move           Move      `json:"move"`
	TerminalLabel  string    `json:"terminal_label,omitempty"`
	PositionDigest string    `json:"position_digest,omitempty"`
	Signature      string    `json:"signature,omitempty"` // hex
	Verification   string    `json:"verification"`
	Timestamp      time.Time `json:"timestamp"`
}

// QueueJoined acknowledges joinQueue
type QueueJoined struct{}

// MatchFound tells a participant which session and side they were placed in
type MatchFound struct {
	SessionID string   `json:"session_id"`
	Side      string   `json:"side"`
	Opponent  Opponent `json:"opponent"`
	FirstMove string   `json:"first_move"`
}

// OpponentMove relays an accepted move to the other side
type OpponentMove struct {
	SessionID     string `json:"session_id"`
	Sequence      int    `json:"sequence"`
	Move          Move   `json:"move"`
	TerminalLabel string `json:"terminal_label,omitempty"`
}

// MoveAccepted acknowledges the mover's submission
type MoveAccepted struct {
	SessionID    string `json:"session_id"`
	Sequence     int    `json:"sequence"`
	Verification string `json:"verification"`
}

// GameOver announces a completed session
type GameOver struct {
	SessionID string `json:"session_id"`
	Result    Result `json:"result"`
}

// ResignConfirmed acknowledges the resigning side
type ResignConfirmed struct {
	SessionID string `json:"session_id"`
	Result    Result `json:"result"`
}

// DrawOffered tells the recipient the opponent proposes a draw
type DrawOffered struct {
	SessionID string `json:"session_id"`
}

// DrawOfferSent acknowledges the offering side
type DrawOfferSent struct {
	SessionID string `json:"session_id"`
}

// DrawDeclined tells the offerer their offer was declined
type DrawDeclined struct {
	SessionID string `json:"session_id"`
}

// GameState is a participant's full view of a session
type GameState struct {
	SessionID         string      `json:"session_id"`
	Side              string      `json:"side"`
	Opponent          Opponent    `json:"opponent"`
	Status            string      `json:"status"`
	Result            *Result     `json:"result"`
	MoveLog           []MoveEntry `json:"move_log"`
	Turn              string      `json:"turn"`
	DrawOfferVisible  bool        `json:"draw_offer_visible"`
	OpponentConnected bool        `json:"opponent_connected"`
	Archived          bool        `json:"archived"`
}

// Error reports a request-scoped failure to the sender only
type Error struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Side      string `json:"side,omitempty"`
	MoveCount *int   `json:"move_count,omitempty"`
}

// Pong answers ping
type Pong struct{}

// OpponentConnection reports the opponent dropping or returning
type OpponentConnection struct {
	SessionID string `json:"session_id"`
	Connected bool   `json:"connected"`
}

func (QueueJoined) MessageType() MessageType        { return TypeQueueJoined }
func (MatchFound) MessageType() MessageType         { return TypeMatchFound }
func (OpponentMove) MessageType() MessageType       { return TypeOpponentMove }
func (MoveAccepted) MessageType() MessageType       { return TypeMoveAccepted }
func (GameOver) MessageType() MessageType           { return TypeGameOver }
func (ResignConfirmed) MessageType() MessageType    { return TypeResignConfirmed }
func (DrawOffered) MessageType() MessageType        { return TypeDrawOffer }
func (DrawOfferSent) MessageType() MessageType      { return TypeDrawOfferSent }
func (DrawDeclined) MessageType() MessageType       { return TypeDrawDeclined }
func (GameState) MessageType() MessageType          { return TypeGameState }
func (Error) MessageType() MessageType              { return TypeError }
func (Pong) MessageType() MessageType               { return TypePong }
func (OpponentConnection) MessageType() MessageType { return TypeOpponentConnection }

func (QueueJoined) outbound()        {}
func (MatchFound) outbound()         {}
func (OpponentMove) outbound()       {}
func (MoveAccepted) outbound()       {}
func (GameOver) outbound()           {}
func (ResignConfirmed) outbound()    {}
func (DrawOffered) outbound()        {}
func (DrawOfferSent) outbound()      {}
func (DrawDeclined) outbound()       {}
func (GameState) outbound()          {}
func (Error) outbound()              {}
func (Pong) outbound()               {}
func (OpponentConnection) outbound() {}

// Encode wraps an outbound message in its envelope
func Encode(msg Outbound) ([]byte, error) {
	return encode(msg)
}

// DecodeOutbound parses a frame received from the coordinator into its typed
// message. It is the client-side counterpart of Decode.
func DecodeOutbound(data []byte) (Outbound, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrMalformedMessage, err)
	}

	var msg Outbound
	switch env.Type {
	case TypeQueueJoined:
		msg = &QueueJoined{}
	case TypeMatchFound:
		msg = &MatchFound{}
	case TypeOpponentMove:
		msg = &OpponentMove{}
	case TypeMoveAccepted:
		msg = &MoveAccepted{}
	case TypeGameOver:
		msg = &GameOver{}
	case TypeResignConfirmed:
		msg = &ResignConfirmed{}
	case TypeDrawOffer:
		msg = &DrawOffered{}
	case TypeDrawOfferSent:
		msg = &DrawOfferSent{}
	case TypeDrawDeclined:
		msg = &DrawDeclined{}
	case TypeGameState:
		msg = &GameState{}
	case TypeError:
		msg = &Error{}
	case TypePong:
		msg = &Pong{}
	case TypeOpponentConnection:
		msg = &OpponentConnection{}
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

// OpponentFromModel converts an identity and its metadata
func OpponentFromModel(id model.ParticipantID, m model.ParticipantMetadata) Opponent {
	return Opponent{
		ID:          string(id),
		DisplayName: m.DisplayName,
		Rating:      m.Rating,
		Wins:        m.Wins,
		Losses:      m.Losses,
		Draws:       m.Draws,
	}
}

// ResultFromModel converts a domain result
func ResultFromModel(r *model.Result) Result {
	var winner *string
	if !r.IsDraw() {
		w := string(r.Winner)
		winner = &w
	}
	return Result{Winner: winner, Reason: string(r.Reason)}
}

// MoveEntryFromModel converts a move record
func MoveEntryFromModel(r model.MoveRecord) MoveEntry {
	return MoveEntry{
		Sequence:       r.Sequence,
		Side:           string(r.Side),
		Move:           MoveFromModel(r.Move),
		TerminalLabel:  string(r.TerminalLabel),
		PositionDigest: r.PositionDigest,
		Signature:      fmt.Sprintf("%x", r.Signature),
		Verification:   string(r.Verification),
		Timestamp:      r.Timestamp.UTC(),
	}
}

// MatchFoundFor builds the matchFound notice for one side of a session
func MatchFoundFor(s *model.Session, side model.Side) MatchFound {
	opp := s.Slot(side.Opponent())
	return MatchFound{
		SessionID: string(s.ID),
		Side:      string(side),
		Opponent:  OpponentFromModel(opp.Participant, opp.Metadata),
		FirstMove: string(model.SideWhite),
	}
}

// GameStateFromSnapshot converts a state snapshot
func GameStateFromSnapshot(s *model.StateSnapshot) GameState {
	log := make([]MoveEntry, len(s.Moves))
	for i, m := range s.Moves {
		log[i] = MoveEntryFromModel(m)
	}
	gs := GameState{
		SessionID:         string(s.SessionID),
		Side:              string(s.Side),
		Opponent:          OpponentFromModel(s.Opponent, s.OpponentMetadata),
		Status:            string(s.Status),
		MoveLog:           log,
		Turn:              string(s.Turn),
		DrawOfferVisible:  s.DrawOfferVisible,
		OpponentConnected: s.OpponentConnected,
		Archived:          s.Archived,
	}
	if s.Result != nil {
		r := ResultFromModel(s.Result)
		gs.Result = &r
	}
	return gs
}
