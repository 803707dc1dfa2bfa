package model

import (
	"fmt"
	"time"
)

// SessionID uniquely identifies a session
type SessionID string

// Side is one of the two seats in a session
type Side string

const (
	SideWhite Side = "white" // moves first
	SideBlack Side = "black"
)

// Opponent returns the other side
func (s Side) Opponent() Side {
	if s == SideWhite {
		return SideBlack
	}
	return SideWhite
}

// SessionStatus is the lifecycle phase of a session
type SessionStatus string

const (
	SessionStatusPending   SessionStatus = "pending"
	SessionStatusActive    SessionStatus = "active"
	SessionStatusCompleted SessionStatus = "completed"
	SessionStatusAbandoned SessionStatus = "abandoned" // invariant violation detected
)

// IsTerminal reports whether no further moves or negotiation are possible
func (s SessionStatus) IsTerminal() bool {
	return s == SessionStatusCompleted || s == SessionStatusAbandoned
}

// ResultReason describes how a session ended
type ResultReason string

const (
	ReasonCheckmate            ResultReason = "checkmate"
	ReasonStalemate            ResultReason = "stalemate"
	ReasonInsufficientMaterial ResultReason = "insufficient_material"
	ReasonThreefoldRepetition  ResultReason = "threefold_repetition"
	ReasonFiftyMove            ResultReason = "fifty_move"
	ReasonResignation          ResultReason = "resignation"
	ReasonDrawAgreement        ResultReason = "draw_agreement"
)

// Result is the outcome of a completed session
type Result struct {
	Winner Side // Empty if draw
	Reason ResultReason
}

// IsDraw returns true if neither side won
func (r *Result) IsDraw() bool {
	return r.Winner == ""
}

// SessionSlot is one side's seat in a session
type SessionSlot struct {
	Participant     ParticipantID
	Metadata        ParticipantMetadata
	MetadataFetched bool   // false means Metadata is a placeholder
	PublicKey       string // declared at authentication, may be empty
	Connected       bool
	DisconnectedAt  *time.Time
}

// Session is a single two-party match
type Session struct {
	ID     SessionID
	Status SessionStatus
	White  SessionSlot
	Black  SessionSlot

	Moves       []MoveRecord
	Result      *Result // nil until completed
	DrawOfferBy Side    // Empty if no pending offer

	CreatedAt   time.Time
	UpdatedAt   time.Time
	CompletedAt *time.Time
}

// SideOf returns the side the participant occupies
func (s *Session) SideOf(id ParticipantID) (Side, bool) {
	switch id {
	case s.White.Participant:
		return SideWhite, true
	case s.Black.Participant:
		return SideBlack, true
	default:
		return "", false
	}
}

// Slot returns the seat for a side
func (s *Session) Slot(side Side) *SessionSlot {
	if side == SideWhite {
		return &s.White
	}
	return &s.Black
}

// Participant returns the identity seated on a side
func (s *Session) Participant(side Side) ParticipantID {
	return s.Slot(side).Participant
}

// SideToMove is derived from the move count: white on even, black on odd
func (s *Session) SideToMove() Side {
	if len(s.Moves)%2 == 0 {
		return SideWhite
	}
	return SideBlack
}

// IsActive returns true while moves and negotiation are accepted
func (s *Session) IsActive() bool {
	return s.Status == SessionStatusActive
}

// Complete records the result and clears any pending draw offer
func (s *Session) Complete(result *Result, at time.Time) {
	s.Status = SessionStatusCompleted
	s.Result = result
	s.DrawOfferBy = ""
	s.CompletedAt = &at
	s.UpdatedAt = at
}

// CheckInvariants verifies the structural guarantees every session must hold
func (s *Session) CheckInvariants() error {
	if s.White.Participant == "" || s.Black.Participant == "" {
		return fmt.Errorf("%w: session %s has an empty seat", ErrInvariantViolation, s.ID)
	}
	if s.White.Participant == s.Black.Participant {
		return fmt.Errorf("%w: session %s seats %s on both sides", ErrInvariantViolation, s.ID, s.White.Participant)
	}
	for i, m := range s.Moves {
		if m.Sequence != i {
			return fmt.Errorf("%w: session %s move %d has sequence %d", ErrInvariantViolation, s.ID, i, m.Sequence)
		}
	}
	return nil
}

// Clone returns a deep copy safe to hand out of the store
func (s *Session) Clone() *Session {
	c := *s
	c.White = s.White.clone()
	c.Black = s.Black.clone()
	if s.Moves != nil {
		c.Moves = make([]MoveRecord, len(s.Moves))
		for i, m := range s.Moves {
			c.Moves[i] = m
			if m.Signature != nil {
				c.Moves[i].Signature = append([]byte(nil), m.Signature...)
			}
		}
	}
	if s.Result != nil {
		r := *s.Result
		c.Result = &r
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		c.CompletedAt = &t
	}
	return &c
}

func (slot SessionSlot) clone() SessionSlot {
	if slot.DisconnectedAt != nil {
		t := *slot.DisconnectedAt
		slot.DisconnectedAt = &t
	}
	return slot
}

// ArchivedSession is a completed session as written to durable storage
type ArchivedSession struct {
	Session    Session
	Digest     string // hex Merkle root, empty when the log has no moves
	ArchivedAt time.Time
}

// StateSnapshot is a participant's view of a session, used for reconnection
type StateSnapshot struct {
	SessionID         SessionID
	Side              Side
	Opponent          ParticipantID
	OpponentMetadata  ParticipantMetadata
	Status            SessionStatus
	Result            *Result
	Moves             []MoveRecord
	Turn              Side
	DrawOfferVisible  bool // opponent has an offer pending for this participant
	OpponentConnected bool
	Archived          bool
}
