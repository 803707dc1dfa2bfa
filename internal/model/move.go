package model

import (
	"fmt"
	"time"
)

// Move is a from/to pair in algebraic coordinates with an optional promotion piece
type Move struct {
	From      string
	To        string
	Promotion string // "", "q", "r", "b" or "n"
}

// Validate checks the structural shape of the move. Legality against the
// position is the clients' responsibility.
func (m Move) Validate() error {
	if !isSquare(m.From) {
		return fmt.Errorf("%w: bad origin square %q", ErrMalformedMove, m.From)
	}
	if !isSquare(m.To) {
		return fmt.Errorf("%w: bad destination square %q", ErrMalformedMove, m.To)
	}
	if m.From == m.To {
		return fmt.Errorf("%w: origin equals destination", ErrMalformedMove)
	}
	switch m.Promotion {
	case "", "q", "r", "b", "n":
	default:
		return fmt.Errorf("%w: bad promotion piece %q", ErrMalformedMove, m.Promotion)
	}
	return nil
}

func (m Move) String() string {
	return m.From + m.To + m.Promotion
}

func isSquare(s string) bool {
	return len(s) == 2 && s[0] >= 'a' && s[0] <= 'h' && s[1] >= '1' && s[1] <= '8'
}

// TerminalLabel is the client's claim that a move ended the game
type TerminalLabel string

const (
	TerminalNone                 TerminalLabel = ""
	TerminalCheckmate            TerminalLabel = "checkmate"
	TerminalStalemate            TerminalLabel = "stalemate"
	TerminalInsufficientMaterial TerminalLabel = "insufficient_material"
	TerminalThreefoldRepetition  TerminalLabel = "threefold_repetition"
	TerminalFiftyMove            TerminalLabel = "fifty_move"
)

// Validate rejects labels outside the recognised set
func (l TerminalLabel) Validate() error {
	switch l {
	case TerminalNone, TerminalCheckmate, TerminalStalemate, TerminalInsufficientMaterial,
		TerminalThreefoldRepetition, TerminalFiftyMove:
		return nil
	default:
		return fmt.Errorf("%w: unknown terminal label %q", ErrMalformedMove, l)
	}
}

// ResultFor maps a terminal label to the session result, given the side that moved.
// Checkmate wins for the mover; every other label is a draw.
func (l TerminalLabel) ResultFor(mover Side) (*Result, bool) {
	switch l {
	case TerminalCheckmate:
		return &Result{Winner: mover, Reason: ReasonCheckmate}, true
	case TerminalStalemate:
		return &Result{Reason: ReasonStalemate}, true
	case TerminalInsufficientMaterial:
		return &Result{Reason: ReasonInsufficientMaterial}, true
	case TerminalThreefoldRepetition:
		return &Result{Reason: ReasonThreefoldRepetition}, true
	case TerminalFiftyMove:
		return &Result{Reason: ReasonFiftyMove}, true
	default:
		return nil, false
	}
}

// VerificationOutcome records whether a move's signature was checked
type VerificationOutcome string

const (
	VerificationVerified   VerificationOutcome = "verified"
	VerificationUnverified VerificationOutcome = "unverified"
)

// MoveRecord is an accepted move in a session's log
type MoveRecord struct {
	Sequence       int // 0-based, equals the record's index in the log
	Move           Move
	Side           Side
	Participant    ParticipantID
	TerminalLabel  TerminalLabel
	PositionDigest string // opaque client-supplied position hash
	Signature      []byte
	Verification   VerificationOutcome
	Timestamp      time.Time
}
