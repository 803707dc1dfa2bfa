package response

import (
	"encoding/hex"
	"time"

	"github.com/mcoot/chesschain-go/internal/model"
)

// Participant represents one seat of a session in API responses
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
	Connected   bool   `json:"connected"`
}

// ParticipantFromSlot converts a model.SessionSlot
func ParticipantFromSlot(s model.SessionSlot) Participant {
	return Participant{
		ID:          string(s.Participant),
		DisplayName: s.Metadata.DisplayName,
		Rating:      s.Metadata.Rating,
		Connected:   s.Connected,
	}
}

// Move represents a move record
type Move struct {
	Sequence       int       `json:"sequence"`
	Side           string    `json:"side"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Promotion      string    `json:"promotion,omitempty"`
	TerminalLabel  string    `json:"terminal_label,omitempty"`
	PositionDigest string    `json:"position_digest,omitempty"`
	Signature      string    `json:"signature,omitempty"`
	Verification   string    `json:"verification"`
	Timestamp      time.Time `json:"timestamp"`
}

// MoveFromModel converts model.MoveRecord
func MoveFromModel(m model.MoveRecord) Move {
	var sig string
	if len(m.Signature) > 0 {
		sig = hex.EncodeToString(m.Signature)
	}
	return Move{
		Sequence:       m.Sequence,
		Side:           string(m.Side),
		From:           m.Move.From,
		To:             m.Move.To,
		Promotion:      m.Move.Promotion,
		TerminalLabel:  string(m.TerminalLabel),
		PositionDigest: m.PositionDigest,
		Signature:      sig,
		Verification:   string(m.Verification),
		Timestamp:      m.Timestamp.UTC(),
	}
}

// Result represents a session result; Winner is null for a draw
type Result struct {
	Winner *string `json:"winner"`
	Reason string  `json:"reason"`
}

// ResultFromModel converts model.Result
func ResultFromModel(r *model.Result) *Result {
	if r == nil {
		return nil
	}
	var winner *string
	if !r.IsDraw() {
		w := string(r.Winner)
		winner = &w
	}
	return &Result{Winner: winner, Reason: string(r.Reason)}
}

// Session represents a live or archived session
type Session struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	White       Participant `json:"white"`
	Black       Participant `json:"black"`
	Turn        string      `json:"turn,omitempty"`
	Result      *Result     `json:"result"`
	Moves       []Move      `json:"moves"`
	Digest      string      `json:"digest,omitempty"`
	Archived    bool        `json:"archived"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// SessionFromModel converts a session and its digest
func SessionFromModel(s *model.Session, digest string, archived bool) Session {
	moves := make([]Move, len(s.Moves))
	for i, m := range s.Moves {
		moves[i] = MoveFromModel(m)
	}
	var turn string
	if s.IsActive() {
		turn = string(s.SideToMove())
	}
	return Session{
		ID:          string(s.ID),
		Status:      string(s.Status),
		White:       ParticipantFromSlot(s.White),
		Black:       ParticipantFromSlot(s.Black),
		Turn:        turn,
		Result:      ResultFromModel(s.Result),
		Moves:       moves,
		Digest:      digest,
		Archived:    archived,
		CreatedAt:   s.CreatedAt.UTC(),
		CompletedAt: s.CompletedAt,
	}
}

// DigestVerification is the outcome of comparing a recomputed digest
type DigestVerification struct {
	SessionID    string `json:"session_id"`
	Outcome      string `json:"outcome"`
	ComputedRoot string `json:"computed_root,omitempty"`
}

// InclusionProof proves one move is part of a session's digest
type InclusionProof struct {
	SessionID string   `json:"session_id"`
	Sequence  int      `json:"sequence"`
	Leaf      string   `json:"leaf"`
	Proof     []string `json:"proof"`
	Root      string   `json:"root"`
}

// SignatureVerification is the result of a signature check
type SignatureVerification struct {
	Valid bool `json:"valid"`
}

// Health reports coordinator liveness and load
type Health struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Queued      int    `json:"queued"`
	Sessions    int    `json:"sessions"`
}
