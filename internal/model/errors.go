package model

import (
	"errors"
	"fmt"
)

// Common errors used across the application
var (
	// Connection errors
	ErrUnauthenticated = errors.New("connection has not authenticated")
	ErrNotConnected    = errors.New("participant is not connected")

	// Session errors
	ErrSessionNotFound       = errors.New("session not found")
	ErrNotAParticipant       = errors.New("not a participant in this session")
	ErrMatchAlreadyCompleted = errors.New("match is already completed")
	ErrMatchNotFound         = errors.New("match not found")
	ErrInvariantViolation    = errors.New("session invariant violated")

	// Move errors
	ErrOutOfTurn        = errors.New("not this side's turn")
	ErrMalformedMove    = errors.New("malformed move")
	ErrInvalidSignature = errors.New("invalid move signature")

	// Negotiation errors
	ErrNoActiveOffer           = errors.New("no active draw offer")
	ErrCannotRespondToOwnOffer = errors.New("cannot respond to own draw offer")

	// Protocol errors
	ErrMalformedMessage   = errors.New("malformed message")
	ErrUnknownMessageType = errors.New("unknown message type")

	// Storage errors
	ErrArchivedSessionNotFound = errors.New("archived session not found")
	ErrParticipantNotFound     = errors.New("participant not found")
)

// TurnError carries the context needed to resync a client that moved out of turn
type TurnError struct {
	Side      Side // side that attempted the move
	ToMove    Side
	MoveCount int
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("not %s's turn: %s to move after %d moves", e.Side, e.ToMove, e.MoveCount)
}

func (e *TurnError) Unwrap() error {
	return ErrOutOfTurn
}
