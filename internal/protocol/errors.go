package protocol

import (
	"errors"

	"github.com/mcoot/chesschain-go/internal/model"
)

// Error codes sent in error messages
const (
	CodeUnauthenticated         = "UNAUTHENTICATED"
	CodeSessionNotFound         = "SESSION_NOT_FOUND"
	CodeNotAParticipant         = "NOT_A_PARTICIPANT"
	CodeOutOfTurn               = "OUT_OF_TURN"
	CodeMalformedMove           = "MALFORMED_MOVE"
	CodeInvalidSignature        = "INVALID_SIGNATURE"
	CodeMatchAlreadyCompleted   = "MATCH_ALREADY_COMPLETED"
	CodeNoActiveOffer           = "NO_ACTIVE_OFFER"
	CodeCannotRespondToOwnOffer = "CANNOT_RESPOND_TO_OWN_OFFER"
	CodeMatchNotFound           = "MATCH_NOT_FOUND"
	CodeMalformedMessage        = "MALFORMED_MESSAGE"
	CodeUnknownMessageType      = "UNKNOWN_MESSAGE_TYPE"
	CodeInvariantViolation      = "INVARIANT_VIOLATION"
	CodeInternalError           = "INTERNAL_ERROR"
)

// ErrorFromErr converts an error to the error message sent to the requester
func ErrorFromErr(err error) Error {
	var te *model.TurnError
	if errors.As(err, &te) {
		count := te.MoveCount
		return Error{
			Code:      CodeOutOfTurn,
			Message:   te.Error(),
			Side:      string(te.Side),
			MoveCount: &count,
		}
	}

	switch {
	case errors.Is(err, model.ErrUnauthenticated):
		return Error{Code: CodeUnauthenticated, Message: "Authenticate before sending this message"}
	case errors.Is(err, model.ErrSessionNotFound):
		return Error{Code: CodeSessionNotFound, Message: "Session not found"}
	case errors.Is(err, model.ErrNotAParticipant):
		return Error{Code: CodeNotAParticipant, Message: "You are not a participant in this session"}
	case errors.Is(err, model.ErrOutOfTurn):
		return Error{Code: CodeOutOfTurn, Message: "It is not your turn"}
	case errors.Is(err, model.ErrMalformedMove):
		return Error{Code: CodeMalformedMove, Message: err.Error()}
	case errors.Is(err, model.ErrInvalidSignature):
		return Error{Code: CodeInvalidSignature, Message: "Move signature could not be verified"}
	case errors.Is(err, model.ErrMatchAlreadyCompleted):
		return Error{Code: CodeMatchAlreadyCompleted, Message: "Match is already completed"}
	case errors.Is(err, model.ErrNoActiveOffer):
		return Error{Code: CodeNoActiveOffer, Message: "There is no draw offer to respond to"}
	case errors.Is(err, model.ErrCannotRespondToOwnOffer):
		return Error{Code: CodeCannotRespondToOwnOffer, Message: "You cannot respond to your own draw offer"}
	case errors.Is(err, model.ErrMatchNotFound):
		return Error{Code: CodeMatchNotFound, Message: "Match not found"}
	case errors.Is(err, model.ErrMalformedMessage):
		return Error{Code: CodeMalformedMessage, Message: err.Error()}
	case errors.Is(err, model.ErrUnknownMessageType):
		return Error{Code: CodeUnknownMessageType, Message: err.Error()}
	case errors.Is(err, model.ErrInvariantViolation):
		return Error{Code: CodeInvariantViolation, Message: "Session was abandoned after an internal error"}
	default:
		return Error{Code: CodeInternalError, Message: "An internal error occurred"}
	}
}
