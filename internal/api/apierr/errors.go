package apierr

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/services/integrity"
	"github.com/mcoot/chesschain-go/internal/services/signature"
)

// APIError represents an API error response
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorResponse wraps an APIError
type ErrorResponse struct {
	Error APIError `json:"error"`
}

// Common error codes
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeInvalidPublicKey = "INVALID_PUBLIC_KEY"
	CodeInvalidEncoding  = "INVALID_ENCODING"
	CodeSessionNotFound  = "SESSION_NOT_FOUND"
	CodeMoveNotFound     = "MOVE_NOT_FOUND"
	CodeVerifierDown     = "VERIFIER_UNAVAILABLE"
	CodeInternalError    = "INTERNAL_ERROR"
)

// httpError combines an HTTP status code with an APIError
type httpError struct {
	status   int
	apiError APIError
}

// Error implements error interface
func (e *httpError) Error() string {
	return e.apiError.Message
}

// WriteError writes an error response to the response writer
func WriteError(w http.ResponseWriter, err error) {
	he := toHTTPError(err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(he.status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{Error: he.apiError})
}

// toHTTPError converts an error to an httpError
func toHTTPError(err error) *httpError {
	var he *httpError
	if errors.As(err, &he) {
		return he
	}

	switch {
	case errors.Is(err, model.ErrSessionNotFound),
		errors.Is(err, model.ErrArchivedSessionNotFound),
		errors.Is(err, model.ErrMatchNotFound):
		return &httpError{http.StatusNotFound, APIError{CodeSessionNotFound, "Session not found"}}
	case errors.Is(err, integrity.ErrProofIndex):
		return &httpError{http.StatusNotFound, APIError{CodeMoveNotFound, "Move not found in session"}}
	case errors.Is(err, signature.ErrInvalidPublicKey):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidPublicKey, "Public key is not a valid Ed25519 key"}}
	case errors.Is(err, signature.ErrInvalidEncoding):
		return &httpError{http.StatusBadRequest, APIError{CodeInvalidEncoding, "Value must be hex or base64"}}
	case errors.Is(err, signature.ErrVerifierUnavailable):
		return &httpError{http.StatusServiceUnavailable, APIError{CodeVerifierDown, "Signature verifier unavailable"}}
	default:
		return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
	}
}

// NewInvalidRequestError creates an invalid request error
func NewInvalidRequestError(message string) error {
	return &httpError{http.StatusBadRequest, APIError{CodeInvalidRequest, message}}
}

// NewInternalError creates an internal server error
func NewInternalError() error {
	return &httpError{http.StatusInternalServerError, APIError{CodeInternalError, "Internal server error"}}
}
