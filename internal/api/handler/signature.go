package handler

import (
	"encoding/base64"
	"encoding/json"
	"net/http"

	"github.com/mcoot/chesschain-go/internal/api/request"
	"github.com/mcoot/chesschain-go/internal/api/response"
	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/services/signature"
)

// SignatureHandler exposes the signature verification capability
type SignatureHandler struct {
	verifier signature.Verifier
}

// NewSignatureHandler creates a new signature handler
func NewSignatureHandler(verifier signature.Verifier) *SignatureHandler {
	return &SignatureHandler{verifier: verifier}
}

// Verify handles POST /api/v1/signatures/verify
func (h *SignatureHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req request.VerifySignatureRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}
	if req.Signature == "" || req.PublicKey == "" {
		WriteError(w, NewInvalidRequestError("signature and public_key are required"))
		return
	}

	var payload []byte
	switch {
	case req.Move != nil:
		mv := req.Move
		payload = signature.CanonicalMovePayload(model.SessionID(mv.SessionID), mv.Sequence,
			model.Move{From: mv.From, To: mv.To, Promotion: mv.Promotion})
	case req.Payload != "":
		decoded, err := base64.StdEncoding.DecodeString(req.Payload)
		if err != nil {
			WriteError(w, NewInvalidRequestError("payload must be base64"))
			return
		}
		payload = decoded
	default:
		WriteError(w, NewInvalidRequestError("payload or move is required"))
		return
	}

	sig, err := signature.DecodeBytes(req.Signature)
	if err != nil {
		WriteError(w, err)
		return
	}

	valid, err := h.verifier.Verify(r.Context(), req.PublicKey, payload, sig)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SignatureVerification{Valid: valid})
}
