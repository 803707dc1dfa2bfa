package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/mcoot/chesschain-go/internal/api/request"
	"github.com/mcoot/chesschain-go/internal/api/response"
	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/services/integrity"
	"github.com/mcoot/chesschain-go/internal/services/session"
)

// Archive looks up sessions that have been written to storage
type Archive interface {
	FetchArchivedSession(ctx context.Context, id model.SessionID) (*model.ArchivedSession, error)
}

// SessionHandler serves live and archived sessions and their digests
type SessionHandler struct {
	store   *session.Store
	archive Archive
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(store *session.Store, archive Archive) *SessionHandler {
	return &SessionHandler{
		store:   store,
		archive: archive,
	}
}

// loaded is a session together with where it came from
type loaded struct {
	session  *model.Session
	digest   string
	archived bool
}

// load prefers the live session and falls back to the archive
func (h *SessionHandler) load(ctx context.Context, id model.SessionID) (*loaded, error) {
	live, err := h.store.Get(id)
	if err == nil {
		return &loaded{session: live, digest: integrity.DigestHex(live.Moves)}, nil
	}
	if !errors.Is(err, model.ErrSessionNotFound) {
		return nil, err
	}

	rec, err := h.archive.FetchArchivedSession(ctx, id)
	if err != nil {
		return nil, err
	}
	return &loaded{session: &rec.Session, digest: rec.Digest, archived: true}, nil
}

// Get handles GET /api/v1/sessions/{id}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])

	l, err := h.load(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, response.SessionFromModel(l.session, l.digest, l.archived))
}

// Verify handles POST /api/v1/sessions/{id}/verify
func (h *SessionHandler) Verify(w http.ResponseWriter, r *http.Request) {
	id := model.SessionID(mux.Vars(r)["id"])

	var req request.VerifyDigestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		WriteError(w, NewInvalidRequestError("Invalid request body"))
		return
	}

	l, err := h.load(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	root := req.Root
	if root == "" {
		if !l.archived {
			WriteError(w, NewInvalidRequestError("root is required for a live session"))
			return
		}
		root = l.digest
	}

	outcome, computed := integrity.CompareToStored(l.session.Moves, root)
	response.JSON(w, http.StatusOK, response.DigestVerification{
		SessionID:    string(id),
		Outcome:      string(outcome),
		ComputedRoot: computed,
	})
}

// Proof handles GET /api/v1/sessions/{id}/moves/{sequence}/proof
func (h *SessionHandler) Proof(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	id := model.SessionID(vars["id"])
	sequence, err := strconv.Atoi(vars["sequence"])
	if err != nil {
		WriteError(w, NewInvalidRequestError("sequence must be an integer"))
		return
	}

	l, err := h.load(r.Context(), id)
	if err != nil {
		WriteError(w, err)
		return
	}

	siblings, err := integrity.Proof(l.session.Moves, sequence)
	if err != nil {
		WriteError(w, err)
		return
	}
	root, _ := integrity.Digest(l.session.Moves)

	proof := make([]string, len(siblings))
	for i, s := range siblings {
		proof[i] = s.Hex()
	}
	response.JSON(w, http.StatusOK, response.InclusionProof{
		SessionID: string(id),
		Sequence:  sequence,
		Leaf:      integrity.LeafHash(l.session.Moves[sequence]).Hex(),
		Proof:     proof,
		Root:      root.Hex(),
	})
}
