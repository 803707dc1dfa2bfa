package storage

import (
	"context"

	"github.com/mcoot/chesschain-go/internal/model"
)

// Storage is the persistence collaborator. It is only called at session
// start, completion and reconnection boundaries, never while a session lock is held.
type Storage interface {
	// Participant operations
	EnsureParticipantsExist(ctx context.Context, ids []model.ParticipantID) error
	// FetchParticipantMetadata omits identities it has no record for
	FetchParticipantMetadata(ctx context.Context, ids []model.ParticipantID) (map[model.ParticipantID]model.ParticipantMetadata, error)
	SaveParticipantMetadata(ctx context.Context, id model.ParticipantID, meta model.ParticipantMetadata) error

	// Archive operations
	SaveMoves(ctx context.Context, sessionID model.SessionID, moves []model.MoveRecord) error
	SaveCompletedSession(ctx context.Context, archived *model.ArchivedSession) error
	// FetchArchivedSession returns model.ErrArchivedSessionNotFound if nothing was archived under id
	FetchArchivedSession(ctx context.Context, id model.SessionID) (*model.ArchivedSession, error)

	Close() error
}
