package memory

import (
	"context"
	"sync"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/storage"
)

// Storage is an in-memory implementation of the storage interface
type Storage struct {
	mu sync.RWMutex

	participants map[model.ParticipantID]model.ParticipantMetadata
	moves        map[model.SessionID][]model.MoveRecord
	sessions     map[model.SessionID]*model.ArchivedSession
}

// New creates a new in-memory storage instance
func New() *Storage {
	return &Storage{
		participants: make(map[model.ParticipantID]model.ParticipantMetadata),
		moves:        make(map[model.SessionID][]model.MoveRecord),
		sessions:     make(map[model.SessionID]*model.ArchivedSession),
	}
}

// Ensure Storage implements the interface
var _ storage.Storage = (*Storage)(nil)

// Participant operations

func (s *Storage) EnsureParticipantsExist(ctx context.Context, ids []model.ParticipantID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range ids {
		if _, ok := s.participants[id]; !ok {
			s.participants[id] = model.PlaceholderMetadata(id)
		}
	}
	return nil
}

func (s *Storage) FetchParticipantMetadata(ctx context.Context, ids []model.ParticipantID) (map[model.ParticipantID]model.ParticipantMetadata, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make(map[model.ParticipantID]model.ParticipantMetadata, len(ids))
	for _, id := range ids {
		if meta, ok := s.participants[id]; ok {
			result[id] = meta
		}
	}
	return result, nil
}

func (s *Storage) SaveParticipantMetadata(ctx context.Context, id model.ParticipantID, meta model.ParticipantMetadata) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.participants[id] = meta
	return nil
}

// Archive operations

func (s *Storage) SaveMoves(ctx context.Context, sessionID model.SessionID, moves []model.MoveRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.moves[sessionID] = cloneMoves(moves)
	return nil
}

func (s *Storage) SaveCompletedSession(ctx context.Context, archived *model.ArchivedSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := *archived
	stored.Session = *archived.Session.Clone()
	s.sessions[archived.Session.ID] = &stored
	return nil
}

func (s *Storage) FetchArchivedSession(ctx context.Context, id model.SessionID) (*model.ArchivedSession, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	archived, ok := s.sessions[id]
	if !ok {
		return nil, model.ErrArchivedSessionNotFound
	}
	result := *archived
	result.Session = *archived.Session.Clone()
	if moves, ok := s.moves[id]; ok {
		result.Session.Moves = cloneMoves(moves)
	}
	return &result, nil
}

// Close is a no-op for in-memory storage
func (s *Storage) Close() error {
	return nil
}

func cloneMoves(moves []model.MoveRecord) []model.MoveRecord {
	sess := model.Session{Moves: moves}
	return sess.Clone().Moves
}
