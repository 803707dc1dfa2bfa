package statesync

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/services/session"
)

// Archive looks up sessions that are no longer held in memory and the
// display metadata of their participants
type Archive interface {
	FetchArchivedSession(ctx context.Context, id model.SessionID) (*model.ArchivedSession, error)
	FetchParticipantMetadata(ctx context.Context, ids []model.ParticipantID) (map[model.ParticipantID]model.ParticipantMetadata, error)
}

// Service rebuilds a participant's view of a session. It only reads: no call
// changes session status, moves or offers.
type Service struct {
	store   *session.Store
	archive Archive
	logger  *slog.Logger
}

// New creates a state-sync Service
func New(store *session.Store, archive Archive, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		archive: archive,
		logger:  logger.With(slog.String("component", "statesync")),
	}
}

// RequestState returns identity's snapshot of the session, falling back to the
// archive when the session has been evicted. Opponent metadata not cached on
// the seat is looked up here; nothing is written back.
func (s *Service) RequestState(ctx context.Context, identity model.ParticipantID, id model.SessionID) (*model.StateSnapshot, error) {
	sess, err := s.store.Get(id)
	archived := false
	if errors.Is(err, model.ErrSessionNotFound) {
		sess, err = s.fetchArchived(ctx, id)
		archived = true
	}
	if err != nil {
		return nil, err
	}

	snap, err := Snapshot(sess, identity, archived)
	if err != nil {
		return nil, err
	}
	if !sess.Slot(snap.Side.Opponent()).MetadataFetched {
		s.fillOpponentMetadata(ctx, snap)
	}
	return snap, nil
}

func (s *Service) fillOpponentMetadata(ctx context.Context, snap *model.StateSnapshot) {
	meta, err := s.archive.FetchParticipantMetadata(ctx, []model.ParticipantID{snap.Opponent})
	if err != nil {
		s.logger.Warn("failed to fetch opponent metadata, using placeholder",
			slog.String("session_id", string(snap.SessionID)),
			slog.String("error", err.Error()))
		return
	}
	if m, ok := meta[snap.Opponent]; ok {
		snap.OpponentMetadata = m
	}
}

func (s *Service) fetchArchived(ctx context.Context, id model.SessionID) (*model.Session, error) {
	rec, err := s.archive.FetchArchivedSession(ctx, id)
	if err != nil {
		if !errors.Is(err, model.ErrArchivedSessionNotFound) {
			s.logger.Warn("archive lookup failed",
				slog.String("session_id", string(id)),
				slog.String("error", err.Error()))
		}
		return nil, model.ErrMatchNotFound
	}
	return &rec.Session, nil
}

// Snapshot builds the participant's view of sess
func Snapshot(sess *model.Session, identity model.ParticipantID, archived bool) (*model.StateSnapshot, error) {
	side, ok := sess.SideOf(identity)
	if !ok {
		return nil, model.ErrNotAParticipant
	}
	opp := sess.Slot(side.Opponent())

	meta := opp.Metadata
	if !opp.MetadataFetched && meta.DisplayName == "" {
		meta = model.PlaceholderMetadata(opp.Participant)
	}

	var result *model.Result
	if sess.Result != nil {
		r := *sess.Result
		result = &r
	}

	return &model.StateSnapshot{
		SessionID:         sess.ID,
		Side:              side,
		Opponent:          opp.Participant,
		OpponentMetadata:  meta,
		Status:            sess.Status,
		Result:            result,
		Moves:             sess.Clone().Moves,
		Turn:              sess.SideToMove(),
		DrawOfferVisible:  sess.DrawOfferBy == side.Opponent(),
		OpponentConnected: opp.Connected && !archived,
		Archived:          archived,
	}, nil
}
