// Package storagetest holds the behaviour every storage backend must share.
package storagetest

import (
	"context"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/storage"
)

// ContractSuite runs the storage contract against the backend built by NewStorage
type ContractSuite struct {
	suite.Suite
	NewStorage func() storage.Storage

	Storage storage.Storage
	Ctx     context.Context
}

func (s *ContractSuite) SetupTest() {
	s.Storage = s.NewStorage()
	s.Ctx = context.Background()
}

func (s *ContractSuite) TearDownTest() {
	if s.Storage != nil {
		_ = s.Storage.Close()
	}
}

// ArchivedFixture returns a completed two-move session archived at a fixed time
func ArchivedFixture(id model.SessionID) *model.ArchivedSession {
	start := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	done := start.Add(2 * time.Minute)
	return &model.ArchivedSession{
		Session: model.Session{
			ID:     id,
			Status: model.SessionStatusCompleted,
			White: model.SessionSlot{
				Participant:     "alice",
				Metadata:        model.ParticipantMetadata{DisplayName: "Alice", Rating: 1250},
				MetadataFetched: true,
			},
			Black: model.SessionSlot{
				Participant:     "bob",
				Metadata:        model.ParticipantMetadata{DisplayName: "Bob", Rating: 1180},
				MetadataFetched: true,
			},
			Moves: []model.MoveRecord{
				{
					Sequence: 0, Side: model.SideWhite, Participant: "alice",
					Move:           model.Move{From: "e2", To: "e4"},
					PositionDigest: "p0", Signature: []byte{1, 2, 3},
					Verification: model.VerificationVerified,
					Timestamp:    start.Add(time.Minute),
				},
				{
					Sequence: 1, Side: model.SideBlack, Participant: "bob",
					Move:          model.Move{From: "f7", To: "f8", Promotion: "q"},
					TerminalLabel: model.TerminalCheckmate,
					Verification:  model.VerificationUnverified,
					Timestamp:     done,
				},
			},
			Result:      &model.Result{Winner: model.SideBlack, Reason: model.ReasonCheckmate},
			CreatedAt:   start,
			UpdatedAt:   done,
			CompletedAt: &done,
		},
		Digest:     "abc123",
		ArchivedAt: done.Add(time.Second),
	}
}

func (s *ContractSuite) TestEnsureParticipantsExist_CreatesPlaceholders() {
	s.Require().NoError(s.Storage.EnsureParticipantsExist(s.Ctx, []model.ParticipantID{"alice-0001-xyz", "bob"}))

	meta, err := s.Storage.FetchParticipantMetadata(s.Ctx, []model.ParticipantID{"alice-0001-xyz", "bob", "nobody"})
	s.Require().NoError(err)
	s.Len(meta, 2)
	s.Equal("Player-alice-00", meta["alice-0001-xyz"].DisplayName)
	s.Equal(model.DefaultRating, meta["bob"].Rating)
	_, ok := meta["nobody"]
	s.False(ok)
}

func (s *ContractSuite) TestEnsureParticipantsExist_KeepsExisting() {
	s.Require().NoError(s.Storage.SaveParticipantMetadata(s.Ctx, "alice", model.ParticipantMetadata{
		DisplayName: "Alice", Rating: 1400, Wins: 3, Losses: 1, Draws: 2,
	}))
	s.Require().NoError(s.Storage.EnsureParticipantsExist(s.Ctx, []model.ParticipantID{"alice"}))

	meta, err := s.Storage.FetchParticipantMetadata(s.Ctx, []model.ParticipantID{"alice"})
	s.Require().NoError(err)
	s.Equal(model.ParticipantMetadata{DisplayName: "Alice", Rating: 1400, Wins: 3, Losses: 1, Draws: 2}, meta["alice"])
}

func (s *ContractSuite) TestFetchParticipantMetadata_Empty() {
	meta, err := s.Storage.FetchParticipantMetadata(s.Ctx, nil)
	s.Require().NoError(err)
	s.Empty(meta)
}

func (s *ContractSuite) TestSaveAndFetchArchivedSession() {
	fixture := ArchivedFixture("session-1")
	s.Require().NoError(s.Storage.SaveMoves(s.Ctx, fixture.Session.ID, fixture.Session.Moves))
	s.Require().NoError(s.Storage.SaveCompletedSession(s.Ctx, fixture))

	got, err := s.Storage.FetchArchivedSession(s.Ctx, "session-1")
	s.Require().NoError(err)

	s.Equal(fixture.Digest, got.Digest)
	s.Equal(model.SessionStatusCompleted, got.Session.Status)
	s.Equal(model.ParticipantID("alice"), got.Session.White.Participant)
	s.Equal("Bob", got.Session.Black.Metadata.DisplayName)
	s.Require().NotNil(got.Session.Result)
	s.Equal(*fixture.Session.Result, *got.Session.Result)
	s.True(fixture.ArchivedAt.Equal(got.ArchivedAt))

	s.Require().Len(got.Session.Moves, 2)
	for i, want := range fixture.Session.Moves {
		have := got.Session.Moves[i]
		s.Equal(want.Sequence, have.Sequence)
		s.Equal(want.Side, have.Side)
		s.Equal(want.Participant, have.Participant)
		s.Equal(want.Move, have.Move)
		s.Equal(want.TerminalLabel, have.TerminalLabel)
		s.Equal(want.PositionDigest, have.PositionDigest)
		s.Equal(want.Verification, have.Verification)
		s.True(want.Timestamp.Equal(have.Timestamp))
		if len(want.Signature) == 0 {
			s.Empty(have.Signature)
		} else {
			s.Equal(want.Signature, have.Signature)
		}
	}
}

func (s *ContractSuite) TestSaveMoves_Replaces() {
	fixture := ArchivedFixture("session-1")
	s.Require().NoError(s.Storage.SaveMoves(s.Ctx, "session-1", fixture.Session.Moves))
	s.Require().NoError(s.Storage.SaveMoves(s.Ctx, "session-1", fixture.Session.Moves[:1]))
	s.Require().NoError(s.Storage.SaveCompletedSession(s.Ctx, fixture))

	got, err := s.Storage.FetchArchivedSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Len(got.Session.Moves, 1)
}

func (s *ContractSuite) TestFetchArchivedSession_NotFound() {
	_, err := s.Storage.FetchArchivedSession(s.Ctx, "missing")
	s.ErrorIs(err, model.ErrArchivedSessionNotFound)
}

func (s *ContractSuite) TestFetchArchivedSession_IsolatedFromCaller() {
	fixture := ArchivedFixture("session-1")
	s.Require().NoError(s.Storage.SaveMoves(s.Ctx, "session-1", fixture.Session.Moves))
	s.Require().NoError(s.Storage.SaveCompletedSession(s.Ctx, fixture))

	fixture.Session.Moves[0].Move.To = "h8"

	got, err := s.Storage.FetchArchivedSession(s.Ctx, "session-1")
	s.Require().NoError(err)
	s.Equal("e4", got.Session.Moves[0].Move.To)
}
