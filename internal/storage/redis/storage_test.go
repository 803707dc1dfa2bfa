package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/storage"
	"github.com/mcoot/chesschain-go/internal/storage/storagetest"
)

func TestStorageContract(t *testing.T) {
	suite.Run(t, &storagetest.ContractSuite{
		NewStorage: func() storage.Storage {
			mini := miniredis.RunT(t)
			client := redis.NewClient(&redis.Options{Addr: mini.Addr()})
			return NewWithClient(client, DefaultConfig())
		},
	})
}

type StorageSuite struct {
	suite.Suite
	mini    *miniredis.Miniredis
	storage *Storage
	ctx     context.Context
}

func TestStorageSuite(t *testing.T) {
	suite.Run(t, new(StorageSuite))
}

func (s *StorageSuite) SetupTest() {
	s.mini = miniredis.RunT(s.T())

	client := redis.NewClient(&redis.Options{
		Addr: s.mini.Addr(),
	})

	cfg := DefaultConfig()
	cfg.ArchiveTTL = time.Hour

	s.storage = NewWithClient(client, cfg)
	s.ctx = context.Background()
}

func (s *StorageSuite) TearDownTest() {
	if s.storage != nil {
		_ = s.storage.Close()
	}
	if s.mini != nil {
		s.mini.Close()
	}
}

func (s *StorageSuite) TestKeyLayout() {
	fixture := storagetest.ArchivedFixture("session-1")
	s.Require().NoError(s.storage.EnsureParticipantsExist(s.ctx, []model.ParticipantID{"alice"}))
	s.Require().NoError(s.storage.SaveMoves(s.ctx, "session-1", fixture.Session.Moves))
	s.Require().NoError(s.storage.SaveCompletedSession(s.ctx, fixture))

	s.True(s.mini.Exists("chesschain:participant:alice"))
	s.True(s.mini.Exists("chesschain:session:session-1"))

	moves, err := s.mini.List("chesschain:moves:session-1")
	s.Require().NoError(err)
	s.Len(moves, 2)
}

func (s *StorageSuite) TestArchiveTTL() {
	fixture := storagetest.ArchivedFixture("session-1")
	s.Require().NoError(s.storage.SaveMoves(s.ctx, "session-1", fixture.Session.Moves))
	s.Require().NoError(s.storage.SaveCompletedSession(s.ctx, fixture))

	s.Equal(time.Hour, s.mini.TTL("chesschain:session:session-1"))
	s.Equal(time.Hour, s.mini.TTL("chesschain:moves:session-1"))

	s.mini.FastForward(2 * time.Hour)

	_, err := s.storage.FetchArchivedSession(s.ctx, "session-1")
	s.ErrorIs(err, model.ErrArchivedSessionNotFound)
}

func (s *StorageSuite) TestParticipantsDoNotExpire() {
	s.Require().NoError(s.storage.EnsureParticipantsExist(s.ctx, []model.ParticipantID{"alice"}))
	s.Equal(time.Duration(0), s.mini.TTL("chesschain:participant:alice"))
}
