package negotiation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chesschain-go/internal/dependencies/mocks"
	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
	"github.com/mcoot/chesschain-go/internal/services/session"
	"github.com/mcoot/chesschain-go/internal/testutil"
)

type ServiceSuite struct {
	suite.Suite
	store     *session.Store
	notifier  *testutil.RecordingNotifier
	finalizer *testutil.RecordingFinalizer
	clock     *mocks.MockClock
	random    *mocks.MockRandom
	service   *Service
	id        model.SessionID
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.clock = mocks.NewMockClock(time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC))
	s.random = mocks.NewMockRandom()
	s.store = session.NewStore(s.clock, s.random, testutil.NopLogger())
	s.notifier = testutil.NewRecordingNotifier()
	s.finalizer = &testutil.RecordingFinalizer{}
	s.service = New(s.store, s.notifier, s.finalizer, s.clock, testutil.NopLogger())

	s.random.QueueID("session-1")
	sess, err := s.store.Create(
		model.SessionSlot{Participant: "alice", Connected: true},
		model.SessionSlot{Participant: "bob", Connected: true},
	)
	s.Require().NoError(err)
	s.id = sess.ID
}

func (s *ServiceSuite) session() *model.Session {
	snap, err := s.store.Get(s.id)
	s.Require().NoError(err)
	return snap
}

// Resign tests

func (s *ServiceSuite) TestResign() {
	result, err := s.service.Resign("alice", s.id)
	s.Require().NoError(err)
	s.Equal(model.SideBlack, result.Winner)
	s.Equal(model.ReasonResignation, result.Reason)

	snap := s.session()
	s.Equal(model.SessionStatusCompleted, snap.Status)
	s.NotNil(snap.CompletedAt)

	s.Equal([]protocol.MessageType{protocol.TypeResignConfirmed, protocol.TypeGameOver}, s.notifier.Types("alice"))
	s.Equal([]protocol.MessageType{protocol.TypeGameOver}, s.notifier.Types("bob"))

	confirmed := s.notifier.Messages("alice")[0].(protocol.ResignConfirmed)
	s.Equal("black", *confirmed.Result.Winner)
	over := s.notifier.Last("bob").(protocol.GameOver)
	s.Equal("black", *over.Result.Winner)
	s.Equal("resignation", over.Result.Reason)

	s.Len(s.finalizer.Sessions(), 1)
}

func (s *ServiceSuite) TestResign_Errors() {
	_, err := s.service.Resign("alice", "missing")
	s.ErrorIs(err, model.ErrSessionNotFound)

	_, err = s.service.Resign("mallory", s.id)
	s.ErrorIs(err, model.ErrNotAParticipant)

	_, err = s.service.Resign("bob", s.id)
	s.Require().NoError(err)

	_, err = s.service.Resign("alice", s.id)
	s.ErrorIs(err, model.ErrMatchAlreadyCompleted)
	s.Equal(model.SideWhite, s.session().Result.Winner, "first result stands")
	s.Len(s.finalizer.Sessions(), 1)
}

// Draw tests

func (s *ServiceSuite) TestOfferDraw() {
	s.Require().NoError(s.service.OfferDraw("alice", s.id))

	s.Equal(model.SideWhite, s.session().DrawOfferBy)
	s.Equal([]protocol.MessageType{protocol.TypeDrawOffer}, s.notifier.Types("bob"))
	s.Equal([]protocol.MessageType{protocol.TypeDrawOfferSent}, s.notifier.Types("alice"))
}

func (s *ServiceSuite) TestRespondDraw_NoOffer() {
	err := s.service.RespondDraw("bob", s.id, true)
	s.ErrorIs(err, model.ErrNoActiveOffer)
}

func (s *ServiceSuite) TestRespondDraw_OwnOffer() {
	s.Require().NoError(s.service.OfferDraw("alice", s.id))

	err := s.service.RespondDraw("alice", s.id, true)
	s.ErrorIs(err, model.ErrCannotRespondToOwnOffer)
	s.Equal(model.SessionStatusActive, s.session().Status)
}

func (s *ServiceSuite) TestRespondDraw_Accept() {
	s.Require().NoError(s.service.OfferDraw("alice", s.id))
	s.notifier.Reset()

	s.Require().NoError(s.service.RespondDraw("bob", s.id, true))

	snap := s.session()
	s.Equal(model.SessionStatusCompleted, snap.Status)
	s.True(snap.Result.IsDraw())
	s.Equal(model.ReasonDrawAgreement, snap.Result.Reason)
	s.Empty(snap.DrawOfferBy)

	for _, id := range []model.ParticipantID{"alice", "bob"} {
		over, ok := s.notifier.Last(id).(protocol.GameOver)
		s.Require().True(ok)
		s.Nil(over.Result.Winner)
		s.Equal("draw_agreement", over.Result.Reason)
	}
	s.Len(s.finalizer.Sessions(), 1)
}

func (s *ServiceSuite) TestRespondDraw_Decline() {
	s.Require().NoError(s.service.OfferDraw("alice", s.id))
	s.notifier.Reset()

	s.Require().NoError(s.service.RespondDraw("bob", s.id, false))

	snap := s.session()
	s.Equal(model.SessionStatusActive, snap.Status)
	s.Empty(snap.DrawOfferBy)
	s.Equal([]protocol.MessageType{protocol.TypeDrawDeclined}, s.notifier.Types("alice"))
	s.Empty(s.notifier.Types("bob"))

	err := s.service.RespondDraw("bob", s.id, true)
	s.ErrorIs(err, model.ErrNoActiveOffer)
}

func (s *ServiceSuite) TestOfferDraw_CrossingOffersAgree() {
	s.Require().NoError(s.service.OfferDraw("alice", s.id))
	s.Require().NoError(s.service.OfferDraw("bob", s.id))

	snap := s.session()
	s.Equal(model.SessionStatusCompleted, snap.Status)
	s.Equal(model.ReasonDrawAgreement, snap.Result.Reason)
}

func (s *ServiceSuite) TestOfferDraw_RepeatedOfferStaysPending() {
	s.Require().NoError(s.service.OfferDraw("alice", s.id))
	s.Require().NoError(s.service.OfferDraw("alice", s.id))

	snap := s.session()
	s.Equal(model.SessionStatusActive, snap.Status)
	s.Equal(model.SideWhite, snap.DrawOfferBy)
}

func (s *ServiceSuite) TestOfferDraw_AfterCompletion() {
	_, err := s.service.Resign("alice", s.id)
	s.Require().NoError(err)

	s.ErrorIs(s.service.OfferDraw("bob", s.id), model.ErrMatchAlreadyCompleted)
	s.ErrorIs(s.service.RespondDraw("bob", s.id, true), model.ErrMatchAlreadyCompleted)
}

func (s *ServiceSuite) TestResign_ClearsPendingOffer() {
	s.Require().NoError(s.service.OfferDraw("bob", s.id))
	_, err := s.service.Resign("alice", s.id)
	s.Require().NoError(err)
	s.Empty(s.session().DrawOfferBy)
}
