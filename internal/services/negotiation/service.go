package negotiation

import (
	"log/slog"

	"github.com/mcoot/chesschain-go/internal/dependencies/clock"
	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
	"github.com/mcoot/chesschain-go/internal/services/session"
)

// Notifier delivers best-effort messages to participants
type Notifier interface {
	Send(id model.ParticipantID, msg protocol.Outbound)
}

// Finalizer receives a snapshot of every session that reaches completion
type Finalizer interface {
	Submit(sess *model.Session)
}

// Service handles resignation and draw negotiation
type Service struct {
	store     *session.Store
	notifier  Notifier
	finalizer Finalizer
	clock     clock.Clock
	logger    *slog.Logger
}

// New creates a negotiation Service
func New(store *session.Store, notifier Notifier, finalizer Finalizer, clock clock.Clock, logger *slog.Logger) *Service {
	return &Service{
		store:     store,
		notifier:  notifier,
		finalizer: finalizer,
		clock:     clock,
		logger:    logger.With(slog.String("component", "negotiation")),
	}
}

// outcome is what a negotiation step decided while holding the session lock
type outcome struct {
	side      model.Side
	opponent  model.ParticipantID
	completed *model.Session
}

// Resign concedes the session to the opponent
func (s *Service) Resign(identity model.ParticipantID, id model.SessionID) (*model.Result, error) {
	var out outcome
	err := s.store.Update(id, func(sess *model.Session) error {
		side, err := activeSide(sess, identity)
		if err != nil {
			return err
		}
		out.side = side
		out.opponent = sess.Participant(side.Opponent())
		sess.Complete(&model.Result{Winner: side.Opponent(), Reason: model.ReasonResignation}, s.clock.Now())
		out.completed = sess.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}

	result := protocol.ResultFromModel(out.completed.Result)
	s.logger.Info("participant resigned",
		slog.String("session_id", string(id)),
		slog.String("side", string(out.side)))

	s.notifier.Send(identity, protocol.ResignConfirmed{SessionID: string(id), Result: result})
	over := protocol.GameOver{SessionID: string(id), Result: result}
	s.notifier.Send(out.opponent, over)
	s.notifier.Send(identity, over)
	s.finalizer.Submit(out.completed)
	return out.completed.Result, nil
}

// OfferDraw records a draw offer from identity. If the opponent already has
// an offer pending, the two offers agree and the session ends in a draw.
func (s *Service) OfferDraw(identity model.ParticipantID, id model.SessionID) error {
	var out outcome
	err := s.store.Update(id, func(sess *model.Session) error {
		side, err := activeSide(sess, identity)
		if err != nil {
			return err
		}
		out.side = side
		out.opponent = sess.Participant(side.Opponent())
		if sess.DrawOfferBy == side.Opponent() {
			sess.Complete(&model.Result{Reason: model.ReasonDrawAgreement}, s.clock.Now())
			out.completed = sess.Clone()
			return nil
		}
		sess.DrawOfferBy = side
		sess.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return err
	}

	if out.completed != nil {
		s.logger.Info("crossing draw offers agreed",
			slog.String("session_id", string(id)))
		s.finishDraw(identity, out)
		return nil
	}

	s.logger.Info("draw offered",
		slog.String("session_id", string(id)),
		slog.String("side", string(out.side)))
	s.notifier.Send(out.opponent, protocol.DrawOffered{SessionID: string(id)})
	s.notifier.Send(identity, protocol.DrawOfferSent{SessionID: string(id)})
	return nil
}

// RespondDraw accepts or declines the opponent's pending offer
func (s *Service) RespondDraw(identity model.ParticipantID, id model.SessionID, accept bool) error {
	var out outcome
	err := s.store.Update(id, func(sess *model.Session) error {
		side, err := activeSide(sess, identity)
		if err != nil {
			return err
		}
		switch sess.DrawOfferBy {
		case "":
			return model.ErrNoActiveOffer
		case side:
			return model.ErrCannotRespondToOwnOffer
		}
		out.side = side
		out.opponent = sess.Participant(side.Opponent())
		if accept {
			sess.Complete(&model.Result{Reason: model.ReasonDrawAgreement}, s.clock.Now())
			out.completed = sess.Clone()
			return nil
		}
		sess.DrawOfferBy = ""
		sess.UpdatedAt = s.clock.Now()
		return nil
	})
	if err != nil {
		return err
	}

	if accept {
		s.logger.Info("draw accepted",
			slog.String("session_id", string(id)))
		s.finishDraw(identity, out)
		return nil
	}

	s.logger.Info("draw declined",
		slog.String("session_id", string(id)),
		slog.String("side", string(out.side)))
	s.notifier.Send(out.opponent, protocol.DrawDeclined{SessionID: string(id)})
	return nil
}

func (s *Service) finishDraw(identity model.ParticipantID, out outcome) {
	over := protocol.GameOver{SessionID: string(out.completed.ID), Result: protocol.ResultFromModel(out.completed.Result)}
	s.notifier.Send(identity, over)
	s.notifier.Send(out.opponent, over)
	s.finalizer.Submit(out.completed)
}

// activeSide resolves the caller's side and requires an active session
func activeSide(sess *model.Session, identity model.ParticipantID) (model.Side, error) {
	side, ok := sess.SideOf(identity)
	if !ok {
		return "", model.ErrNotAParticipant
	}
	if !sess.IsActive() {
		return "", model.ErrMatchAlreadyCompleted
	}
	return side, nil
}
