package game

import (
	"context"
	"log/slog"

	"github.com/mcoot/chesschain-go/internal/dependencies/clock"
	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
	"github.com/mcoot/chesschain-go/internal/services/session"
	"github.com/mcoot/chesschain-go/internal/services/signature"
)

// Notifier delivers best-effort messages to participants
type Notifier interface {
	Send(id model.ParticipantID, msg protocol.Outbound)
}

// Finalizer receives a snapshot of every session that reaches completion
type Finalizer interface {
	Submit(sess *model.Session)
}

// KeyDirectory resolves the public key a participant declared on authentication
type KeyDirectory interface {
	PublicKey(id model.ParticipantID) string
}

// MoveSubmission is a decoded move request
type MoveSubmission struct {
	SessionID      model.SessionID
	Move           model.Move
	TerminalLabel  model.TerminalLabel
	PositionDigest string
	Signature      []byte
}

// Controller is the move pipeline. It is the only writer of session move logs.
type Controller struct {
	store     *session.Store
	checker   *signature.Checker
	notifier  Notifier
	finalizer Finalizer
	keys      KeyDirectory
	clock     clock.Clock
	logger    *slog.Logger
}

// NewController creates a new move pipeline Controller
func NewController(
	store *session.Store,
	checker *signature.Checker,
	notifier Notifier,
	finalizer Finalizer,
	keys KeyDirectory,
	clock clock.Clock,
	logger *slog.Logger,
) *Controller {
	return &Controller{
		store:     store,
		checker:   checker,
		notifier:  notifier,
		finalizer: finalizer,
		keys:      keys,
		clock:     clock,
		logger:    logger.With(slog.String("component", "move_pipeline")),
	}
}

// StartSession creates a session for two dequeued participants and tells both
// sides about it. white moves first. Seats start with placeholder metadata;
// persistence is not consulted until completion or reconnection.
func (c *Controller) StartSession(_ context.Context, white, black model.ParticipantID) (*model.Session, error) {
	sess, err := c.store.Create(c.slotFor(white), c.slotFor(black))
	if err != nil {
		c.logger.Error("failed to create session",
			slog.String("white", string(white)),
			slog.String("black", string(black)),
			slog.String("error", err.Error()))
		return nil, err
	}

	c.notifier.Send(white, protocol.MatchFoundFor(sess, model.SideWhite))
	c.notifier.Send(black, protocol.MatchFoundFor(sess, model.SideBlack))
	return sess, nil
}

func (c *Controller) slotFor(id model.ParticipantID) model.SessionSlot {
	return model.SessionSlot{
		Participant: id,
		Metadata:    model.PlaceholderMetadata(id),
		PublicKey:   c.keys.PublicKey(id),
		Connected:   true,
	}
}

// SubmitMove validates and appends a move. Turn and structure are checked
// against a snapshot, the signature is verified without holding the session
// lock, and the append re-checks the turn atomically so a concurrent writer
// cannot slip in between.
func (c *Controller) SubmitMove(ctx context.Context, identity model.ParticipantID, sub MoveSubmission) (*model.MoveRecord, error) {
	snap, err := c.store.Get(sub.SessionID)
	if err != nil {
		return nil, err
	}

	side, ok := snap.SideOf(identity)
	if !ok {
		return nil, model.ErrNotAParticipant
	}
	if !snap.IsActive() {
		return nil, model.ErrMatchAlreadyCompleted
	}
	if err := checkTurn(snap, side); err != nil {
		return nil, err
	}
	if err := sub.Move.Validate(); err != nil {
		return nil, err
	}
	if err := sub.TerminalLabel.Validate(); err != nil {
		return nil, err
	}

	sequence := len(snap.Moves)
	publicKey := snap.Slot(side).PublicKey
	if publicKey == "" {
		publicKey = c.keys.PublicKey(identity)
	}
	payload := signature.CanonicalMovePayload(snap.ID, sequence, sub.Move)
	verification, err := c.checker.Check(ctx, publicKey, payload, sub.Signature)
	if err != nil {
		c.logger.Info("move rejected",
			slog.String("session_id", string(snap.ID)),
			slog.String("participant_id", string(identity)),
			slog.Int("sequence", sequence),
			slog.String("error", err.Error()))
		return nil, err
	}

	var (
		record    model.MoveRecord
		completed *model.Session
	)
	err = c.store.Update(sub.SessionID, func(sess *model.Session) error {
		if !sess.IsActive() {
			return model.ErrMatchAlreadyCompleted
		}
		if err := checkTurn(sess, side); err != nil {
			return err
		}
		if len(sess.Moves) != sequence {
			// the signature covers a sequence that is no longer next
			return &model.TurnError{Side: side, ToMove: sess.SideToMove(), MoveCount: len(sess.Moves)}
		}

		now := c.clock.Now()
		record = model.MoveRecord{
			Sequence:       sequence,
			Move:           sub.Move,
			Side:           side,
			Participant:    identity,
			TerminalLabel:  sub.TerminalLabel,
			PositionDigest: sub.PositionDigest,
			Signature:      append([]byte(nil), sub.Signature...),
			Verification:   verification,
			Timestamp:      now,
		}
		sess.Moves = append(sess.Moves, record)
		sess.UpdatedAt = now

		if result, terminal := sub.TerminalLabel.ResultFor(side); terminal {
			sess.Complete(result, now)
			completed = sess.Clone()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.logger.Info("move accepted",
		slog.String("session_id", string(snap.ID)),
		slog.String("side", string(side)),
		slog.Int("sequence", sequence),
		slog.String("move", sub.Move.String()),
		slog.String("verification", string(verification)))

	opponent := snap.Participant(side.Opponent())
	c.notifier.Send(identity, protocol.MoveAccepted{
		SessionID:    string(snap.ID),
		Sequence:     sequence,
		Verification: string(verification),
	})
	c.notifier.Send(opponent, protocol.OpponentMove{
		SessionID:     string(snap.ID),
		Sequence:      sequence,
		Move:          protocol.MoveFromModel(sub.Move),
		TerminalLabel: string(sub.TerminalLabel),
	})

	if completed != nil {
		c.logger.Info("session completed",
			slog.String("session_id", string(completed.ID)),
			slog.String("reason", string(completed.Result.Reason)),
			slog.String("winner", string(completed.Result.Winner)))
		over := protocol.GameOver{SessionID: string(completed.ID), Result: protocol.ResultFromModel(completed.Result)}
		c.notifier.Send(identity, over)
		c.notifier.Send(opponent, over)
		c.finalizer.Submit(completed)
	}

	return &record, nil
}

func checkTurn(sess *model.Session, side model.Side) error {
	toMove := sess.SideToMove()
	if side != toMove {
		return &model.TurnError{Side: side, ToMove: toMove, MoveCount: len(sess.Moves)}
	}
	return nil
}
