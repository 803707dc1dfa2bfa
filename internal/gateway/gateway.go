package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
	"github.com/mcoot/chesschain-go/internal/registry"
	"github.com/mcoot/chesschain-go/internal/services/game"
	"github.com/mcoot/chesschain-go/internal/services/signature"
)

// Queue accepts participants waiting for a match
type Queue interface {
	Enqueue(id model.ParticipantID) bool
}

// MovePipeline validates and appends moves
type MovePipeline interface {
	SubmitMove(ctx context.Context, identity model.ParticipantID, sub game.MoveSubmission) (*model.MoveRecord, error)
}

// Negotiator handles resignation and draw negotiation
type Negotiator interface {
	Resign(identity model.ParticipantID, id model.SessionID) (*model.Result, error)
	OfferDraw(identity model.ParticipantID, id model.SessionID) error
	RespondDraw(identity model.ParticipantID, id model.SessionID, accept bool) error
}

// StateSource builds reconnection snapshots
type StateSource interface {
	RequestState(ctx context.Context, identity model.ParticipantID, id model.SessionID) (*model.StateSnapshot, error)
}

// Gateway decodes inbound frames and dispatches them to the component that
// owns them. Replies and errors go to the sending connection only.
type Gateway struct {
	registry    *registry.Registry
	queue       Queue
	moves       MovePipeline
	negotiation Negotiator
	state       StateSource
	logger      *slog.Logger

	mu         sync.Mutex
	identities map[string]model.ParticipantID // channel id -> bound identity
	channels   map[model.ParticipantID]string // identity -> live channel id
}

// New creates a Gateway
func New(
	reg *registry.Registry,
	queue Queue,
	moves MovePipeline,
	negotiation Negotiator,
	state StateSource,
	logger *slog.Logger,
) *Gateway {
	return &Gateway{
		registry:    reg,
		queue:       queue,
		moves:       moves,
		negotiation: negotiation,
		state:       state,
		logger:      logger.With(slog.String("component", "gateway")),
		identities:  make(map[string]model.ParticipantID),
		channels:    make(map[model.ParticipantID]string),
	}
}

// HandleMessage processes one inbound frame from ch. A panic while handling
// is recovered and reported to the sender as an internal error.
func (g *Gateway) HandleMessage(ctx context.Context, ch registry.Channel, data []byte) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("panic recovered",
				slog.Any("error", r),
				slog.String("stack", string(debug.Stack())),
				slog.String("channel_id", ch.ID()))
			g.reply(ch, protocol.ErrorFromErr(fmt.Errorf("panic: %v", r)))
		}
	}()

	msg, err := protocol.Decode(data)
	if err != nil {
		g.reply(ch, protocol.ErrorFromErr(err))
		return
	}

	if err := g.dispatch(ctx, ch, msg); err != nil {
		g.logger.Debug("request rejected",
			slog.String("channel_id", ch.ID()),
			slog.String("type", string(msg.MessageType())),
			slog.String("error", err.Error()))
		g.reply(ch, protocol.ErrorFromErr(err))
	}
}

// HandleClose releases the identity bound to ch, if ch is still its live channel
func (g *Gateway) HandleClose(ch registry.Channel) {
	g.mu.Lock()
	id, ok := g.identities[ch.ID()]
	delete(g.identities, ch.ID())
	if ok && g.channels[id] == ch.ID() {
		delete(g.channels, id)
	}
	g.mu.Unlock()

	if ok {
		g.registry.Unbind(id, ch)
	}
}

// Identity returns the identity bound to ch
func (g *Gateway) Identity(ch registry.Channel) (model.ParticipantID, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	id, ok := g.identities[ch.ID()]
	return id, ok
}

func (g *Gateway) dispatch(ctx context.Context, ch registry.Channel, msg protocol.Inbound) error {
	switch m := msg.(type) {
	case *protocol.Authenticate:
		return g.authenticate(ch, m)
	case *protocol.Ping:
		g.reply(ch, protocol.Pong{})
		return nil
	}

	identity, ok := g.Identity(ch)
	if !ok {
		return model.ErrUnauthenticated
	}

	switch m := msg.(type) {
	case *protocol.JoinQueue:
		if g.queue.Enqueue(identity) {
			g.logger.Info("participant queued", slog.String("participant_id", string(identity)))
		}
		g.reply(ch, protocol.QueueJoined{})
		return nil

	case *protocol.SubmitMove:
		sub, err := submission(m)
		if err != nil {
			return err
		}
		_, err = g.moves.SubmitMove(ctx, identity, sub)
		return err

	case *protocol.Resign:
		_, err := g.negotiation.Resign(identity, model.SessionID(m.SessionID))
		return err

	case *protocol.OfferDraw:
		return g.negotiation.OfferDraw(identity, model.SessionID(m.SessionID))

	case *protocol.DrawResponse:
		return g.negotiation.RespondDraw(identity, model.SessionID(m.SessionID), m.Accepted)

	case *protocol.GetGameState:
		snap, err := g.state.RequestState(ctx, identity, model.SessionID(m.SessionID))
		if err != nil {
			return err
		}
		g.reply(ch, protocol.GameStateFromSnapshot(snap))
		return nil

	default:
		return fmt.Errorf("%w: %s", model.ErrUnknownMessageType, msg.MessageType())
	}
}

func (g *Gateway) authenticate(ch registry.Channel, m *protocol.Authenticate) error {
	if m.Identity == "" {
		return fmt.Errorf("%w: identity is required", model.ErrMalformedMessage)
	}
	if m.PublicKey != "" {
		if _, err := signature.ParsePublicKey(m.PublicKey); err != nil {
			return fmt.Errorf("%w: %v", model.ErrMalformedMessage, err)
		}
	}
	id := model.ParticipantID(m.Identity)

	g.mu.Lock()
	prev, had := g.identities[ch.ID()]
	if had && prev != id && g.channels[prev] == ch.ID() {
		delete(g.channels, prev)
	}
	// a newer authentication supersedes the identity's previous channel
	if old, ok := g.channels[id]; ok && old != ch.ID() {
		delete(g.identities, old)
	}
	g.identities[ch.ID()] = id
	g.channels[id] = ch.ID()
	g.mu.Unlock()

	if had && prev != id {
		g.registry.Unbind(prev, ch)
	}
	g.registry.Bind(id, ch, m.PublicKey)
	return nil
}

func submission(m *protocol.SubmitMove) (game.MoveSubmission, error) {
	sub := game.MoveSubmission{
		SessionID:      model.SessionID(m.SessionID),
		Move:           m.Move.ModelMove(),
		TerminalLabel:  model.TerminalLabel(m.TerminalLabel),
		PositionDigest: m.PositionDigest,
	}
	if m.Signature != "" {
		sig, err := signature.DecodeBytes(m.Signature)
		if err != nil {
			return sub, fmt.Errorf("%w: %v", model.ErrInvalidSignature, err)
		}
		sub.Signature = sig
	}
	return sub, nil
}

func (g *Gateway) reply(ch registry.Channel, msg protocol.Outbound) {
	data, err := protocol.Encode(msg)
	if err != nil {
		g.logger.Error("failed to encode reply",
			slog.String("type", string(msg.MessageType())),
			slog.String("error", err.Error()))
		return
	}
	if err := ch.Send(data); err != nil {
		g.logger.Warn("failed to send reply",
			slog.String("channel_id", ch.ID()),
			slog.String("type", string(msg.MessageType())),
			slog.String("error", err.Error()))
	}
}
