package registry

import (
	"log/slog"
	"sync"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
)

// Channel is a live outbound connection to one client
type Channel interface {
	// ID is unique per connection for its lifetime
	ID() string
	Send(data []byte) error
	Close() error
}

// Listener is called after an identity is bound or unbound
type Listener func(id model.ParticipantID)

// Registry maps each authenticated identity to its single live channel
type Registry struct {
	mu       sync.RWMutex
	channels map[model.ParticipantID]Channel
	keys     map[model.ParticipantID]string

	listenerMu sync.RWMutex
	onBind     []Listener
	onUnbind   []Listener

	logger *slog.Logger
}

// New creates an empty Registry
func New(logger *slog.Logger) *Registry {
	return &Registry{
		channels: make(map[model.ParticipantID]Channel),
		keys:     make(map[model.ParticipantID]string),
		logger:   logger.With(slog.String("component", "registry")),
	}
}

// OnBind registers a listener fired after every successful Bind
func (r *Registry) OnBind(l Listener) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.onBind = append(r.onBind, l)
}

// OnUnbind registers a listener fired after the current channel of an identity is unbound
func (r *Registry) OnUnbind(l Listener) {
	r.listenerMu.Lock()
	defer r.listenerMu.Unlock()
	r.onUnbind = append(r.onUnbind, l)
}

// Bind registers ch as the live channel for id. A previous channel is
// superseded but not closed. A non-empty publicKey replaces the declared key;
// an empty one keeps whatever was declared before.
func (r *Registry) Bind(id model.ParticipantID, ch Channel, publicKey string) {
	r.mu.Lock()
	prev, superseded := r.channels[id]
	r.channels[id] = ch
	if publicKey != "" {
		r.keys[id] = publicKey
	}
	total := len(r.channels)
	r.mu.Unlock()

	attrs := []any{
		slog.String("participant_id", string(id)),
		slog.String("channel_id", ch.ID()),
		slog.Int("total_connections", total),
	}
	if superseded && prev.ID() != ch.ID() {
		attrs = append(attrs, slog.String("superseded_channel_id", prev.ID()))
	}
	r.logger.Info("participant bound", attrs...)

	r.fire(r.bindListeners(), id)
}

// Unbind removes the binding for id if ch is still its current channel.
// Returns false when ch was already superseded, in which case nothing fires.
func (r *Registry) Unbind(id model.ParticipantID, ch Channel) bool {
	r.mu.Lock()
	current, ok := r.channels[id]
	if !ok || current.ID() != ch.ID() {
		r.mu.Unlock()
		return false
	}
	delete(r.channels, id)
	total := len(r.channels)
	r.mu.Unlock()

	r.logger.Info("participant unbound",
		slog.String("participant_id", string(id)),
		slog.String("channel_id", ch.ID()),
		slog.Int("total_connections", total))

	r.fire(r.unbindListeners(), id)
	return true
}

// Send delivers msg to id's live channel. Delivery is best effort: a missing
// channel or a failed write is logged and otherwise ignored.
func (r *Registry) Send(id model.ParticipantID, msg protocol.Outbound) {
	r.mu.RLock()
	ch, ok := r.channels[id]
	r.mu.RUnlock()
	if !ok {
		r.logger.Warn("dropping message for unbound participant",
			slog.String("participant_id", string(id)),
			slog.String("type", string(msg.MessageType())))
		return
	}

	data, err := protocol.Encode(msg)
	if err != nil {
		r.logger.Error("failed to encode message",
			slog.String("type", string(msg.MessageType())),
			slog.String("error", err.Error()))
		return
	}
	if err := ch.Send(data); err != nil {
		r.logger.Warn("failed to deliver message",
			slog.String("participant_id", string(id)),
			slog.String("channel_id", ch.ID()),
			slog.String("type", string(msg.MessageType())),
			slog.String("error", err.Error()))
	}
}

// IsConnected reports whether id has a live channel
func (r *Registry) IsConnected(id model.ParticipantID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.channels[id]
	return ok
}

// PublicKey returns the key id declared at authentication, or empty
func (r *Registry) PublicKey(id model.ParticipantID) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.keys[id]
}

// Count returns the number of bound identities
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

func (r *Registry) bindListeners() []Listener {
	r.listenerMu.RLock()
	defer r.listenerMu.RUnlock()
	return append([]Listener(nil), r.onBind...)
}

func (r *Registry) unbindListeners() []Listener {
	r.listenerMu.RLock()
	defer r.listenerMu.RUnlock()
	return append([]Listener(nil), r.onUnbind...)
}

func (r *Registry) fire(listeners []Listener, id model.ParticipantID) {
	for _, l := range listeners {
		l(id)
	}
}
