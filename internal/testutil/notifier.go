package testutil

import (
	"sync"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
)

// RecordingNotifier captures every message sent to each participant
type RecordingNotifier struct {
	mu       sync.Mutex
	messages map[model.ParticipantID][]protocol.Outbound
}

// NewRecordingNotifier creates an empty RecordingNotifier
func NewRecordingNotifier() *RecordingNotifier {
	return &RecordingNotifier{messages: make(map[model.ParticipantID][]protocol.Outbound)}
}

// Send records msg for id
func (n *RecordingNotifier) Send(id model.ParticipantID, msg protocol.Outbound) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages[id] = append(n.messages[id], msg)
}

// Messages returns everything sent to id
func (n *RecordingNotifier) Messages(id model.ParticipantID) []protocol.Outbound {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]protocol.Outbound(nil), n.messages[id]...)
}

// Types returns the message types sent to id, in order
func (n *RecordingNotifier) Types(id model.ParticipantID) []protocol.MessageType {
	var types []protocol.MessageType
	for _, m := range n.Messages(id) {
		types = append(types, m.MessageType())
	}
	return types
}

// Last returns the most recent message sent to id, or nil
func (n *RecordingNotifier) Last(id model.ParticipantID) protocol.Outbound {
	msgs := n.Messages(id)
	if len(msgs) == 0 {
		return nil
	}
	return msgs[len(msgs)-1]
}

// Reset forgets all recorded messages
func (n *RecordingNotifier) Reset() {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.messages = make(map[model.ParticipantID][]protocol.Outbound)
}

// RecordingFinalizer captures sessions handed off on completion
type RecordingFinalizer struct {
	mu       sync.Mutex
	sessions []*model.Session
}

// Submit records sess
func (f *RecordingFinalizer) Submit(sess *model.Session) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, sess)
}

// Sessions returns every submitted session
func (f *RecordingFinalizer) Sessions() []*model.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*model.Session(nil), f.sessions...)
}

// StaticKeys is a KeyDirectory backed by a map
type StaticKeys map[model.ParticipantID]string

// PublicKey returns the key registered for id
func (k StaticKeys) PublicKey(id model.ParticipantID) string {
	return k[id]
}
