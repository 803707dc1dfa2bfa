package registry

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
	"github.com/mcoot/chesschain-go/internal/testutil"
)

type fakeChannel struct {
	id      string
	mu      sync.Mutex
	frames  [][]byte
	sendErr error
	closed  bool
}

func (c *fakeChannel) ID() string { return c.id }

func (c *fakeChannel) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sendErr != nil {
		return c.sendErr
	}
	c.frames = append(c.frames, data)
	return nil
}

func (c *fakeChannel) Close() error {
	c.closed = true
	return nil
}

func (c *fakeChannel) types() []protocol.MessageType {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []protocol.MessageType
	for _, f := range c.frames {
		var env protocol.Envelope
		_ = json.Unmarshal(f, &env)
		out = append(out, env.Type)
	}
	return out
}

type RegistrySuite struct {
	suite.Suite
	registry *Registry
}

func TestRegistrySuite(t *testing.T) {
	suite.Run(t, new(RegistrySuite))
}

func (s *RegistrySuite) SetupTest() {
	s.registry = New(testutil.NopLogger())
}

func (s *RegistrySuite) TestBindAndSend() {
	ch := &fakeChannel{id: "c1"}
	s.registry.Bind("u1", ch, "")

	s.True(s.registry.IsConnected("u1"))
	s.Equal(1, s.registry.Count())

	s.registry.Send("u1", protocol.Pong{})
	s.Equal([]protocol.MessageType{protocol.TypePong}, ch.types())
}

func (s *RegistrySuite) TestSendToUnboundIsSilent() {
	s.NotPanics(func() {
		s.registry.Send("ghost", protocol.Pong{})
	})
}

func (s *RegistrySuite) TestSendFailureIsSilent() {
	ch := &fakeChannel{id: "c1", sendErr: errors.New("broken pipe")}
	s.registry.Bind("u1", ch, "")

	s.NotPanics(func() {
		s.registry.Send("u1", protocol.Pong{})
	})
	s.True(s.registry.IsConnected("u1"))
}

func (s *RegistrySuite) TestBindSupersedesWithoutClosing() {
	old := &fakeChannel{id: "c1"}
	fresh := &fakeChannel{id: "c2"}
	s.registry.Bind("u1", old, "")
	s.registry.Bind("u1", fresh, "")

	s.registry.Send("u1", protocol.Pong{})

	s.False(old.closed)
	s.Empty(old.types())
	s.Len(fresh.types(), 1)
	s.Equal(1, s.registry.Count())
}

func (s *RegistrySuite) TestUnbindIgnoresSupersededChannel() {
	old := &fakeChannel{id: "c1"}
	fresh := &fakeChannel{id: "c2"}
	var unbound []model.ParticipantID
	s.registry.OnUnbind(func(id model.ParticipantID) { unbound = append(unbound, id) })

	s.registry.Bind("u1", old, "")
	s.registry.Bind("u1", fresh, "")

	s.False(s.registry.Unbind("u1", old))
	s.True(s.registry.IsConnected("u1"))
	s.Empty(unbound)

	s.True(s.registry.Unbind("u1", fresh))
	s.False(s.registry.IsConnected("u1"))
	s.Equal([]model.ParticipantID{"u1"}, unbound)
}

func (s *RegistrySuite) TestBindListenerFires() {
	var bound []model.ParticipantID
	s.registry.OnBind(func(id model.ParticipantID) { bound = append(bound, id) })

	s.registry.Bind("u1", &fakeChannel{id: "c1"}, "")
	s.registry.Bind("u1", &fakeChannel{id: "c2"}, "")

	s.Equal([]model.ParticipantID{"u1", "u1"}, bound)
}

func (s *RegistrySuite) TestPublicKeySurvivesReconnect() {
	ch := &fakeChannel{id: "c1"}
	s.registry.Bind("u1", ch, "key-1")
	s.registry.Unbind("u1", ch)
	s.registry.Bind("u1", &fakeChannel{id: "c2"}, "")

	s.Equal("key-1", s.registry.PublicKey("u1"))

	s.registry.Bind("u1", &fakeChannel{id: "c3"}, "key-2")
	s.Equal("key-2", s.registry.PublicKey("u1"))
}

func TestRegistry_ConcurrentBindSend(t *testing.T) {
	r := New(testutil.NopLogger())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := model.ParticipantID("u")
			ch := &fakeChannel{id: string(rune('a' + i%26))}
			r.Bind(id, ch, "")
			r.Send(id, protocol.Pong{})
			r.Unbind(id, ch)
		}(i)
	}
	wg.Wait()
	require.LessOrEqual(t, r.Count(), 1)
	assert.GreaterOrEqual(t, r.Count(), 0)
}
