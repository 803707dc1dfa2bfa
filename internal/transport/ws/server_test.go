package ws

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/mcoot/chesschain-go/internal/dependencies/mocks"
	"github.com/mcoot/chesschain-go/internal/registry"
	"github.com/mcoot/chesschain-go/internal/testutil"
)

// echoHandler replies to every frame with the same bytes and records closes
type echoHandler struct {
	mu     sync.Mutex
	chans  []registry.Channel
	closed []string
}

func (h *echoHandler) HandleMessage(_ context.Context, ch registry.Channel, data []byte) {
	h.mu.Lock()
	h.chans = append(h.chans, ch)
	h.mu.Unlock()
	_ = ch.Send(data)
}

func (h *echoHandler) HandleClose(ch registry.Channel) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.closed = append(h.closed, ch.ID())
}

func (h *echoHandler) closedIDs() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.closed...)
}

func (h *echoHandler) lastChannel() registry.Channel {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.chans) == 0 {
		return nil
	}
	return h.chans[len(h.chans)-1]
}

type ServerSuite struct {
	suite.Suite
	handler *echoHandler
	random  *mocks.MockRandom
	server  *Server
	http    *httptest.Server
}

func TestServerSuite(t *testing.T) {
	suite.Run(t, new(ServerSuite))
}

func (s *ServerSuite) SetupTest() {
	s.handler = &echoHandler{}
	s.random = mocks.NewMockRandom()
	s.server = NewServer(s.handler, s.random, DefaultConfig(), testutil.NopLogger())
	s.http = httptest.NewServer(s.server)
}

func (s *ServerSuite) TearDownTest() {
	s.server.Shutdown()
	s.http.Close()
}

func (s *ServerSuite) dial() *websocket.Conn {
	url := "ws" + strings.TrimPrefix(s.http.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	s.Require().NoError(err)
	return conn
}

func (s *ServerSuite) TestEcho() {
	conn := s.dial()
	defer conn.Close()

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"ping"}`)))

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	s.Require().NoError(err)
	s.Equal(`{"type":"ping"}`, string(data))
}

func (s *ServerSuite) TestConnectionIDsComeFromRandom() {
	s.random.QueueID("conn-a")
	conn := s.dial()
	defer conn.Close()

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("x")))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	s.Require().NoError(err)

	s.Equal("conn-a", s.handler.lastChannel().ID())
}

func (s *ServerSuite) TestClientCloseNotifiesHandler() {
	s.random.QueueID("conn-b")
	conn := s.dial()
	s.Eventually(func() bool { return s.server.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	conn.Close()

	s.Eventually(func() bool { return len(s.handler.closedIDs()) == 1 }, 2*time.Second, 5*time.Millisecond)
	s.Equal([]string{"conn-b"}, s.handler.closedIDs())
	s.Eventually(func() bool { return s.server.ConnectionCount() == 0 }, time.Second, 5*time.Millisecond)
}

func (s *ServerSuite) TestSendAfterCloseFails() {
	conn := s.dial()
	defer conn.Close()

	s.Require().NoError(conn.WriteMessage(websocket.TextMessage, []byte("x")))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	s.Require().NoError(err)

	ch := s.handler.lastChannel()
	s.Require().NoError(ch.Close())
	s.ErrorIs(ch.Send([]byte("late")), ErrClosed)
	s.NoError(ch.Close(), "close is idempotent")
}

func (s *ServerSuite) TestShutdownClosesConnections() {
	conn := s.dial()
	defer conn.Close()
	s.Eventually(func() bool { return s.server.ConnectionCount() == 1 }, time.Second, 5*time.Millisecond)

	s.server.Shutdown()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err := conn.ReadMessage()
	s.True(websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
	s.Eventually(func() bool { return len(s.handler.closedIDs()) == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestConn_SendBufferFull(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendBuffer = 1
	c := newConn("c", nil, cfg, testutil.NopLogger())

	require.NoError(t, c.Send([]byte("a")))
	assert.ErrorIs(t, c.Send([]byte("b")), ErrBufferFull)
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{name: "no origin header", allowed: []string{"https://chess.example"}, origin: "", want: true},
		{name: "full origin", allowed: []string{"https://chess.example"}, origin: "https://chess.example", want: true},
		{name: "trailing slash and case", allowed: []string{"HTTPS://Chess.Example/"}, origin: "https://chess.example", want: true},
		{name: "scheme mismatch", allowed: []string{"https://chess.example"}, origin: "http://chess.example", want: false},
		{name: "bare host", allowed: []string{"localhost:3000"}, origin: "http://localhost:3000", want: true},
		{name: "other origin", allowed: []string{"https://chess.example"}, origin: "https://evil.example", want: false},
		{name: "wildcard", allowed: []string{"*"}, origin: "https://evil.example", want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				r.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(r))
		})
	}

	assert.Nil(t, originChecker(nil), "empty list falls back to the same-origin check")
}

func dialWithOrigin(t *testing.T, cfg Config, origin string) (*http.Response, error) {
	t.Helper()
	server := NewServer(&echoHandler{}, mocks.NewMockRandom(), cfg, testutil.NopLogger())
	ts := httptest.NewServer(server)
	t.Cleanup(func() {
		server.Shutdown()
		ts.Close()
	})

	header := http.Header{}
	header.Set("Origin", origin)
	conn, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(ts.URL, "http"), header)
	if conn != nil {
		_ = conn.Close()
	}
	return resp, err
}

func TestServer_RejectsCrossOriginByDefault(t *testing.T) {
	resp, err := dialWithOrigin(t, DefaultConfig(), "https://evil.example")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestServer_AllowedOrigins(t *testing.T) {
	cfg := DefaultConfig()
	cfg.AllowedOrigins = []string{"https://chess.example"}

	_, err := dialWithOrigin(t, cfg, "https://chess.example")
	require.NoError(t, err)

	resp, err := dialWithOrigin(t, cfg, "https://evil.example")
	require.ErrorIs(t, err, websocket.ErrBadHandshake)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}
