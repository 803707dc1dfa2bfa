package e2e_test

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/mcoot/chesschain-go/internal/api"
	"github.com/mcoot/chesschain-go/internal/factory"
	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
	"github.com/mcoot/chesschain-go/internal/services/signature"
)

func findProjectRoot(t *testing.T) string {
	t.Helper()

	dir, err := os.Getwd()
	require.NoError(t, err)

	for {
		if _, err := os.Stat(filepath.Join(dir, "go.mod")); err == nil {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			t.Fatal("could not find project root (go.mod)")
		}
		dir = parent
	}
}

// testServer manages a real coordinator for e2e tests
type testServer struct {
	app      *factory.App
	addr     string
	shutdown func()
}

func startTestServer(t *testing.T, cfg factory.Config) *testServer {
	t.Helper()

	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
	}
	if cfg.SweepInterval == 0 {
		cfg.SweepInterval = 20 * time.Millisecond
	}
	app, err := factory.New(cfg)
	require.NoError(t, err)

	// Port 0 picks a free port
	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = "127.0.0.1:0"
	server := api.NewServer(app.Router(), serverCfg, cfg.Logger)
	server.RegisterOnShutdown(app.WebSocket.Shutdown)
	require.NoError(t, server.Listen())

	ctx, cancel := context.WithCancel(context.Background())
	runDone := make(chan struct{})
	go func() {
		defer close(runDone)
		_ = app.Run(ctx)
	}()

	// Start server
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			t.Logf("server error: %v", err)
		}
	}()

	// Wait for server to be ready
	serverURL := "http://" + server.Addr()
	waitForServer(t, serverURL+"/api/v1/health")

	return &testServer{
		app:  app,
		addr: serverURL,
		shutdown: func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			_ = server.Shutdown(shutdownCtx)
			cancel()
			<-runDone
			_ = app.Close()
		},
	}
}

func waitForServer(t *testing.T, url string) {
	t.Helper()

	client := &http.Client{Timeout: 100 * time.Millisecond}
	deadline := time.Now().Add(5 * time.Second)

	for time.Now().Before(deadline) {
		resp, err := client.Get(url)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(50 * time.Millisecond)
	}

	t.Fatal("server did not become ready in time")
}

// wsClient is a participant speaking the wire protocol directly
type wsClient struct {
	t         *testing.T
	conn      *websocket.Conn
	identity  string
	priv      ed25519.PrivateKey
	publicKey string
}

func dialClient(t *testing.T, serverURL, identity string) *wsClient {
	t.Helper()

	url := "ws" + strings.TrimPrefix(serverURL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	return &wsClient{
		t:         t,
		conn:      conn,
		identity:  identity,
		priv:      priv,
		publicKey: hex.EncodeToString(pub),
	}
}

func (c *wsClient) send(msg protocol.Inbound) {
	c.t.Helper()
	data, err := protocol.EncodeRequest(msg)
	require.NoError(c.t, err)
	require.NoError(c.t, c.conn.WriteMessage(websocket.TextMessage, data))
}

// authenticate declares the client's identity and public key, then confirms
// the binding with a ping round trip since authenticate has no reply
func (c *wsClient) authenticate() {
	c.t.Helper()
	c.send(protocol.Authenticate{Identity: c.identity, PublicKey: c.publicKey})
	c.send(protocol.Ping{})
	expect[*protocol.Pong](c)
}

func (c *wsClient) move(sessionID string, sequence int, from, to string, label model.TerminalLabel) {
	c.t.Helper()
	mv := model.Move{From: from, To: to}
	sig := signature.Sign(c.priv, signature.CanonicalMovePayload(model.SessionID(sessionID), sequence, mv))
	c.send(protocol.SubmitMove{
		SessionID:     sessionID,
		Move:          protocol.MoveFromModel(mv),
		TerminalLabel: string(label),
		Signature:     hex.EncodeToString(sig),
	})
}

// expect reads frames until one of type T arrives, skipping presence notices
// and failing on any other type
func expect[T protocol.Outbound](c *wsClient) T {
	c.t.Helper()
	require.NoError(c.t, c.conn.SetReadDeadline(time.Now().Add(5*time.Second)))
	for {
		_, data, err := c.conn.ReadMessage()
		require.NoError(c.t, err)

		msg, err := protocol.DecodeOutbound(data)
		require.NoError(c.t, err)

		if want, ok := msg.(T); ok {
			return want
		}
		if _, ok := msg.(*protocol.OpponentConnection); ok {
			continue
		}
		c.t.Fatalf("%s: unexpected frame %s", c.identity, data)
	}
}
