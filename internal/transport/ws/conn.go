package ws

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

var (
	// ErrClosed is returned when sending on a closed connection
	ErrClosed = errors.New("connection closed")
	// ErrBufferFull is returned when the peer is not draining its outbound buffer
	ErrBufferFull = errors.New("send buffer full")
)

// Conn is one websocket client. It satisfies registry.Channel.
type Conn struct {
	id     string
	ws     *websocket.Conn
	cfg    Config
	logger *slog.Logger

	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once

	connectedAt time.Time
}

func newConn(id string, ws *websocket.Conn, cfg Config, logger *slog.Logger) *Conn {
	return &Conn{
		id:          id,
		ws:          ws,
		cfg:         cfg,
		logger:      logger.With(slog.String("channel_id", id)),
		send:        make(chan []byte, cfg.SendBuffer),
		done:        make(chan struct{}),
		connectedAt: time.Now(),
	}
}

// ID returns the connection's unique id
func (c *Conn) ID() string {
	return c.id
}

// Send queues a frame for the write loop without blocking
func (c *Conn) Send(data []byte) error {
	select {
	case <-c.done:
		return ErrClosed
	default:
	}

	select {
	case c.send <- data:
		return nil
	case <-c.done:
		return ErrClosed
	default:
		return ErrBufferFull
	}
}

// Close stops the write loop, which flushes queued frames and closes the socket
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Done is closed once the connection is closing
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

func (c *Conn) readPump(onMessage func(data []byte)) {
	c.ws.SetReadLimit(c.cfg.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.cfg.PongWait))
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.logger.Warn("websocket read error", slog.String("error", err.Error()))
			}
			return
		}
		onMessage(data)
	}
}

func (c *Conn) writePump() {
	ticker := time.NewTicker(c.cfg.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				c.logger.Debug("websocket write failed", slog.String("error", err.Error()))
				_ = c.Close()
				return
			}

		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				_ = c.Close()
				return
			}

		case <-c.done:
			c.flush()
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

// flush writes whatever is still queued
func (c *Conn) flush() {
	for {
		select {
		case msg := <-c.send:
			if err := c.write(websocket.TextMessage, msg); err != nil {
				return
			}
		default:
			return
		}
	}
}

func (c *Conn) write(messageType int, data []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.cfg.WriteWait))
	return c.ws.WriteMessage(messageType, data)
}
