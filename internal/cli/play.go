package cli

import (
	"bufio"
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/mcoot/chesschain-go/internal/model"
	"github.com/mcoot/chesschain-go/internal/protocol"
	"github.com/mcoot/chesschain-go/internal/services/signature"
)

const playHelp = `Commands:
  move <from><to>[promotion] [terminal-label]   e.g. "move e2e4", "move e7e8q", "move d8h4 checkmate"
  resign
  draw                                          offer a draw
  accept | decline                              answer the opponent's draw offer
  state                                         fetch the full session state
  queue                                         join the queue for another game
  ping
  help
  quit`

func newPlayCmd() *cobra.Command {
	var identity string
	var unsigned bool

	cmd := &cobra.Command{
		Use:   "play",
		Short: "Join the matchmaking queue and play interactively",
		Long: `Connect to the coordinator over websocket, authenticate, join the queue and
relay moves typed on stdin. Moves are signed with the key in --key-file unless
--unsigned is given.

` + playHelp,
		RunE: func(cmd *cobra.Command, args []string) error {
			if identity == "" {
				return errors.New("--identity is required")
			}

			var key ed25519.PrivateKey
			if !unsigned {
				var err error
				key, err = cfg.LoadKey()
				if err != nil {
					return fmt.Errorf("%w (or pass --unsigned)", err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			conn, _, err := websocket.DefaultDialer.DialContext(ctx, client.WebSocketURL(), nil)
			if err != nil {
				return fmt.Errorf("connection failed: %w", err)
			}

			out := NewOutput(cfg.Output, cmd.OutOrStdout(), cmd.ErrOrStderr())
			p := newPlayer(conn, key, out)
			return p.run(ctx, identity, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&identity, "identity", os.Getenv("CCGAME_IDENTITY"), "Identity to authenticate as (env: CCGAME_IDENTITY)")
	cmd.Flags().BoolVar(&unsigned, "unsigned", false, "Send moves without signatures")

	return cmd
}

// command is one parsed line of interactive input
type command struct {
	name  string
	move  model.Move
	label model.TerminalLabel
}

// parseCommand parses a line typed at the play prompt
func parseCommand(line string) (command, error) {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return command{}, errors.New("empty command")
	}

	cmd := command{name: strings.ToLower(fields[0])}
	switch cmd.name {
	case "move", "m":
		cmd.name = "move"
		if len(fields) < 2 || len(fields) > 3 {
			return command{}, errors.New("usage: move <from><to>[promotion] [terminal-label]")
		}
		mv, err := parseMove(fields[1])
		if err != nil {
			return command{}, err
		}
		cmd.move = mv
		if len(fields) == 3 {
			cmd.label = model.TerminalLabel(fields[2])
			if err := cmd.label.Validate(); err != nil {
				return command{}, err
			}
		}
	case "resign", "draw", "accept", "decline", "state", "queue", "ping", "help", "quit":
		if len(fields) != 1 {
			return command{}, fmt.Errorf("%s takes no arguments", cmd.name)
		}
	default:
		return command{}, fmt.Errorf("unknown command %q (try 'help')", fields[0])
	}
	return cmd, nil
}

// parseMove parses coordinate notation such as "e2e4" or "e7e8q"
func parseMove(s string) (model.Move, error) {
	s = strings.ToLower(s)
	if len(s) != 4 && len(s) != 5 {
		return model.Move{}, fmt.Errorf("%w: %q is not in from-to notation", model.ErrMalformedMove, s)
	}
	mv := model.Move{From: s[0:2], To: s[2:4], Promotion: s[4:]}
	if err := mv.Validate(); err != nil {
		return model.Move{}, err
	}
	return mv, nil
}

// player drives one interactive websocket session
type player struct {
	conn *websocket.Conn
	key  ed25519.PrivateKey
	out  *Output

	printMu sync.Mutex

	mu        sync.Mutex
	sessionID string
	side      string
	moveCount int
}

func newPlayer(conn *websocket.Conn, key ed25519.PrivateKey, out *Output) *player {
	return &player{conn: conn, key: key, out: out}
}

// run authenticates, joins the queue and relays input until quit, EOF, ctx
// cancellation or the connection dropping
func (p *player) run(ctx context.Context, identity string, in io.Reader) error {
	defer func() { _ = p.conn.Close() }()

	auth := protocol.Authenticate{Identity: identity}
	if p.key != nil {
		auth.PublicKey = hex.EncodeToString(p.key.Public().(ed25519.PublicKey))
	}
	if err := p.send(auth); err != nil {
		return err
	}
	if err := p.send(protocol.JoinQueue{}); err != nil {
		return err
	}
	p.notice("Connected as %s, waiting for an opponent", identity)

	readErr := make(chan error, 1)
	go func() {
		readErr <- p.readLoop()
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			p.closeGracefully()
			return nil
		case err := <-readErr:
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				p.notice("Disconnected")
				return nil
			}
			return fmt.Errorf("connection lost: %w", err)
		case line, ok := <-lines:
			if !ok {
				p.closeGracefully()
				return nil
			}
			if strings.TrimSpace(line) == "" {
				continue
			}
			cmd, err := parseCommand(line)
			if err != nil {
				p.out.PrintError(err)
				continue
			}
			if cmd.name == "quit" {
				p.closeGracefully()
				return nil
			}
			if err := p.execute(cmd); err != nil {
				p.out.PrintError(err)
			}
		}
	}
}

func (p *player) execute(cmd command) error {
	if cmd.name == "help" {
		p.notice("%s", playHelp)
		return nil
	}
	if cmd.name == "ping" {
		return p.send(protocol.Ping{})
	}
	if cmd.name == "queue" {
		return p.send(protocol.JoinQueue{})
	}

	p.mu.Lock()
	sessionID, sequence := p.sessionID, p.moveCount
	p.mu.Unlock()
	if sessionID == "" {
		return errors.New("not in a session yet")
	}

	switch cmd.name {
	case "move":
		msg := protocol.SubmitMove{
			SessionID:     sessionID,
			Move:          protocol.MoveFromModel(cmd.move),
			TerminalLabel: string(cmd.label),
		}
		if p.key != nil {
			payload := signature.CanonicalMovePayload(model.SessionID(sessionID), sequence, cmd.move)
			msg.Signature = hex.EncodeToString(signature.Sign(p.key, payload))
		}
		return p.send(msg)
	case "resign":
		return p.send(protocol.Resign{SessionID: sessionID})
	case "draw":
		return p.send(protocol.OfferDraw{SessionID: sessionID})
	case "accept", "decline":
		return p.send(protocol.DrawResponse{SessionID: sessionID, Accepted: cmd.name == "accept"})
	case "state":
		return p.send(protocol.GetGameState{SessionID: sessionID})
	}
	return fmt.Errorf("unhandled command %q", cmd.name)
}

// send is only called from the run loop, so writes are never concurrent
func (p *player) send(msg protocol.Inbound) error {
	data, err := protocol.EncodeRequest(msg)
	if err != nil {
		return err
	}
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *player) closeGracefully() {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = p.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
}

func (p *player) readLoop() error {
	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return err
		}
		msg, err := protocol.DecodeOutbound(data)
		if err != nil {
			p.out.PrintError(err)
			continue
		}
		p.track(msg)
		p.show(data, msg)
	}
}

// track keeps the session, side and next sequence number current
func (p *player) track(msg protocol.Outbound) {
	p.mu.Lock()
	defer p.mu.Unlock()

	switch m := msg.(type) {
	case *protocol.MatchFound:
		p.sessionID, p.side, p.moveCount = m.SessionID, m.Side, 0
	case *protocol.MoveAccepted:
		p.moveCount = m.Sequence + 1
	case *protocol.OpponentMove:
		p.moveCount = m.Sequence + 1
	case *protocol.GameState:
		p.sessionID, p.side, p.moveCount = m.SessionID, m.Side, len(m.MoveLog)
	}
}

func (p *player) show(raw []byte, msg protocol.Outbound) {
	p.printMu.Lock()
	defer p.printMu.Unlock()

	if p.out.format == "json" {
		_, _ = fmt.Fprintln(p.out.w, string(raw))
		return
	}
	_, _ = fmt.Fprintln(p.out.w, describe(msg))
}

func (p *player) notice(format string, args ...any) {
	if p.out.format == "json" {
		return
	}
	p.printMu.Lock()
	defer p.printMu.Unlock()
	_, _ = fmt.Fprintf(p.out.w, format+"\n", args...)
}

// describe renders a coordinator message as one human readable line
func describe(msg protocol.Outbound) string {
	switch m := msg.(type) {
	case *protocol.QueueJoined:
		return "Queued for a match"
	case *protocol.MatchFound:
		return fmt.Sprintf("Match found: session %s, you play %s against %s (rating %d)",
			m.SessionID, m.Side, m.Opponent.ID, m.Opponent.Rating)
	case *protocol.OpponentMove:
		line := fmt.Sprintf("Opponent played %s%s%s", m.Move.From, m.Move.To, m.Move.Promotion)
		if m.TerminalLabel != "" {
			line += " (" + m.TerminalLabel + ")"
		}
		return line
	case *protocol.MoveAccepted:
		return fmt.Sprintf("Move %d accepted (%s)", m.Sequence, m.Verification)
	case *protocol.GameOver:
		return "Game over: " + wireResultLine(m.Result)
	case *protocol.ResignConfirmed:
		return "You resigned: " + wireResultLine(m.Result)
	case *protocol.DrawOffered:
		return "Opponent offers a draw (accept / decline)"
	case *protocol.DrawOfferSent:
		return "Draw offer sent"
	case *protocol.DrawDeclined:
		return "Draw offer declined"
	case *protocol.GameState:
		moves := make([]string, len(m.MoveLog))
		for i, e := range m.MoveLog {
			moves[i] = e.Move.From + e.Move.To + e.Move.Promotion
		}
		line := fmt.Sprintf("Session %s (%s), you play %s vs %s; %d moves [%s]",
			m.SessionID, m.Status, m.Side, m.Opponent.ID, len(m.MoveLog), strings.Join(moves, " "))
		if m.Turn != "" {
			line += "; " + m.Turn + " to move"
		}
		if m.Result != nil {
			line += "; " + wireResultLine(*m.Result)
		}
		if m.DrawOfferVisible {
			line += "; draw offered"
		}
		return line
	case *protocol.Error:
		line := fmt.Sprintf("Error %s: %s", m.Code, m.Message)
		if m.MoveCount != nil {
			line += fmt.Sprintf(" (you are %s, %d moves played)", m.Side, *m.MoveCount)
		}
		return line
	case *protocol.Pong:
		return "pong"
	case *protocol.OpponentConnection:
		if m.Connected {
			return "Opponent reconnected"
		}
		return "Opponent disconnected"
	}
	return string(msg.MessageType())
}

func wireResultLine(r protocol.Result) string {
	return resultLine(&Result{Winner: r.Winner, Reason: r.Reason})
}
