package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// Output handles formatting output based on the configured format
type Output struct {
	format string
	w      io.Writer
	errW   io.Writer
}

// NewOutput creates a new Output formatter
func NewOutput(format string, w, errW io.Writer) *Output {
	return &Output{format: format, w: w, errW: errW}
}

// Print outputs data in the configured format
func (o *Output) Print(data any) {
	if o.format == "json" {
		o.printJSON(data)
	} else {
		o.printText(data)
	}
}

// PrintError outputs an error
func (o *Output) PrintError(err error) {
	if o.format == "json" {
		errData := map[string]any{
			"error": map[string]string{
				"message": err.Error(),
			},
		}
		data, _ := json.Marshal(errData)
		_, _ = fmt.Fprintln(o.errW, string(data))
	} else {
		_, _ = fmt.Fprintf(o.errW, "Error: %s\n", err)
	}
}

// PrintMessage outputs a simple message
func (o *Output) PrintMessage(msg string) {
	if o.format == "json" {
		data, _ := json.Marshal(map[string]string{"message": msg})
		_, _ = fmt.Fprintln(o.w, string(data))
	} else {
		_, _ = fmt.Fprintln(o.w, msg)
	}
}

func (o *Output) printJSON(data any) {
	enc := json.NewEncoder(o.w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(data)
}

func (o *Output) printText(data any) {
	switch v := data.(type) {
	case Session:
		o.printSession(v)
	case DigestVerification:
		o.printDigestVerification(v)
	case ProofCheck:
		o.printProofCheck(v)
	case KeyInfo:
		o.printKeyInfo(v)
	case SignedPayload:
		o.printSignedPayload(v)
	case HealthResult:
		o.printHealthResult(v)
	default:
		// Fallback to JSON for unknown types
		o.printJSON(data)
	}
}

// Participant response type (matches API)
type Participant struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Rating      int    `json:"rating"`
	Connected   bool   `json:"connected"`
}

// Move response type
type Move struct {
	Sequence       int       `json:"sequence"`
	Side           string    `json:"side"`
	From           string    `json:"from"`
	To             string    `json:"to"`
	Promotion      string    `json:"promotion,omitempty"`
	TerminalLabel  string    `json:"terminal_label,omitempty"`
	PositionDigest string    `json:"position_digest,omitempty"`
	Signature      string    `json:"signature,omitempty"`
	Verification   string    `json:"verification"`
	Timestamp      time.Time `json:"timestamp"`
}

// Result response type; Winner is nil for a draw
type Result struct {
	Winner *string `json:"winner"`
	Reason string  `json:"reason"`
}

// Session response type
type Session struct {
	ID          string      `json:"id"`
	Status      string      `json:"status"`
	White       Participant `json:"white"`
	Black       Participant `json:"black"`
	Turn        string      `json:"turn,omitempty"`
	Result      *Result     `json:"result"`
	Moves       []Move      `json:"moves"`
	Digest      string      `json:"digest,omitempty"`
	Archived    bool        `json:"archived"`
	CreatedAt   time.Time   `json:"created_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
}

// DigestVerification response type
type DigestVerification struct {
	SessionID    string `json:"session_id"`
	Outcome      string `json:"outcome"`
	ComputedRoot string `json:"computed_root,omitempty"`
}

// InclusionProof response type
type InclusionProof struct {
	SessionID string   `json:"session_id"`
	Sequence  int      `json:"sequence"`
	Leaf      string   `json:"leaf"`
	Proof     []string `json:"proof"`
	Root      string   `json:"root"`
}

// ProofCheck is an inclusion proof together with the local check of it
type ProofCheck struct {
	InclusionProof
	Valid bool `json:"valid"`
}

// HealthResult response type
type HealthResult struct {
	Status      string `json:"status"`
	Connections int    `json:"connections"`
	Queued      int    `json:"queued"`
	Sessions    int    `json:"sessions"`
}

// KeyInfo describes a signing key
type KeyInfo struct {
	KeyFile       string `json:"key_file"`
	PublicKey     string `json:"public_key"`
	AuthorizedKey string `json:"authorized_key"`
}

// SignedPayload is a canonical move payload and its signature
type SignedPayload struct {
	Payload   string `json:"payload"`
	Signature string `json:"signature"`
	PublicKey string `json:"public_key"`
}

func (o *Output) printf(format string, args ...any) {
	_, _ = fmt.Fprintf(o.w, format, args...)
}

func (o *Output) printSession(s Session) {
	o.printf("Session: %s\n", s.ID)
	o.printf("Status: %s\n", s.Status)
	if s.Archived {
		o.printf("Archived: yes\n")
	}
	o.printf("White: %s\n", participantLine(s.White))
	o.printf("Black: %s\n", participantLine(s.Black))
	if s.Turn != "" {
		o.printf("Turn: %s\n", s.Turn)
	}
	if s.Result != nil {
		o.printf("Result: %s\n", resultLine(s.Result))
	}
	if s.Digest != "" {
		o.printf("Digest: %s\n", s.Digest)
	}

	o.printf("Moves (%d):\n", len(s.Moves))
	for _, m := range s.Moves {
		label := ""
		if m.TerminalLabel != "" {
			label = " [" + m.TerminalLabel + "]"
		}
		o.printf("  %3d. %-5s %s%s%s  (%s)%s\n", m.Sequence, m.Side, m.From, m.To, m.Promotion, m.Verification, label)
	}
}

func participantLine(p Participant) string {
	name := p.ID
	if p.DisplayName != "" && p.DisplayName != p.ID {
		name = fmt.Sprintf("%s (%s)", p.DisplayName, p.ID)
	}
	presence := "connected"
	if !p.Connected {
		presence = "disconnected"
	}
	return fmt.Sprintf("%s rating %d, %s", name, p.Rating, presence)
}

func resultLine(r *Result) string {
	if r.Winner == nil {
		return "draw by " + r.Reason
	}
	return fmt.Sprintf("%s wins by %s", *r.Winner, r.Reason)
}

func (o *Output) printDigestVerification(d DigestVerification) {
	o.printf("Session: %s\n", d.SessionID)
	o.printf("Outcome: %s\n", d.Outcome)
	if d.ComputedRoot != "" {
		o.printf("Computed root: %s\n", d.ComputedRoot)
	}
}

func (o *Output) printProofCheck(p ProofCheck) {
	o.printf("Session: %s\n", p.SessionID)
	o.printf("Move: %d\n", p.Sequence)
	o.printf("Leaf: %s\n", p.Leaf)
	o.printf("Root: %s\n", p.Root)
	o.printf("Siblings (%d):\n", len(p.Proof))
	for _, s := range p.Proof {
		o.printf("  %s\n", s)
	}
	if p.Valid {
		o.printf("Proof: valid\n")
	} else {
		o.printf("Proof: INVALID\n")
	}
}

func (o *Output) printKeyInfo(k KeyInfo) {
	o.printf("Key file: %s\n", k.KeyFile)
	o.printf("Public key: %s\n", k.PublicKey)
	o.printf("Authorized key: %s\n", k.AuthorizedKey)
}

func (o *Output) printSignedPayload(s SignedPayload) {
	o.printf("Payload: %s\n", s.Payload)
	o.printf("Signature: %s\n", s.Signature)
	o.printf("Public key: %s\n", s.PublicKey)
}

func (o *Output) printHealthResult(h HealthResult) {
	o.printf("Status: %s\n", h.Status)
	o.printf("Connections: %d\n", h.Connections)
	o.printf("Queued: %d\n", h.Queued)
	o.printf("Sessions: %d\n", h.Sessions)
}
