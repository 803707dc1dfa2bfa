package request

// VerifyDigestRequest is the request body for checking a session's recorded digest
type VerifyDigestRequest struct {
	// Root is the hex digest to compare against. Archived sessions default to
	// the digest stored at archive time.
	Root string `json:"root,omitempty"`
}

// SignedMove identifies the move whose canonical payload was signed
type SignedMove struct {
	SessionID string `json:"session_id"`
	Sequence  int    `json:"sequence"`
	From      string `json:"from"`
	To        string `json:"to"`
	Promotion string `json:"promotion,omitempty"`
}

// VerifySignatureRequest is the request body for verifying a signature. It
// extends the remote verifier contract (base64 payload) with Move, from which
// the canonical payload is built; Move takes precedence.
type VerifySignatureRequest struct {
	Payload   string      `json:"payload,omitempty"` // base64
	Move      *SignedMove `json:"move,omitempty"`
	Signature string      `json:"signature"`
	PublicKey string      `json:"public_key"`
}
