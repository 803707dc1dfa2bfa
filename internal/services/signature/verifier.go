package signature

import (
	"context"
	"crypto/ed25519"
	"errors"
)

// ErrVerifierUnavailable means the verification capability could not give an answer
var ErrVerifierUnavailable = errors.New("signature verifier unavailable")

// Verifier answers whether sig is a valid signature of payload under publicKey
type Verifier interface {
	Verify(ctx context.Context, publicKey string, payload, sig []byte) (bool, error)
}

// Ed25519Verifier verifies signatures in process
type Ed25519Verifier struct{}

// NewEd25519Verifier creates an Ed25519Verifier
func NewEd25519Verifier() *Ed25519Verifier {
	return &Ed25519Verifier{}
}

// Verify parses the key and checks the signature
func (v *Ed25519Verifier) Verify(ctx context.Context, publicKey string, payload, sig []byte) (bool, error) {
	key, err := ParsePublicKey(publicKey)
	if err != nil {
		return false, err
	}
	if len(sig) != ed25519.SignatureSize {
		return false, nil
	}
	return ed25519.Verify(key, payload, sig), nil
}

// Sign signs payload with priv. Used by clients and tests.
func Sign(priv ed25519.PrivateKey, payload []byte) []byte {
	return ed25519.Sign(priv, payload)
}
