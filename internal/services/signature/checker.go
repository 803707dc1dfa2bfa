package signature

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mcoot/chesschain-go/internal/model"
)

// Policy decides what happens when a signature cannot be checked
type Policy string

const (
	// PolicyPermissive accepts unchecked moves and flags them unverified
	PolicyPermissive Policy = "permissive"
	// PolicyStrict rejects unchecked moves
	PolicyStrict Policy = "strict"
)

// Checker applies the signature policy around a Verifier
type Checker struct {
	verifier Verifier
	policy   Policy
	logger   *slog.Logger
}

// NewChecker creates a Checker. A nil verifier makes every check unavailable.
func NewChecker(verifier Verifier, policy Policy, logger *slog.Logger) *Checker {
	return &Checker{
		verifier: verifier,
		policy:   policy,
		logger:   logger.With(slog.String("component", "signature")),
	}
}

// Policy returns the configured policy
func (c *Checker) Policy() Policy {
	return c.policy
}

// Check verifies sig over payload. A signature the verifier rejects, or one
// made against a malformed key, is always ErrInvalidSignature. A missing
// signature, missing key or unreachable verifier is resolved by policy.
func (c *Checker) Check(ctx context.Context, publicKey string, payload, sig []byte) (model.VerificationOutcome, error) {
	switch {
	case len(sig) == 0:
		return c.unavailable("missing signature")
	case publicKey == "":
		return c.unavailable("no declared public key")
	case c.verifier == nil:
		return c.unavailable("no verifier configured")
	}

	ok, err := c.verifier.Verify(ctx, publicKey, payload, sig)
	if err != nil {
		if errors.Is(err, ErrInvalidPublicKey) {
			return "", model.ErrInvalidSignature
		}
		c.logger.Warn("signature verification failed",
			slog.String("error", err.Error()))
		return c.unavailable("verifier error")
	}
	if !ok {
		return "", model.ErrInvalidSignature
	}
	return model.VerificationVerified, nil
}

func (c *Checker) unavailable(reason string) (model.VerificationOutcome, error) {
	if c.policy == PolicyStrict {
		c.logger.Info("rejecting unverifiable move",
			slog.String("reason", reason))
		return "", model.ErrInvalidSignature
	}
	c.logger.Debug("accepting unverified move",
		slog.String("reason", reason))
	return model.VerificationUnverified, nil
}
