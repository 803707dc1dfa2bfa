package signature

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// VerifyRequest is the body of a remote verification call
type VerifyRequest struct {
	Payload   string `json:"payload"`   // base64
	Signature string `json:"signature"` // base64
	PublicKey string `json:"public_key"`
}

// VerifyResponse is the answer of a remote verification call
type VerifyResponse struct {
	Valid bool `json:"valid"`
}

// HTTPVerifier delegates verification to an external service that exposes
// POST {baseURL}/verify
type HTTPVerifier struct {
	baseURL    string
	httpClient *http.Client
}

// NewHTTPVerifier creates an HTTPVerifier with the given request timeout
func NewHTTPVerifier(baseURL string, timeout time.Duration) *HTTPVerifier {
	return &HTTPVerifier{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Verify posts the payload to the remote service. Transport failures and
// non-2xx responses are reported as ErrVerifierUnavailable.
func (v *HTTPVerifier) Verify(ctx context.Context, publicKey string, payload, sig []byte) (bool, error) {
	body, err := json.Marshal(VerifyRequest{
		Payload:   base64.StdEncoding.EncodeToString(payload),
		Signature: base64.StdEncoding.EncodeToString(sig),
		PublicKey: publicKey,
	})
	if err != nil {
		return false, fmt.Errorf("marshal verify request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.baseURL+"/verify", bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := v.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrVerifierUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return false, fmt.Errorf("%w: status %d", ErrVerifierUnavailable, resp.StatusCode)
	}

	var out VerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return false, fmt.Errorf("%w: decode response: %v", ErrVerifierUnavailable, err)
	}
	return out.Valid, nil
}
