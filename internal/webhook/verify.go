package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
)

// ErrNoSecret marks a missing webhook secret. This is a deployment problem,
// not a bad request, and handlers must answer 500 rather than 401 for it.
var ErrNoSecret = errors.New("webhook secret is not configured")

// Signature reproduces the provider's scheme: HMAC-SHA256 over
// "v0:<timestamp>:<body>" with the shared secret, rendered as "v0=<hex>".
func Signature(rawBody []byte, timestamp, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "v0:%s:", timestamp)
	mac.Write(rawBody)
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// Verify checks an inbound webhook signature against the shared secret using
// a constant-time comparison. It returns false on any malformed input and
// never panics; only a missing secret is reported as an error so callers can
// distinguish misconfiguration from a forged request.
func Verify(rawBody []byte, signature, timestamp, secret string) (bool, error) {
	if secret == "" {
		return false, ErrNoSecret
	}
	if signature == "" || timestamp == "" {
		return false, nil
	}
	expected := Signature(rawBody, timestamp, secret)
	return hmac.Equal([]byte(expected), []byte(signature)), nil
}

// ChallengeResponse answers the provider's one-time endpoint-ownership
// challenge: encryptedToken = hex(HMAC-SHA256(secret, plainToken)).
type ChallengeResponse struct {
	PlainToken     string `json:"plainToken"`
	EncryptedToken string `json:"encryptedToken"`
}

func Challenge(plainToken, secret string) (ChallengeResponse, error) {
	if secret == "" {
		return ChallengeResponse{}, ErrNoSecret
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(plainToken))
	return ChallengeResponse{
		PlainToken:     plainToken,
		EncryptedToken: hex.EncodeToString(mac.Sum(nil)),
	}, nil
}
