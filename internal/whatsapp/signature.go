package whatsapp

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
)

const SignatureHeader = "X-Hub-Signature-256"

var ErrInvalidSignature = errors.New("invalid webhook signature")

// VerifySignature checks the sha256 HMAC Meta computes over the raw body with
// the app secret.
func VerifySignature(body []byte, header, appSecret string) error {
	if appSecret == "" {
		return errors.New("app secret not configured")
	}
	sig := strings.TrimSpace(header)
	if !strings.HasPrefix(sig, "sha256=") {
		return ErrInvalidSignature
	}
	provided, err := hex.DecodeString(strings.TrimPrefix(sig, "sha256="))
	if err != nil {
		return ErrInvalidSignature
	}

	mac := hmac.New(sha256.New, []byte(appSecret))
	_, _ = mac.Write(body)
	if !hmac.Equal(provided, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Sign returns the header value Meta would send for body. Used by tests and tooling.
func Sign(body []byte, appSecret string) string {
	mac := hmac.New(sha256.New, []byte(appSecret))
	_, _ = mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}
