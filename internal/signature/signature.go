// Package signature checks the X-Hub-Signature-256 header the Messenger
// Platform attaches to every webhook delivery.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// Header is the request header carrying the digest.
const Header = "X-Hub-Signature-256"

const prefix = "sha256="

// Verify reports whether header holds the HMAC-SHA256 of body keyed with
// secret. body must be the exact bytes received on the wire.
// An empty secret never verifies.
func Verify(secret string, body []byte, header string) bool {
	if secret == "" {
		return false
	}
	header = strings.TrimSpace(header)
	if !strings.HasPrefix(header, prefix) {
		return false
	}
	got := strings.ToLower(strings.TrimPrefix(header, prefix))

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	expected := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(got), []byte(expected))
}

// Sign returns the header value the platform would send for body.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return prefix + hex.EncodeToString(mac.Sum(nil))
}
