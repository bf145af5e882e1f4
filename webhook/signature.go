package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignaturePrefix precedes the hex digest in the signature header value.
const SignaturePrefix = "sha256="

// Sign computes the delivery signature for a payload: HMAC-SHA256 over
// "{timestamp}.{payload}" with the webhook secret as key, rendered as
// "sha256=<hex>". The timestamp is Unix seconds and must match the
// X-Webhook-Timestamp header sent with the payload.
//
// Sign is a pure function: the same (secret, timestamp, payload) always
// yields the same signature string.
func Sign(secret string, timestamp int64, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.", timestamp)
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether signature matches the payload for the given
// secret and timestamp. The comparison is constant-time. Receivers should
// additionally bound the timestamp's age to their own tolerance.
func Verify(secret string, timestamp int64, payload []byte, signature string) bool {
	expected := Sign(secret, timestamp, payload)
	return hmac.Equal([]byte(expected), []byte(signature))
}
