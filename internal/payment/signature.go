package payment

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
)

// ErrInvalidSignature is returned when a webhook body does not carry a
// valid signature.  Handlers translate it into HTTP 401; such deliveries
// never reach the state machine.
var ErrInvalidSignature = errors.New("invalid webhook signature")

// Sign computes the hex-encoded HMAC-SHA256 of body under the shared
// secret.  The checkout provider sends this value in the X-Signature
// header of every webhook delivery.
func Sign(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks the provider's signature over the raw request
// body.  The comparison is constant time.  An empty header or a malformed
// hex string fails like any other mismatch.
func VerifySignature(body []byte, signature, secret string) error {
	want, err := hex.DecodeString(signature)
	if err != nil || len(want) == 0 {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(want, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}
