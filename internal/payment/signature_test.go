package payment

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"merchant_reference":"42","status":"paid"}`)
	secret := "webhook-secret"

	sig := Sign(body, secret)
	require.NoError(t, VerifySignature(body, sig, secret))

	// wrong secret
	assert.ErrorIs(t, VerifySignature(body, Sign(body, "other-secret"), secret), ErrInvalidSignature)
	// tampered body
	assert.ErrorIs(t, VerifySignature([]byte(`{"merchant_reference":"43","status":"paid"}`), sig, secret), ErrInvalidSignature)
	// empty and malformed headers
	assert.ErrorIs(t, VerifySignature(body, "", secret), ErrInvalidSignature)
	assert.ErrorIs(t, VerifySignature(body, "not-hex", secret), ErrInvalidSignature)
}
