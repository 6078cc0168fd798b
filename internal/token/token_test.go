package token

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testCodec() *Codec {
	return NewCodec([]byte("0123456789abcdef0123456789abcdef"))
}

func TestActionTokenRoundTrip(t *testing.T) {
	c := testCodec()

	tok, err := c.EncodeAction("aabbccddeeff00112233445566778899", ActionConfirm, MethodGet)
	require.NoError(t, err)
	require.NotEmpty(t, tok)

	secret, err := c.DecodeAction(tok, ActionConfirm, MethodGet)
	require.NoError(t, err)
	assert.Equal(t, "aabbccddeeff00112233445566778899", secret)
}

func TestActionTokenScopeEnforced(t *testing.T) {
	c := testCodec()

	tok, err := c.EncodeAction("s3cret", ActionConfirm, MethodPost)
	require.NoError(t, err)

	// Confirm token presented to the cancel endpoint.
	_, err = c.DecodeAction(tok, ActionCancel, MethodPost)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// POST token replayed as GET.
	_, err = c.DecodeAction(tok, ActionConfirm, MethodGet)
	assert.ErrorIs(t, err, ErrInvalidToken)

	// Matching scope still passes.
	_, err = c.DecodeAction(tok, ActionConfirm, MethodPost)
	assert.NoError(t, err)
}

func TestActionTokenTamperedSignature(t *testing.T) {
	c := testCodec()

	tok, err := c.EncodeAction("s3cret", ActionCancel, MethodGet)
	require.NoError(t, err)

	decoded, err := base64.RawURLEncoding.DecodeString(tok)
	require.NoError(t, err)

	// Flip one byte inside the signature segment (the tail of the buffer).
	decoded[len(decoded)-1] ^= 0x01
	tampered := base64.RawURLEncoding.EncodeToString(decoded)

	_, err = c.DecodeAction(tampered, ActionCancel, MethodGet)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActionTokenWrongKey(t *testing.T) {
	tok, err := testCodec().EncodeAction("s3cret", ActionCancel, MethodGet)
	require.NoError(t, err)

	other := NewCodec([]byte("another-key-entirely"))
	_, err = other.DecodeAction(tok, ActionCancel, MethodGet)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestActionTokenGarbage(t *testing.T) {
	c := testCodec()

	for _, tok := range []string{"", "not base64 !!", base64.RawURLEncoding.EncodeToString([]byte("no-separator"))} {
		_, err := c.DecodeAction(tok, ActionConfirm, MethodGet)
		assert.ErrorIs(t, err, ErrInvalidToken, "token %q", tok)
	}
}

func TestFormTokenExpiryWindow(t *testing.T) {
	c := testCodec()
	now := time.Now()

	fresh, err := c.EncodeForm(now.Add(-3599 * time.Second))
	require.NoError(t, err)
	assert.NoError(t, c.VerifyForm(fresh, now))

	stale, err := c.EncodeForm(now.Add(-3601 * time.Second))
	require.NoError(t, err)
	assert.ErrorIs(t, c.VerifyForm(stale, now), ErrInvalidToken)
}

func TestFormTokenFromTheFuture(t *testing.T) {
	c := testCodec()
	now := time.Now()

	// Within leeway: accepted.
	tok, err := c.EncodeForm(now.Add(5 * time.Second))
	require.NoError(t, err)
	assert.NoError(t, c.VerifyForm(tok, now))

	// Beyond leeway: rejected.
	tok, err = c.EncodeForm(now.Add(time.Minute))
	require.NoError(t, err)
	assert.ErrorIs(t, c.VerifyForm(tok, now), ErrInvalidToken)
}

func TestFormTokenNotValidAsActionToken(t *testing.T) {
	c := testCodec()

	tok, err := c.EncodeForm(time.Now())
	require.NoError(t, err)

	_, err = c.DecodeAction(tok, ActionConfirm, MethodGet)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestNewReservationSecret(t *testing.T) {
	a, err := NewReservationSecret()
	require.NoError(t, err)
	b, err := NewReservationSecret()
	require.NoError(t, err)

	assert.Len(t, a, 32) // 16 bytes hex encoded
	assert.NotEqual(t, a, b)
}
