// Package token implements the two bearer-token kinds exchanged in links and
// form fields: non-expiring action tokens that authorize exactly one action on
// exactly one reservation, and short-lived form tokens that prove the
// submitter recently loaded the booking form.
//
// Both kinds share one wire format: the JSON payload is signed with
// HMAC-SHA256, the hex signature is appended after a ':' separator and the
// whole string is base64url encoded.  Verification splits on the final ':'
// (hex contains no colon), recomputes the HMAC and compares in constant time.
// Every failure mode collapses into ErrInvalidToken so callers cannot tell a
// forged token from a malformed or expired one.
package token

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// ErrInvalidToken is the uniform failure for any token that does not verify:
// undecodable, unsplittable, bad signature, wrong version, wrong scope or (for
// form tokens) expired.  The sub-cause is deliberately not distinguishable.
var ErrInvalidToken = errors.New("invalid token")

// Action identifies the state transition a token authorizes.
type Action string

// Method identifies the HTTP method a token is bound to.  A token minted for
// the GET landing page cannot be replayed against the POST endpoint.
type Method string

const (
	ActionConfirm Action = "confirm"
	ActionCancel  Action = "cancel"

	MethodGet  Method = "get"
	MethodPost Method = "post"
)

// FormTokenTTL is how long a form token stays valid after issuance.
const FormTokenTTL = time.Hour

// formTokenLeeway absorbs small clock drift between the issuing and the
// verifying process.
const formTokenLeeway = 10 * time.Second

// Codec signs and verifies tokens with a server-held secret key.
type Codec struct {
	key []byte
}

// NewCodec returns a Codec signing with the given key.  The key must be kept
// secret; anyone holding it can mint valid tokens.
func NewCodec(key []byte) *Codec { return &Codec{key: key} }

// actionPayload is the versioned signed schema of an action token.
type actionPayload struct {
	V      int    `json:"v"`
	Secret string `json:"secret"`
	Action Action `json:"action"`
	Method Method `json:"method"`
}

// formPayload is the versioned signed schema of a form token.
type formPayload struct {
	V        int    `json:"v"`
	IssuedAt int64  `json:"iat"`
	Nonce    string `json:"nonce"`
}

const payloadVersion = 1

// EncodeAction mints an action token binding the reservation secret to one
// action and one HTTP method.
func (c *Codec) EncodeAction(secret string, action Action, method Method) (string, error) {
	return c.seal(actionPayload{V: payloadVersion, Secret: secret, Action: action, Method: method})
}

// DecodeAction verifies an action token and enforces that its scope matches
// the endpoint invoking verification.  It returns the reservation secret on
// success and ErrInvalidToken on any failure, including scope mismatch.
func (c *Codec) DecodeAction(tok string, action Action, method Method) (string, error) {
	raw, err := c.open(tok)
	if err != nil {
		return "", err
	}
	var p actionPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return "", ErrInvalidToken
	}
	if p.V != payloadVersion || p.Secret == "" {
		return "", ErrInvalidToken
	}
	if p.Action != action || p.Method != method {
		return "", ErrInvalidToken
	}
	return p.Secret, nil
}

// EncodeForm mints a form token stamped with the current time and a random
// nonce.
func (c *Codec) EncodeForm(now time.Time) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	return c.seal(formPayload{V: payloadVersion, IssuedAt: now.Unix(), Nonce: hex.EncodeToString(nonce)})
}

// VerifyForm checks a form token's signature and that it was issued within
// FormTokenTTL of now, allowing a small leeway for clock drift.
func (c *Codec) VerifyForm(tok string, now time.Time) error {
	raw, err := c.open(tok)
	if err != nil {
		return err
	}
	var p formPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		return ErrInvalidToken
	}
	if p.V != payloadVersion || p.Nonce == "" {
		return ErrInvalidToken
	}
	issued := time.Unix(p.IssuedAt, 0)
	if issued.After(now.Add(formTokenLeeway)) {
		return ErrInvalidToken
	}
	if now.Sub(issued) > FormTokenTTL {
		return ErrInvalidToken
	}
	return nil
}

// seal serializes the payload, signs it and encodes payload:hexsig as a
// URL-safe string.
func (c *Codec) seal(payload any) (string, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}
	sig := c.sign(raw)
	buf := make([]byte, 0, len(raw)+1+len(sig))
	buf = append(buf, raw...)
	buf = append(buf, ':')
	buf = append(buf, sig...)
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// open decodes a token, splits payload from signature at the final ':' and
// verifies the HMAC in constant time.  It returns the raw payload bytes.
func (c *Codec) open(tok string) ([]byte, error) {
	decoded, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		return nil, ErrInvalidToken
	}
	i := strings.LastIndexByte(string(decoded), ':')
	if i <= 0 || i == len(decoded)-1 {
		return nil, ErrInvalidToken
	}
	raw, sig := decoded[:i], decoded[i+1:]
	if !hmac.Equal(sig, c.sign(raw)) {
		return nil, ErrInvalidToken
	}
	return raw, nil
}

// sign returns the hex HMAC-SHA256 of raw under the codec key.
func (c *Codec) sign(raw []byte) []byte {
	mac := hmac.New(sha256.New, c.key)
	mac.Write(raw)
	return []byte(hex.EncodeToString(mac.Sum(nil)))
}

// NewReservationSecret mints the unguessable per-reservation secret: 16 bytes
// of cryptographically random data, hex encoded.  Generated once at creation
// and never regenerated.
func NewReservationSecret() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
