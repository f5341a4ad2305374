// Package token implements the session-token codec (C4): a self-contained
// header.body.tag capability the contract engine can verify without any
// session-store I/O.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pluto-hub/plutohub/internal/money"
)

// ErrInvalid is returned for any malformed token or failed MAC
// verification — deliberately undifferentiated so callers cannot probe
// which part of a token was wrong.
var ErrInvalid = errors.New("token: not a valid token")

const header = `{"alg":"HS256","typ":"JWT"}`

// Body is the payload minted at Execute and verified at Settle/Cancel.
type Body struct {
	SessionID  string       `json:"sessionId"`
	ContractID string       `json:"contractId"`
	PlayerIDs  []string     `json:"playerIds"`
	TotalPot   money.Amount `json:"totalPot"`
	ExpiresAt  time.Time    `json:"expiresAt"`
	IssuedAt   time.Time    `json:"iat"`
}

// Codec mints and verifies tokens with a process-wide HMAC-SHA256 secret.
type Codec struct {
	secret []byte
}

// NewCodec builds a Codec from a process-wide secret. The secret must be
// kept confidential; anyone holding it can mint valid Settle/Cancel
// capabilities.
func NewCodec(secret []byte) *Codec {
	return &Codec{secret: secret}
}

func b64(data []byte) string {
	return base64.RawURLEncoding.EncodeToString(data)
}

func unb64(s string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(s)
}

// Mint encodes body into a header.body.tag token string.
func (c *Codec) Mint(body Body) (string, error) {
	bodyJSON, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("token: marshal body: %w", err)
	}
	headerPart := b64([]byte(header))
	bodyPart := b64(bodyJSON)
	signed := headerPart + "." + bodyPart
	tag := c.mac(signed)
	return signed + "." + b64(tag), nil
}

// Verify decodes and authenticates a token, returning the decoded body iff
// the MAC verifies under constant-time comparison.
func (c *Codec) Verify(tokenStr string) (Body, error) {
	parts := strings.Split(tokenStr, ".")
	if len(parts) != 3 {
		return Body{}, ErrInvalid
	}
	signed := parts[0] + "." + parts[1]
	gotTag, err := unb64(parts[2])
	if err != nil {
		return Body{}, ErrInvalid
	}
	wantTag := c.mac(signed)
	if subtle.ConstantTimeCompare(gotTag, wantTag) != 1 {
		return Body{}, ErrInvalid
	}

	bodyBytes, err := unb64(parts[1])
	if err != nil {
		return Body{}, ErrInvalid
	}
	var body Body
	if err := json.Unmarshal(bodyBytes, &body); err != nil {
		return Body{}, ErrInvalid
	}
	return body, nil
}

func (c *Codec) mac(signed string) []byte {
	h := hmac.New(sha256.New, c.secret)
	h.Write([]byte(signed))
	return h.Sum(nil)
}
