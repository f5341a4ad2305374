package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
)

// VerifyGameMAC checks whether sigHex is a valid lowercase-hex
// HMAC-SHA256 of body, keyed by the calling game's shared secret. Used
// by the game-backend authentication middleware to validate the
// X-Pluto-Signature header against the literal request body bytes.
func VerifyGameMAC(secret, body []byte, sigHex string) bool {
	got, err := hex.DecodeString(sigHex)
	if err != nil {
		return false
	}
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	want := h.Sum(nil)
	return subtle.ConstantTimeCompare(got, want) == 1
}

// SignGameMAC computes the lowercase-hex HMAC-SHA256 a game backend
// would send in X-Pluto-Signature; exposed for tests and for any
// reference client.
func SignGameMAC(secret, body []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(body)
	return hex.EncodeToString(h.Sum(nil))
}
