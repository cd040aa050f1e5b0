package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"strings"
)

const signaturePrefix = "sha256="

// errVerification is the only verification error; the server logs the detail.
var errVerification = errors.New("hook verification failed")

func bodyMAC(body []byte, secret string) []byte {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write(body)
	return m.Sum(nil)
}

// verifyHMACSignature checks signature against an HMAC-SHA256 of body.
// Both "sha256=<hex>" and bare "<hex>" are accepted.
func verifyHMACSignature(body []byte, signature, secret string) error {
	if secret == "" {
		return errVerification
	}
	presented, err := hex.DecodeString(strings.TrimPrefix(strings.TrimSpace(signature), signaturePrefix))
	if err != nil || len(presented) == 0 {
		return errVerification
	}
	if !hmac.Equal(presented, bodyMAC(body, secret)) {
		return errVerification
	}
	return nil
}

// SignBody returns the signature header value a sender should attach to body.
func SignBody(body []byte, secret string) string {
	return signaturePrefix + hex.EncodeToString(bodyMAC(body, secret))
}

func tokenMatches(presented, expected string) bool {
	if presented == "" || expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(expected)) == 1
}
