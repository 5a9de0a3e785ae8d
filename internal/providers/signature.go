package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
)

// hmacSHA256 computes the HMAC-SHA256 of payload under secret.
func hmacSHA256(secret string, payload []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return mac.Sum(nil)
}

// verifyHMACHex checks a hex-encoded HMAC-SHA256 signature. The comparison is
// constant time over the full digest; no early exit on byte mismatch.
func verifyHMACHex(secret string, payload []byte, signature string) bool {
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(sig, hmacSHA256(secret, payload))
}

// verifyHMACBase64 checks a base64-encoded HMAC-SHA256 signature in constant
// time.
func verifyHMACBase64(secret string, payload []byte, signature string) bool {
	sig, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	return hmac.Equal(sig, hmacSHA256(secret, payload))
}

// constantTimeTokenEqual compares two shared-secret tokens in constant time,
// for providers that authenticate callbacks with a static token instead of a
// payload signature.
func constantTimeTokenEqual(expected, got string) bool {
	if len(expected) == 0 {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(got)) == 1
}
