package providers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
)

func signHex(secret string, payload []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return hex.EncodeToString(mac.Sum(nil))
}

func TestVerifyHMACHex(t *testing.T) {
	payload := []byte(`{"event":"payment.captured"}`)
	sig := signHex("whsec_test", payload)

	assert.True(t, verifyHMACHex("whsec_test", payload, sig))
	assert.False(t, verifyHMACHex("whsec_other", payload, sig))
	assert.False(t, verifyHMACHex("whsec_test", []byte(`tampered`), sig))
	assert.False(t, verifyHMACHex("whsec_test", payload, "not-hex!"))
	assert.False(t, verifyHMACHex("whsec_test", payload, ""))

	// A signature that is correct except for its final byte must be rejected
	// just like any other mismatch.
	almost := []byte(sig)
	if almost[len(almost)-1] == '0' {
		almost[len(almost)-1] = '1'
	} else {
		almost[len(almost)-1] = '0'
	}
	assert.False(t, verifyHMACHex("whsec_test", payload, string(almost)))
}

func TestVerifyHMACBase64(t *testing.T) {
	payload := []byte(`{"event":"payment.paid"}`)
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write(payload)
	sig := base64.StdEncoding.EncodeToString(mac.Sum(nil))

	assert.True(t, verifyHMACBase64("whsec_test", payload, sig))
	assert.False(t, verifyHMACBase64("whsec_other", payload, sig))
	assert.False(t, verifyHMACBase64("whsec_test", payload, "%%%"))
}

func TestConstantTimeTokenEqual(t *testing.T) {
	assert.True(t, constantTimeTokenEqual("token-a", "token-a"))
	assert.False(t, constantTimeTokenEqual("token-a", "token-b"))
	// An unconfigured secret must never accept anything, including emptiness.
	assert.False(t, constantTimeTokenEqual("", ""))
	assert.False(t, constantTimeTokenEqual("", "anything"))
}
