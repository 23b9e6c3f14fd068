// Package crypto signs and verifies the bodies of internal hook calls
package crypto

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// SignaturePrefix precedes the hex digest in signature headers
const SignaturePrefix = "sha256="

// GenerateHMACSignature returns "sha256=<hex>" for payload under secret
func GenerateHMACSignature(payload []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(payload)
	return SignaturePrefix + hex.EncodeToString(mac.Sum(nil))
}

// VerifyHMACSignature compares in constant time. An empty secret never verifies.
func VerifyHMACSignature(payload []byte, signature string, secret string) bool {
	if secret == "" || !strings.HasPrefix(signature, SignaturePrefix) {
		return false
	}
	expected := GenerateHMACSignature(payload, secret)
	return hmac.Equal([]byte(strings.ToLower(signature)), []byte(expected))
}
