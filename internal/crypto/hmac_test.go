package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateHMACSignature(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		secret  string
	}{
		{"registration body", []byte(`{"userId":"bob"}`), "hook-secret"},
		{"empty payload", []byte{}, "hook-secret"},
		{"unicode payload", []byte("café night"), "hook-secret"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sig := GenerateHMACSignature(tt.payload, tt.secret)
			assert.True(t, strings.HasPrefix(sig, SignaturePrefix))
			assert.Len(t, sig, len(SignaturePrefix)+64)
			assert.Equal(t, sig, GenerateHMACSignature(tt.payload, tt.secret))
		})
	}
}

func TestVerifyHMACSignature(t *testing.T) {
	payload := []byte(`{"userId":"bob"}`)
	secret := "hook-secret"
	valid := GenerateHMACSignature(payload, secret)

	tests := []struct {
		name      string
		payload   []byte
		signature string
		secret    string
		want      bool
	}{
		{"valid", payload, valid, secret, true},
		{"uppercase hex", payload, SignaturePrefix + strings.ToUpper(strings.TrimPrefix(valid, SignaturePrefix)), secret, true},
		{"tampered payload", []byte(`{"userId":"mal"}`), valid, secret, false},
		{"wrong secret", payload, valid, "other", false},
		{"missing prefix", payload, strings.TrimPrefix(valid, SignaturePrefix), secret, false},
		{"empty signature", payload, "", secret, false},
		{"empty secret", payload, GenerateHMACSignature(payload, ""), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, VerifyHMACSignature(tt.payload, tt.signature, tt.secret))
		})
	}
}
