package api

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContentSanitizer_Clean(t *testing.T) {
	sanitizer := NewContentSanitizer(20)

	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"plain", "hello", "hello", false},
		{"trimmed", "  hi there \n", "hi there", false},
		{"markup stripped", "hello <b>world</b>", "hello world", false},
		{"script removed", "<script>alert(1)</script>ok", "ok", false},
		{"ampersand kept", "fish & chips", "fish & chips", false},
		{"nfc", "cafe\u0301", "caf\u00e9", false},
		{"zero width stripped", "a\u200Bb", "ab", false},
		{"empty", "", "", true},
		{"whitespace only", "   \t ", "", true},
		{"markup only", "<img src=x>", "", true},
		{"too long", strings.Repeat("x", 21), "", true},
		{"bidi override", "a\u202Eb", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sanitizer.Clean(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidContent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestContentSanitizer_LimitCountsCharacters(t *testing.T) {
	sanitizer := NewContentSanitizer(3)

	got, err := sanitizer.Clean("日本語")
	require.NoError(t, err)
	assert.Equal(t, "日本語", got)

	_, err = sanitizer.Clean("日本語!")
	assert.ErrorIs(t, err, ErrInvalidContent)
}
