package api

import (
	"fmt"
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/eventhub/eventchat/internal/unicodecheck"
)

// ContentSanitizer turns a raw chat body into the stored form: NFC text with
// markup and invisible runes removed, trimmed and length-checked.
type ContentSanitizer struct {
	policy    *bluemonday.Policy
	maxLength int
}

// NewContentSanitizer creates a sanitizer that accepts bodies up to maxLength characters
func NewContentSanitizer(maxLength int) *ContentSanitizer {
	return &ContentSanitizer{
		policy:    bluemonday.StrictPolicy(),
		maxLength: maxLength,
	}
}

// Clean returns the stored form of raw or ErrInvalidContent
func (s *ContentSanitizer) Clean(raw string) (string, error) {
	text := unicodecheck.Normalize(strings.TrimSpace(raw))
	if err := unicodecheck.Validate(text, 0); err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidContent, err)
	}

	// StrictPolicy escapes the surviving text; records are stored as plain text
	text = strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
	if text == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidContent)
	}
	if s.maxLength > 0 && utf8.RuneCountInString(text) > s.maxLength {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidContent, s.maxLength)
	}
	return text, nil
}
