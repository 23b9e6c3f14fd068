// Package unicodecheck rejects chat bodies carrying Unicode that reorders,
// hides or floods rendered text, and strips invisible formatting runes.
package unicodecheck

import (
	"errors"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Rejection reasons returned by Validate
var (
	ErrBidiOverride   = errors.New("contains bidirectional override characters")
	ErrControlChars   = errors.New("contains control characters")
	ErrNonCharacter   = errors.New("contains private use, surrogate or non-character code points")
	ErrCombiningFlood = errors.New("contains excessive combining marks")
)

// DefaultMaxCombining is the longest run of combining marks accepted in a chat body
const DefaultMaxCombining = 8

// isStrippable reports zero-width and filler runes that render as nothing
func isStrippable(r rune) bool {
	switch r {
	case '\u200B', '\u200C', '\u200E', '\u200F', '\uFEFF', '\u3164', '\uFFA0':
		return true
	}
	return false
}

func isBidiOverride(r rune) bool {
	return (r >= '\u202A' && r <= '\u202E') || (r >= '\u2066' && r <= '\u2069')
}

func isNonCharacter(r rune) bool {
	return unicode.Is(unicode.Co, r) ||
		unicode.Is(unicode.Cs, r) ||
		(r >= 0xFDD0 && r <= 0xFDEF) ||
		r&0xFFFF == 0xFFFE || r&0xFFFF == 0xFFFF
}

// Normalize converts s to NFC and drops invisible runes. U+200D is kept
// because emoji sequences depend on it.
func Normalize(s string) string {
	s = norm.NFC.String(s)
	if strings.IndexFunc(s, isStrippable) < 0 {
		return s
	}
	return strings.Map(func(r rune) rune {
		if isStrippable(r) {
			return -1
		}
		return r
	}, s)
}

// Validate returns the first reason s is unfit for display. Newlines and tabs are allowed.
func Validate(s string, maxCombining int) error {
	if maxCombining <= 0 {
		maxCombining = DefaultMaxCombining
	}
	combining := 0
	for _, r := range s {
		switch {
		case isBidiOverride(r):
			return ErrBidiOverride
		case unicode.IsControl(r) && r != '\n' && r != '\r' && r != '\t':
			return ErrControlChars
		case isNonCharacter(r):
			return ErrNonCharacter
		}
		if unicode.Is(unicode.Mn, r) {
			combining++
			if combining > maxCombining {
				return ErrCombiningFlood
			}
			continue
		}
		combining = 0
	}
	return nil
}

// IsNFCNormalized checks whether the string is already in NFC form
func IsNFCNormalized(s string) bool {
	return norm.NFC.IsNormalString(s)
}
