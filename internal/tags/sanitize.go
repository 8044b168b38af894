package tags

import (
	"errors"
	"strings"
	"unicode/utf8"
)

// MaxNameLength is the maximum tag name length in runes.
const MaxNameLength = 50

// ErrInvalidTagName is returned when a name sanitizes to nothing.
var ErrInvalidTagName = errors.New("invalid tag name")

// Sanitize normalizes raw text into a tag label Paperless accepts.
// Only ASCII letters, digits, spaces and äöüÄÖÜß survive; the result is
// trimmed and cut to MaxNameLength runes. ok is false when nothing is left.
func Sanitize(raw string) (name string, ok bool) {
	if raw == "" {
		return "", false
	}

	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if allowed(r) {
			b.WriteRune(r)
		}
	}

	name = strings.TrimSpace(b.String())
	if utf8.RuneCountInString(name) > MaxNameLength {
		// Trim again: the cut may land right after a space.
		name = strings.TrimSpace(string([]rune(name)[:MaxNameLength]))
	}
	if name == "" {
		return "", false
	}
	return name, true
}

func allowed(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == ' ':
		return true
	}
	switch r {
	case 'ä', 'ö', 'ü', 'Ä', 'Ö', 'Ü', 'ß':
		return true
	}
	return false
}
