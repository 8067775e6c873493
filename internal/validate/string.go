// Package validate provides input validation for user-supplied text such as
// name search queries.
package validate

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// String validation errors
var (
	ErrStringTooShort    = errors.New("string is too short")
	ErrStringTooLong     = errors.New("string is too long")
	ErrInvalidCharacters = errors.New("string contains invalid characters")
	ErrInvalidUTF8       = errors.New("string is not valid UTF-8")
	ErrEmpty             = errors.New("string is empty")
)

// MaxNameQueryLength bounds name search queries. Similarity is quadratic in
// the query length.
const MaxNameQueryLength = 200

// StringConstraints defines validation constraints for a string.
type StringConstraints struct {
	MinLength      int            // Minimum length in runes (0 = no minimum)
	MaxLength      int            // Maximum length in runes (0 = no maximum)
	AllowedPattern *regexp.Regexp // Optional regex pattern for allowed characters
	RejectControl  bool           // Whether control characters are rejected
	AllowEmpty     bool           // Whether empty strings are allowed
	TrimSpace      bool           // Whether to trim whitespace before validation
}

// String validates a string against the given constraints.
// Returns the validated (and optionally trimmed) string and an error if validation fails.
func String(s string, constraints StringConstraints) (string, error) {
	if !utf8.ValidString(s) {
		return "", ErrInvalidUTF8
	}
	if constraints.TrimSpace {
		s = strings.TrimSpace(s)
	}

	if s == "" {
		if !constraints.AllowEmpty {
			return "", ErrEmpty
		}
		return s, nil
	}

	length := utf8.RuneCountInString(s)
	if constraints.MinLength > 0 && length < constraints.MinLength {
		return "", fmt.Errorf("%w: got %d chars, need at least %d", ErrStringTooShort, length, constraints.MinLength)
	}
	if constraints.MaxLength > 0 && length > constraints.MaxLength {
		return "", fmt.Errorf("%w: got %d chars, maximum is %d", ErrStringTooLong, length, constraints.MaxLength)
	}

	if constraints.RejectControl {
		if i := strings.IndexFunc(s, unicode.IsControl); i >= 0 {
			return "", fmt.Errorf("%w: control character at byte %d", ErrInvalidCharacters, i)
		}
	}

	if constraints.AllowedPattern != nil && !constraints.AllowedPattern.MatchString(s) {
		return "", fmt.Errorf("%w: does not match required pattern", ErrInvalidCharacters)
	}

	return s, nil
}

// NameQuery validates a name search query:
// - Optional (can be empty, which matches nothing)
// - Max 200 characters
// - No control characters
func NameQuery(query string) (string, error) {
	return String(query, StringConstraints{
		MaxLength:     MaxNameQueryLength,
		RejectControl: true,
		AllowEmpty:    true,
		TrimSpace:     true,
	})
}
