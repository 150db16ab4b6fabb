package models

import (
	"errors"
	"fmt"
	"strconv"
	"time"
	"unicode"
)

// ErrBadToken marks a slot token that cannot be split into an ordinal
// and a space code.
var ErrBadToken = errors.New("malformed slot token")

// Slot is a single numbered parking spot inside a space.
// Identity is the structured pair (SpaceID, Ordinal); the display token
// like "5P66" exists only at the API boundary, see FormatToken/ParseToken.
type Slot struct {
	SpaceID   string    `json:"space_id"`
	Ordinal   int       `json:"ordinal"`
	Available bool      `json:"available"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// FormatToken builds the external slot token from an ordinal and a space code.
func FormatToken(ordinal int, spaceCode string) string {
	return fmt.Sprintf("%d%s", ordinal, spaceCode)
}

// ParseToken splits a slot token into its ordinal prefix and space code suffix.
// The ordinal is the maximal run of leading digits; the rest is the code.
func ParseToken(token string) (int, string, error) {
	i := 0
	for i < len(token) && unicode.IsDigit(rune(token[i])) {
		i++
	}
	if i == 0 {
		return 0, "", fmt.Errorf("%w: %q has no ordinal prefix", ErrBadToken, token)
	}
	if i == len(token) {
		return 0, "", fmt.Errorf("%w: %q has no space code suffix", ErrBadToken, token)
	}

	ordinal, err := strconv.Atoi(token[:i])
	if err != nil {
		return 0, "", fmt.Errorf("%w: %q", ErrBadToken, token)
	}
	if ordinal < 1 {
		return 0, "", fmt.Errorf("%w: %q ordinal must be positive", ErrBadToken, token)
	}

	return ordinal, token[i:], nil
}
