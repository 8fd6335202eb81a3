// Package id generates the opaque ids of stored configs. Ids travel inside
// button custom ids, so they are short and use a small alphabet.
package id

import (
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Length is the length of every id NewID returns.
const Length = 26

// MaxLength bounds the ids Valid accepts.
const MaxLength = 32

var encoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewID returns a lower-case, unpadded base32 encoding of a random UUIDv4.
func NewID() (string, error) {
	u, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("generate id: %w", err)
	}
	return strings.ToLower(encoding.EncodeToString(u[:])), nil
}

// Valid reports whether value can be a record id: one to MaxLength lower
// case ASCII letters, digits or hyphens.
func Valid(value string) bool {
	if value == "" || len(value) > MaxLength {
		return false
	}
	for _, r := range value {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}
