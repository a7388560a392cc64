// Package id generates identifiers for users, sessions and categories.
package id

import (
	"fmt"

	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// Prefixes for nanoid-based identifiers.
const (
	PrefixUser    = "usr"
	PrefixSession = "sess"
)

// Generate creates a prefixed NanoID, e.g. "usr-V1StGXR8_Z5jdHi6B-myT".
func Generate(prefix string) (string, error) {
	n, err := gonanoid.New()
	if err != nil {
		return "", fmt.Errorf("generate nanoid: %w", err)
	}
	return prefix + "-" + n, nil
}

// MustGenerate is like Generate but panics if ID generation fails.
func MustGenerate(prefix string) string {
	v, err := Generate(prefix)
	if err != nil {
		panic(fmt.Sprintf("failed to generate ID: %v", err))
	}
	return v
}

// NewCategoryID returns a random UUID for a category row.
// Categories use UUIDs so rows can be moved between relational backends unchanged.
func NewCategoryID() string {
	return uuid.NewString()
}

// IsCategoryID reports whether s parses as a UUID.
func IsCategoryID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
