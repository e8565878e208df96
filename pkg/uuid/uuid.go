// Package uuid generates execution identifiers.
// UUID v7 sorts by timestamp, so journal rows keyed by it stay in insertion order.
package uuid

import (
	guuid "github.com/google/uuid"
)

// NewV7 returns a new UUID v7 in canonical string form. If the random source
// fails it falls back to a v4 id.
func NewV7() string {
	id, err := guuid.NewV7()
	if err != nil {
		return guuid.NewString()
	}
	return id.String()
}

// Valid reports whether s parses as a UUID of any version.
func Valid(s string) bool {
	return guuid.Validate(s) == nil
}
