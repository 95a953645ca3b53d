package model

import (
	"github.com/google/uuid"
)

// NewID generates a new random UUID.
func NewID() uuid.UUID {
	return uuid.New()
}

// ParseID parses a string into a UUID.
// Returns uuid.Nil if parsing fails.
func ParseID(s string) uuid.UUID {
	id, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil
	}
	return id
}

// IsValidID checks if a UUID is valid (not nil).
func IsValidID(id uuid.UUID) bool {
	return id != uuid.Nil
}

// ShortID returns the first eight hex characters, enough to correlate log lines.
func ShortID(id uuid.UUID) string {
	return id.String()[:8]
}
