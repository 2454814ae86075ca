package session

import (
	"strings"

	"github.com/google/uuid"
)

const (
	idPrefix    = "session_"
	maxIDLength = 64
)

// NewID returns an opaque, globally unique session id
func NewID() string {
	return idPrefix + strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ValidID reports whether id can name a session: 1..64 chars of [A-Za-z0-9_.:-]
func ValidID(id string) bool {
	if id == "" || len(id) > maxIDLength {
		return false
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		case r == '_', r == '-', r == '.', r == ':':
		default:
			return false
		}
	}
	return true
}
