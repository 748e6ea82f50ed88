package utils

import (
	"strings"

	"github.com/google/uuid"
)

// NewID returns a fresh UUIDv4 string, the primary key format for all
// persisted entities.
func NewID() string {
	return uuid.NewString()
}

// ValidateID reports whether s parses as a UUID.
func ValidateID(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}

// SanitizeIdentifier makes an identifier safe for filesystem paths and
// generated document names.
func SanitizeIdentifier(id string) string {
	sanitized := strings.ReplaceAll(id, ":", "-")
	sanitized = strings.ReplaceAll(sanitized, " ", "-")
	sanitized = strings.ReplaceAll(sanitized, "/", "-")
	sanitized = strings.ReplaceAll(sanitized, "\\", "-")
	return sanitized
}
