package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// NewID returns a best-effort unique identifier.
func NewID() string {
	if id, err := uuid.NewRandom(); err == nil {
		return id.String()
	}

	const size = 12

	buf := make([]byte, size)
	if _, err := rand.Read(buf); err == nil {
		return hex.EncodeToString(buf)
	}

	// Fallback to timestamp if crypto/rand is unavailable.
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}

// ShortID returns the first eight characters of a fresh identifier, for log fields.
func ShortID() string {
	id := NewID()
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
