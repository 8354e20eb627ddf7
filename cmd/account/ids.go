package account

import (
	"time"

	"gymleague/cmd/account/ids"
)

// NewID returns a fresh account/profile id (UUIDv4 string).
func NewID() string {
	return ids.NewUUID()
}

// NewULID returns a new ULID (26-char string).
func NewULID(now time.Time) (string, error) {
	return ids.NewULID(now)
}
