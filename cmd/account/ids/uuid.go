package ids

import "github.com/google/uuid"

// NewUUID returns a random (v4) UUID string. Account and profile ids share this
// format so a provider account id can key the profile row directly.
func NewUUID() string {
	return uuid.NewString()
}
