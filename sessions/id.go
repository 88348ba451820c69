package sessions

import "github.com/google/uuid"

// newSessionID returns a random (version 4) UUID; 122 bits from crypto/rand.
func newSessionID() string {
	return uuid.NewString()
}
