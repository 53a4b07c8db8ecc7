package tinychat

import (
	"github.com/google/uuid"
	gonanoid "github.com/matoous/go-nanoid/v2"
)

// NewSessionID allocates an opaque session identifier. The id is random and
// collision-free with overwhelming probability; no ordering is implied.
func NewSessionID() string {
	id, err := gonanoid.New()
	if err != nil {
		panic(err)
	}
	return id
}

// NewMessageID allocates a per-message identifier.
func NewMessageID() string {
	return uuid.NewString()
}
