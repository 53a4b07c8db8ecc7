package tinychat

import "context"

// Store is the durable per-session message log. Implementations replace the
// whole sequence on Save (last writer wins; concurrent saves to one id are
// not coordinated) and treat an unknown id as an empty history.
type Store interface {
	// Create allocates a new session id, persists an empty log under it and
	// returns the id.
	Create(ctx context.Context) (string, error)

	// Load returns the persisted sequence for id. A missing record is an
	// empty sequence, never an error.
	Load(ctx context.Context, id string) ([]Message, error)

	// Save replaces the persisted sequence for id. A concurrent reader never
	// observes a partially written sequence.
	Save(ctx context.Context, id string, messages []Message) error

	// ListSessions returns the ids of every persisted session, in no
	// particular order.
	ListSessions(ctx context.Context) ([]string, error)
}
