package chat

import "context"

// Store is a per-session, append-only transcript. All returns entries in
// insertion order.
type Store interface {
	Append(ctx context.Context, sessionID string, e Entry) error
	All(ctx context.Context, sessionID string) ([]Entry, error)
	Clear(ctx context.Context, sessionID string) error
}
