// Package presence keeps the shared count of gateway connections bound to a session.
package presence

import (
	"context"
	"fmt"
)

// SetStore is an atomic keyed set. Add and Remove return the cardinality after
// the mutation, observed atomically with it.
type SetStore interface {
	Add(ctx context.Context, key, member string) (int64, error)
	Remove(ctx context.Context, key, member string) (int64, error)
	Cardinality(ctx context.Context, key string) (int64, error)
}

// KeyPrefix namespaces presence sets in a shared store.
const KeyPrefix = "stream:viewers:"

// Tracker counts connections per session. Membership is by connection id, so a
// repeated join by the same connection does not change the count.
type Tracker struct {
	store SetStore
}

// NewTracker creates a tracker over store.
func NewTracker(store SetStore) *Tracker {
	return &Tracker{store: store}
}

// Key returns the set key for a session.
func Key(sessionID string) string {
	return KeyPrefix + sessionID
}

// Join adds connectionID to the session and returns the new count.
func (t *Tracker) Join(ctx context.Context, sessionID, connectionID string) (int64, error) {
	n, err := t.store.Add(ctx, Key(sessionID), connectionID)
	if err != nil {
		return 0, fmt.Errorf("presence join %s: %w", sessionID, err)
	}
	return n, nil
}

// Leave removes connectionID from the session and returns the new count.
func (t *Tracker) Leave(ctx context.Context, sessionID, connectionID string) (int64, error) {
	n, err := t.store.Remove(ctx, Key(sessionID), connectionID)
	if err != nil {
		return 0, fmt.Errorf("presence leave %s: %w", sessionID, err)
	}
	return n, nil
}

// Count returns the current number of connections in the session.
func (t *Tracker) Count(ctx context.Context, sessionID string) (int64, error) {
	n, err := t.store.Cardinality(ctx, Key(sessionID))
	if err != nil {
		return 0, fmt.Errorf("presence count %s: %w", sessionID, err)
	}
	return n, nil
}
