package outbox

import (
	"context"
	"database/sql"
)

// Store defines the persistence operations for outbox events.
//
// AddEvent stages the event inside the caller's transaction and must not
// commit on its own: this is what makes the domain mutation and the event
// emission atomic. FetchUnprocessed returns pending events under the retry
// ceiling, oldest first. SaveBatch persists the processor's mutations.
type Store interface {
	// AddEvent stages a new pending event in tx. tx may be nil for backends
	// that manage their own write units (mongo, spanner).
	AddEvent(ctx context.Context, tx *sql.Tx, eventType, payload string) error
	// FetchUnprocessed returns up to batchSize events with processed=false
	// and retry_count < maxRetry, ordered by created_at ascending.
	FetchUnprocessed(ctx context.Context, batchSize, maxRetry int) ([]*Event, error)
	// SaveBatch persists the mutated events in one round trip.
	SaveBatch(ctx context.Context, events []*Event) error
}
