package outbox

import (
	"context"
	"database/sql"

	"cloud.google.com/go/spanner"
	"github.com/google/uuid"
	"google.golang.org/api/iterator"
)

// SpannerStore persists outbox events in a Spanner table. Like MongoStore it
// cannot join the caller's *sql.Tx; AddEvent applies a single mutation, so
// pick Postgres when the entity store and outbox must share one transaction.
type SpannerStore struct {
	client *spanner.Client
}

func NewSpannerStore(client *spanner.Client) *SpannerStore {
	return &SpannerStore{client: client}
}

func (s *SpannerStore) AddEvent(ctx context.Context, _ *sql.Tx, eventType, payload string) error {
	event := NewEvent(eventType, payload)

	mutation := spanner.InsertMap("outbox_events", map[string]interface{}{
		"id":          event.ID.String(),
		"event_type":  event.EventType,
		"payload":     event.Payload,
		"created_at":  event.CreatedAt,
		"processed":   false,
		"retry_count": 0,
	})

	_, err := s.client.Apply(ctx, []*spanner.Mutation{mutation})
	return err
}

func (s *SpannerStore) FetchUnprocessed(ctx context.Context, batchSize, maxRetry int) ([]*Event, error) {
	stmt := spanner.Statement{
		SQL: `SELECT id, event_type, payload, created_at, processed, processed_at, retry_count, error_message
              FROM outbox_events
              WHERE processed = false AND retry_count < @maxRetry
              ORDER BY created_at ASC
              LIMIT @batchSize`,
		Params: map[string]interface{}{
			"maxRetry":  int64(maxRetry),
			"batchSize": int64(batchSize),
		},
	}

	iter := s.client.Single().Query(ctx, stmt)
	defer iter.Stop()

	var events []*Event
	for {
		row, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}

		var (
			id         string
			retryCount int64
			event      Event
		)
		if err := row.Columns(
			&id,
			&event.EventType,
			&event.Payload,
			&event.CreatedAt,
			&event.Processed,
			&event.ProcessedAt,
			&retryCount,
			&event.ErrorMessage); err != nil {
			return nil, err
		}

		parsed, err := uuid.Parse(id)
		if err != nil {
			return nil, err
		}
		event.ID = parsed
		event.RetryCount = int(retryCount)

		events = append(events, &event)
	}

	return events, nil
}

func (s *SpannerStore) SaveBatch(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}

	mutations := make([]*spanner.Mutation, 0, len(events))
	for _, event := range events {
		mutations = append(mutations, spanner.UpdateMap("outbox_events", map[string]interface{}{
			"id":            event.ID.String(),
			"processed":     event.Processed,
			"processed_at":  event.ProcessedAt,
			"retry_count":   event.RetryCount,
			"error_message": event.ErrorMessage,
		}))
	}

	_, err := s.client.Apply(ctx, mutations)
	return err
}
