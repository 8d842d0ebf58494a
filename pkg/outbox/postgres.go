package outbox

import (
	"context"
	"database/sql"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// PostgresStore persists outbox events in an outbox_events table using
// database/sql.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (p *PostgresStore) AddEvent(ctx context.Context, tx *sql.Tx, eventType, payload string) error {
	tracer := otel.Tracer("credit-pipeline")
	ctx, span := tracer.Start(ctx, "Outbox.AddEvent")
	defer span.End()

	event := NewEvent(eventType, payload)

	start := time.Now()
	_, err := tx.ExecContext(ctx,
		`INSERT INTO outbox_events (id, event_type, payload, created_at, processed, retry_count)
         VALUES ($1, $2, $3, $4, false, 0)`,
		event.ID, event.EventType, event.Payload, event.CreatedAt)
	if err != nil {
		span.RecordError(err)
		return err
	}

	addDBStatsToSpan(span, "AddEvent", 1, time.Since(start))

	return nil
}

func (p *PostgresStore) FetchUnprocessed(ctx context.Context, batchSize, maxRetry int) ([]*Event, error) {
	tracer := otel.Tracer("credit-pipeline")
	ctx, span := tracer.Start(ctx, "Outbox.FetchUnprocessed")
	defer span.End()

	start := time.Now()
	rows, err := p.db.QueryContext(ctx,
		`SELECT id, event_type, payload, created_at, processed, processed_at, retry_count, error_message
         FROM outbox_events
         WHERE processed = false AND retry_count < $1
         ORDER BY created_at ASC
         LIMIT $2`, maxRetry, batchSize)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		var event Event
		if err := rows.Scan(&event.ID, &event.EventType, &event.Payload, &event.CreatedAt,
			&event.Processed, &event.ProcessedAt, &event.RetryCount, &event.ErrorMessage); err != nil {
			span.RecordError(err)
			return nil, err
		}
		events = append(events, &event)
	}

	if err := rows.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	addDBStatsToSpan(span, "FetchUnprocessed", len(events), time.Since(start))

	return events, nil
}

func (p *PostgresStore) SaveBatch(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}

	tracer := otel.Tracer("credit-pipeline")
	ctx, span := tracer.Start(ctx, "Outbox.SaveBatch")
	defer span.End()

	start := time.Now()
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		span.RecordError(err)
		return err
	}

	for _, event := range events {
		_, err := tx.ExecContext(ctx,
			`UPDATE outbox_events
             SET processed=$1, processed_at=$2, retry_count=$3, error_message=$4
             WHERE id=$5`,
			event.Processed, event.ProcessedAt, event.RetryCount, event.ErrorMessage, event.ID)
		if err != nil {
			span.RecordError(err)
			tx.Rollback()
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		span.RecordError(err)
		return err
	}

	addDBStatsToSpan(span, "SaveBatch", len(events), time.Since(start))

	return nil
}

func addDBStatsToSpan(span trace.Span, statement string, eventsCount int, duration time.Duration) {
	span.SetAttributes(
		attribute.Int("eventsCount", eventsCount),
		attribute.String("db.statement", statement),
		attribute.Float64("db.execution_time_ms", float64(duration.Milliseconds())),
	)
}
