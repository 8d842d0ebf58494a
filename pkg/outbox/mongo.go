package outbox

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.opentelemetry.io/otel"
)

// MongoStore persists outbox events in a collection. Mongo has no shared
// *sql.Tx; AddEvent relies on the driver's single-document atomicity, so the
// outbox-with-domain-write atomicity guarantee only holds for backends with
// a real transaction. Postgres is the primary deployment target; this store
// exists for installations already running the entity store on Mongo.
type MongoStore struct {
	client     *mongo.Client
	database   string
	collection string
}

func NewMongoStore(client *mongo.Client, database, collection string) *MongoStore {
	return &MongoStore{
		client:     client,
		database:   database,
		collection: collection,
	}
}

func (m *MongoStore) coll() *mongo.Collection {
	return m.client.Database(m.database).Collection(m.collection)
}

func (m *MongoStore) AddEvent(ctx context.Context, _ *sql.Tx, eventType, payload string) error {
	tracer := otel.Tracer("credit-pipeline")
	ctx, span := tracer.Start(ctx, "Outbox.AddEvent")
	defer span.End()

	event := NewEvent(eventType, payload)

	_, err := m.coll().InsertOne(ctx, bson.M{
		"_id":         event.ID.String(),
		"event_type":  event.EventType,
		"payload":     event.Payload,
		"created_at":  event.CreatedAt,
		"processed":   false,
		"retry_count": 0,
	})
	if err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}

type mongoEvent struct {
	ID           string     `bson:"_id"`
	EventType    string     `bson:"event_type"`
	Payload      string     `bson:"payload"`
	CreatedAt    time.Time  `bson:"created_at"`
	Processed    bool       `bson:"processed"`
	ProcessedAt  *time.Time `bson:"processed_at,omitempty"`
	RetryCount   int        `bson:"retry_count"`
	ErrorMessage *string    `bson:"error_message,omitempty"`
}

func (d mongoEvent) toEvent() (*Event, error) {
	id, err := uuid.Parse(d.ID)
	if err != nil {
		return nil, err
	}
	return &Event{
		ID:           id,
		EventType:    d.EventType,
		Payload:      d.Payload,
		CreatedAt:    d.CreatedAt,
		Processed:    d.Processed,
		ProcessedAt:  d.ProcessedAt,
		RetryCount:   d.RetryCount,
		ErrorMessage: d.ErrorMessage,
	}, nil
}

func (m *MongoStore) FetchUnprocessed(ctx context.Context, batchSize, maxRetry int) ([]*Event, error) {
	tracer := otel.Tracer("credit-pipeline")
	ctx, span := tracer.Start(ctx, "Outbox.FetchUnprocessed")
	defer span.End()

	filter := bson.M{
		"processed":   false,
		"retry_count": bson.M{"$lt": maxRetry},
	}
	opts := options.Find().
		SetLimit(int64(batchSize)).
		SetSort(bson.D{{Key: "created_at", Value: 1}})

	cursor, err := m.coll().Find(ctx, filter, opts)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	defer cursor.Close(ctx)

	var events []*Event
	for cursor.Next(ctx) {
		var doc mongoEvent
		if err := cursor.Decode(&doc); err != nil {
			span.RecordError(err)
			return nil, err
		}
		event, err := doc.toEvent()
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
		events = append(events, event)
	}

	if err := cursor.Err(); err != nil {
		span.RecordError(err)
		return nil, err
	}

	return events, nil
}

func (m *MongoStore) SaveBatch(ctx context.Context, events []*Event) error {
	if len(events) == 0 {
		return nil
	}

	tracer := otel.Tracer("credit-pipeline")
	ctx, span := tracer.Start(ctx, "Outbox.SaveBatch")
	defer span.End()

	models := make([]mongo.WriteModel, 0, len(events))
	for _, event := range events {
		update := bson.M{"$set": bson.M{
			"processed":     event.Processed,
			"processed_at":  event.ProcessedAt,
			"retry_count":   event.RetryCount,
			"error_message": event.ErrorMessage,
		}}
		models = append(models, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"_id": event.ID.String()}).
			SetUpdate(update))
	}

	if _, err := m.coll().BulkWrite(ctx, models); err != nil {
		span.RecordError(err)
		return err
	}

	return nil
}
