package broker

import (
	"context"
	"strings"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/credsys/credit-pipeline/pkg/config"
)

// PubSubCreator defines a function type for creating Pub/Sub publishers.
type PubSubCreator func(ctx context.Context, settings *config.BrokerSettings, opts ...option.ClientOption) (Publisher, error)

// NewPubSubPublisher is the default implementation of PubSubCreator. Pub/Sub
// has no exchange/queue topology: each routing key maps directly to a topic,
// and dead-lettering is configured on the subscription side.
var NewPubSubPublisher PubSubCreator = func(ctx context.Context, settings *config.BrokerSettings, opts ...option.ClientOption) (Publisher, error) {
	client, err := pubsub.NewClient(ctx, settings.ProjectID, opts...)
	if err != nil {
		return nil, err
	}
	return &pubSubPublisher{client: client}, nil
}

type pubSubPublisher struct {
	client *pubsub.Client
}

func (p *pubSubPublisher) PublishText(ctx context.Context, routingKey, payload string) error {
	if strings.TrimSpace(routingKey) == "" || strings.TrimSpace(payload) == "" {
		return ErrInvalidArgument
	}

	tracer := otel.Tracer("credit-pipeline")
	ctx, span := tracer.Start(ctx, "Publish",
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("pubsub"),
			semconv.MessagingDestinationKindKey.String("topic"),
			semconv.MessagingDestinationKey.String(routingKey),
		),
	)
	defer span.End()

	res := p.client.Topic(routingKey).Publish(ctx, &pubsub.Message{Data: []byte(payload)})
	if _, err := res.Get(ctx); err != nil { // wait for server ack
		span.RecordError(err)
		return err
	}

	span.SetAttributes(
		attribute.Int("messaging.message_payload_size_bytes", len(payload)),
	)

	return nil
}

func (p *pubSubPublisher) Close() error {
	return p.client.Close()
}
