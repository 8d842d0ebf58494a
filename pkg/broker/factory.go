package broker

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/credsys/credit-pipeline/pkg/config"
)

// NewPublisher builds a ready-to-use publisher for the configured broker
// type. For RabbitMQ the given bindings are declared during Initialize so
// the topology exists before the first consumer or publish.
func NewPublisher(ctx context.Context, settings *config.BrokerSettings, bindings []Binding, logger zerolog.Logger) (Publisher, error) {
	switch settings.Type {
	case "rabbitmq":
		pub := NewRabbitMQPublisher(settings, logger)
		for _, b := range bindings {
			pub.RegisterBinding(b.Queue, b.Exchange, b.RoutingKey)
		}
		if err := pub.Initialize(ctx); err != nil {
			return nil, err
		}
		return pub, nil
	case "gcp-pubsub":
		return NewPubSubPublisher(ctx, settings)
	default:
		return nil, fmt.Errorf("unsupported broker type: %s", settings.Type)
	}
}
