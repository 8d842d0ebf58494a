package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/credsys/credit-pipeline/pkg/config"
	"github.com/credsys/credit-pipeline/pkg/resilience"
)

// Handler consumes one decoded message body. Implementations are resolved
// fresh for every delivery via a HandlerFactory.
type Handler interface {
	Consume(ctx context.Context, message string) error
}

// HandlerFactory resolves a Handler instance scoped to a single message.
// A factory error is a configuration defect: the consumer dead-letters the
// message immediately instead of burning retry attempts on it.
type HandlerFactory func() (Handler, error)

// reconnectDelay is the fixed pause between consumer reconnect attempts.
// The consumer is a long-lived service, so reconnects are unbounded.
const reconnectDelay = 5 * time.Second

// Consumer maintains a standing subscription on one queue and dispatches
// every delivery to a handler, acknowledging or dead-lettering based on the
// outcome. It survives broker disconnects indefinitely: any error tears the
// connection down, waits, and rebuilds from scratch.
type Consumer struct {
	settings   *config.BrokerSettings
	binding    Binding
	newHandler HandlerFactory
	dial       dialFunc
	logger     zerolog.Logger

	handlerPolicy resilience.Policy
}

// NewConsumer builds a consumer for one queue/binding pair. The handler
// factory is invoked once per delivered message.
func NewConsumer(settings *config.BrokerSettings, binding Binding, factory HandlerFactory, logger zerolog.Logger) *Consumer {
	return &Consumer{
		settings:      settings,
		binding:       binding,
		newHandler:    factory,
		dial:          defaultDial,
		logger:        logger.With().Str("component", "consumer").Str("queue", binding.Queue).Logger(),
		handlerPolicy: resilience.DefaultMessagingPolicy(),
	}
}

// Run blocks until ctx is cancelled. Each iteration connects, declares
// topology, and consumes with prefetch 1 and manual acknowledgment; on any
// failure it releases the connection, waits, and reconnects. Cancellation is
// a clean exit, never an error.
func (c *Consumer) Run(ctx context.Context) {
	c.logger.Info().Msg("consumer starting")

	for {
		if ctx.Err() != nil {
			break
		}

		if err := c.connectAndConsume(ctx); err != nil {
			c.logger.Error().Err(err).Dur("retry_in", reconnectDelay).
				Msg("consumer loop failed, reconnecting")

			select {
			case <-ctx.Done():
			case <-time.After(reconnectDelay):
			}
		}
	}

	c.logger.Info().Msg("consumer stopped")
}

// connectAndConsume holds one broker session: it returns nil only on
// cancellation, otherwise the error that broke the session.
func (c *Consumer) connectAndConsume(ctx context.Context) error {
	conn, err := c.dial(c.settings.URL)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}
	defer conn.Close()

	ch, err := conn.Channel()
	if err != nil {
		return fmt.Errorf("open channel: %w", err)
	}
	defer ch.Close()

	if err := declareTopology(ch, []Binding{c.binding}); err != nil {
		return err
	}

	// Prefetch 1 keeps at most one unacknowledged message in flight per
	// consumer instance, trading throughput for fairness and backpressure.
	if err := ch.Qos(1, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(c.binding.Queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("start consuming %q: %w", c.binding.Queue, err)
	}

	c.logger.Info().Msg("consumer connected and listening")

	for {
		select {
		case <-ctx.Done():
			return nil
		case delivery, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed by broker")
			}
			c.handleDelivery(ctx, delivery)
		}
	}
}

// handleDelivery runs one message through the handler retry policy, then
// acks on success or rejects without requeue on exhaustion, routing the
// message to the dead-letter queue.
func (c *Consumer) handleDelivery(ctx context.Context, delivery amqp.Delivery) {
	tracer := otel.Tracer("credit-pipeline")
	ctx, span := tracer.Start(ctx, "ConsumeMessage",
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("rabbitmq"),
			semconv.MessagingDestinationKey.String(c.binding.Queue),
		),
	)
	defer span.End()

	message := string(delivery.Body)

	err := c.handlerPolicy.Execute(ctx, func() error {
		handler, factoryErr := c.newHandler()
		if factoryErr != nil {
			// Resolution failures indicate a deployment defect, not a
			// transient data problem. Do not retry.
			return resilience.Permanent(fmt.Errorf("%w: %v", ErrHandlerResolution, factoryErr))
		}
		return handler.Consume(ctx, message)
	})

	if err == nil {
		if ackErr := delivery.Ack(false); ackErr != nil {
			c.logger.Error().Err(ackErr).Uint64("delivery_tag", delivery.DeliveryTag).Msg("ack failed")
		}
		return
	}

	// A cancelled context means the consumer is shutting down, not that the
	// message is bad. Leave it unacknowledged so the broker redelivers it.
	if ctx.Err() != nil {
		c.logger.Warn().Uint64("delivery_tag", delivery.DeliveryTag).
			Msg("shutdown during processing, leaving message unacknowledged")
		return
	}

	span.RecordError(err)

	if errors.Is(err, ErrHandlerResolution) {
		c.logger.Error().Err(err).Uint64("delivery_tag", delivery.DeliveryTag).
			Msg("CRITICAL: handler resolution failed, dead-lettering message")
	} else {
		c.logger.Error().Err(err).Uint64("delivery_tag", delivery.DeliveryTag).
			Msg("message processing exhausted retries, dead-lettering")
	}

	if nackErr := delivery.Nack(false, false); nackErr != nil {
		c.logger.Error().Err(nackErr).Uint64("delivery_tag", delivery.DeliveryTag).Msg("nack failed")
	}
}
