package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	semconv "go.opentelemetry.io/otel/semconv/v1.10.0"
	"go.opentelemetry.io/otel/trace"

	"github.com/credsys/credit-pipeline/pkg/config"
	"github.com/credsys/credit-pipeline/pkg/resilience"
)

// RabbitMQPublisher publishes to a topic exchange over a connection and
// channel it owns exclusively. Initialize opens the connection, declares the
// topology for every registered binding, and must succeed before Publish is
// usable. The whole connect sequence is retried with exponential backoff up
// to the connect policy's attempt ceiling.
type RabbitMQPublisher struct {
	mu       sync.Mutex
	settings *config.BrokerSettings
	bindings []Binding
	dial     dialFunc
	conn     amqpConnection
	ch       amqpChannel
	logger   zerolog.Logger

	connectPolicy resilience.Policy
	publishPolicy resilience.Policy
	closed        bool
}

// NewRabbitMQPublisher builds an uninitialized publisher. Call
// RegisterBinding for each queue the publisher must guarantee exists, then
// Initialize before the first Publish.
func NewRabbitMQPublisher(settings *config.BrokerSettings, logger zerolog.Logger) *RabbitMQPublisher {
	return &RabbitMQPublisher{
		settings:      settings,
		dial:          defaultDial,
		logger:        logger.With().Str("component", "rabbitmq_publisher").Logger(),
		connectPolicy: resilience.DefaultConnectPolicy(),
		publishPolicy: resilience.DefaultMessagingPolicy(),
	}
}

// RegisterBinding adds a binding to the set declared during Initialize.
// Bindings registered after Initialize take effect on the next reconnect.
func (r *RabbitMQPublisher) RegisterBinding(queue, exchange, routingKey string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bindings = append(r.bindings, Binding{Queue: queue, Exchange: exchange, RoutingKey: routingKey})
}

// Initialize opens the connection and channel and declares topology. It is a
// no-op when the connection is already open. Exhausting the connect retry
// ceiling surfaces ErrConnectFailed.
func (r *RabbitMQPublisher) Initialize(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.conn != nil && !r.conn.IsClosed() && r.ch != nil {
		return nil
	}

	err := r.connectPolicy.ExecuteLogged(ctx, r.logger, "connect", func() error {
		return r.connectLocked()
	})
	if err != nil {
		return fmt.Errorf("%w: %v", ErrConnectFailed, err)
	}

	r.logger.Info().Str("exchange", r.settings.Exchange).Int("bindings", len(r.bindings)).
		Msg("publisher connected and topology declared")

	return nil
}

// connectLocked performs one connect attempt; any failure releases whatever
// was opened so the next attempt starts from scratch.
func (r *RabbitMQPublisher) connectLocked() error {
	conn, err := r.dial(r.settings.URL)
	if err != nil {
		return fmt.Errorf("dial broker: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return fmt.Errorf("open channel: %w", err)
	}

	if err := declareTopology(ch, r.bindings); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return err
	}

	// Mandatory publishes to a key without a bound queue come back as broker
	// returns. The returns channel is closed with the AMQP channel.
	go r.logReturns(ch.NotifyReturn(make(chan amqp.Return, 1)))

	r.conn = conn
	r.ch = ch

	return nil
}

// logReturns records every message the broker hands back as unroutable.
func (r *RabbitMQPublisher) logReturns(returns <-chan amqp.Return) {
	for ret := range returns {
		r.logger.Warn().
			Str("exchange", ret.Exchange).
			Str("routing_key", ret.RoutingKey).
			Uint16("reply_code", ret.ReplyCode).
			Str("reply_text", ret.ReplyText).
			Msg("broker returned unroutable message")
	}
}

// Publish serializes payload as JSON and publishes it under routingKey with
// bounded retry. The mandatory flag is set so the broker signals unroutable
// messages.
func (r *RabbitMQPublisher) Publish(ctx context.Context, routingKey string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("serialize payload for %q: %w", routingKey, err)
	}
	return r.publishBytes(ctx, routingKey, body)
}

// PublishText publishes an already-serialized payload. It fails fast with
// ErrInvalidArgument on a blank routing key or payload.
func (r *RabbitMQPublisher) PublishText(ctx context.Context, routingKey, payload string) error {
	if strings.TrimSpace(routingKey) == "" || strings.TrimSpace(payload) == "" {
		return ErrInvalidArgument
	}
	return r.publishBytes(ctx, routingKey, []byte(payload))
}

func (r *RabbitMQPublisher) publishBytes(ctx context.Context, routingKey string, body []byte) error {
	tracer := otel.Tracer("credit-pipeline")
	ctx, span := tracer.Start(ctx, "Publish",
		trace.WithAttributes(
			semconv.MessagingSystemKey.String("rabbitmq"),
			semconv.MessagingDestinationKey.String(r.settings.Exchange),
			semconv.MessagingRabbitmqRoutingKeyKey.String(routingKey),
		),
	)
	defer span.End()

	err := r.publishPolicy.Execute(ctx, func() error {
		return r.publishOnce(routingKey, body)
	})
	if err != nil {
		span.RecordError(err)
		r.logger.Error().Err(err).Str("routing_key", routingKey).Msg("publish failed after retries")
		return err
	}

	span.SetAttributes(attribute.Int("messaging.message_payload_size_bytes", len(body)))

	return nil
}

func (r *RabbitMQPublisher) publishOnce(routingKey string, body []byte) error {
	r.mu.Lock()
	ch := r.ch
	conn := r.conn
	r.mu.Unlock()

	if ch == nil || conn == nil {
		return resilience.Permanent(ErrNotInitialized)
	}

	// A closed connection means the channel is gone too; reconnect so the
	// next attempt publishes on a fresh channel with topology redeclared.
	if conn.IsClosed() {
		r.mu.Lock()
		err := r.connectLocked()
		ch = r.ch
		r.mu.Unlock()
		if err != nil {
			return fmt.Errorf("reconnect before publish: %w", err)
		}
	}

	err := ch.Publish(
		r.settings.Exchange, routingKey, true, false,
		amqp.Publishing{
			ContentType: "application/json",
			Body:        body,
		},
	)
	if err != nil {
		return fmt.Errorf("publish to %q with key %q: %w", r.settings.Exchange, routingKey, err)
	}

	return nil
}

// Close closes channel then connection. Close-time errors are logged and
// swallowed; calling Close more than once is safe.
func (r *RabbitMQPublisher) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if r.ch != nil {
		if err := r.ch.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("closing channel")
		}
		r.ch = nil
	}

	if r.conn != nil {
		if err := r.conn.Close(); err != nil {
			r.logger.Warn().Err(err).Msg("closing connection")
		}
		r.conn = nil
	}

	return nil
}
