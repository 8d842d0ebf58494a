package outbox

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/credsys/credit-pipeline/pkg/broker"
	"github.com/credsys/credit-pipeline/pkg/config"
	"github.com/credsys/credit-pipeline/pkg/resilience"
)

// Alerter is notified when an event has exhausted its delivery attempts and
// will no longer be picked up by the processor.
type Alerter interface {
	EventStuck(ctx context.Context, event *Event)
}

// LogAlerter reports stuck events through the service logger.
type LogAlerter struct {
	logger zerolog.Logger
}

func NewLogAlerter(logger zerolog.Logger) *LogAlerter {
	return &LogAlerter{logger: logger}
}

func (a *LogAlerter) EventStuck(ctx context.Context, event *Event) {
	a.logger.Error().
		Str("event_id", event.ID.String()).
		Str("event_type", event.EventType).
		Int("retry_count", event.RetryCount).
		Msg("outbox event exhausted delivery attempts, manual intervention required")
}

// Processor drains staged outbox events to the message broker. Each tick it
// fetches one batch of pending events, publishes them in creation order and
// persists the outcome in a single batch save.
type Processor struct {
	store     Store
	publisher broker.Publisher
	alerter   Alerter
	logger    zerolog.Logger
	tracer    trace.Tracer

	pollInterval time.Duration
	batchSize    int
	maxRetries   int
	policy       resilience.Policy

	cancel  context.CancelFunc
	done    chan struct{}
	once    sync.Once
	started bool
}

func NewProcessor(store Store, publisher broker.Publisher, alerter Alerter, cfg config.OutboxSettings, logger zerolog.Logger) *Processor {
	return &Processor{
		store:        store,
		publisher:    publisher,
		alerter:      alerter,
		logger:       logger,
		tracer:       otel.Tracer("credit-pipeline/outbox"),
		pollInterval: cfg.PollInterval,
		batchSize:    cfg.BatchSize,
		maxRetries:   cfg.MaxRetryAttempts,
		policy:       resilience.DefaultOutboxPolicy(),
		done:         make(chan struct{}),
	}
}

// Start launches the processing loop in its own goroutine. It returns
// immediately; call Stop to drain and halt the loop.
func (p *Processor) Start(ctx context.Context) {
	ctx, p.cancel = context.WithCancel(ctx)
	p.started = true

	go func() {
		defer close(p.done)

		ticker := time.NewTicker(p.pollInterval)
		defer ticker.Stop()

		p.logger.Info().
			Dur("poll_interval", p.pollInterval).
			Int("batch_size", p.batchSize).
			Msg("outbox processor started")

		// Drain whatever is already staged before the first tick.
		p.processBatch(ctx)

		for {
			select {
			case <-ctx.Done():
				p.logger.Info().Msg("outbox processor stopping")
				return
			case <-ticker.C:
				p.processBatch(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the in-flight batch to finish. It is
// a no-op when the processor was never started.
func (p *Processor) Stop() {
	p.once.Do(func() {
		if !p.started {
			return
		}
		p.cancel()
		<-p.done
	})
}

func (p *Processor) processBatch(ctx context.Context) {
	events, err := p.store.FetchUnprocessed(ctx, p.batchSize, p.maxRetries)
	if err != nil {
		p.logger.Error().Err(err).Msg("failed to fetch outbox events")
		return
	}
	if len(events) == 0 {
		return
	}

	for _, event := range events {
		p.processEvent(ctx, event)
	}

	// Outcomes are persisted in one shot; a save failure means the batch is
	// retried next tick, which is safe under at-least-once delivery.
	if err := p.store.SaveBatch(ctx, events); err != nil {
		p.logger.Error().Err(err).Int("events", len(events)).Msg("failed to save outbox batch")
	}
}

func (p *Processor) processEvent(ctx context.Context, event *Event) {
	ctx, span := p.tracer.Start(ctx, "outbox.ProcessEvent", trace.WithAttributes(
		attribute.String("event.id", event.ID.String()),
		attribute.String("event.type", event.EventType),
		attribute.Int("event.retry_count", event.RetryCount),
	))
	defer span.End()

	err := p.policy.Execute(ctx, func() error {
		return p.publisher.PublishText(ctx, event.EventType, event.Payload)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())

		event.MarkFailed(err.Error())
		p.logger.Warn().
			Err(err).
			Str("event_id", event.ID.String()).
			Str("event_type", event.EventType).
			Int("retry_count", event.RetryCount).
			Msg("failed to publish outbox event")

		if event.RetryCount >= p.maxRetries {
			p.alerter.EventStuck(ctx, event)
		}
		return
	}

	event.MarkProcessed(time.Now().UTC())
}
