// Package resilience provides bounded retry policies for network-facing
// operations. Policies are plain values handed to each component at
// construction time; there is no shared policy registry.
package resilience

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Policy describes a bounded retry: how many attempts and how the delay
// between them grows. The zero value is not usable; use one of the
// constructors or fill both fields.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int
	// InitialInterval is the delay after the first failure. Each subsequent
	// delay doubles.
	InitialInterval time.Duration
}

// DefaultMessagingPolicy is the retry applied to individual publish and
// handler invocations: 3 attempts, exponential backoff.
func DefaultMessagingPolicy() Policy {
	return Policy{MaxAttempts: 3, InitialInterval: time.Second}
}

// DefaultConnectPolicy bounds broker connection establishment: 5 attempts,
// exponential backoff starting at one second.
func DefaultConnectPolicy() Policy {
	return Policy{MaxAttempts: 5, InitialInterval: time.Second}
}

// DefaultOutboxPolicy is the per-tick publish retry used by the outbox
// processor: 5 attempts with 2^attempt seconds between them.
func DefaultOutboxPolicy() Policy {
	return Policy{MaxAttempts: 5, InitialInterval: 2 * time.Second}
}

// Permanent marks err as non-retryable: Execute stops immediately and
// returns it. Used for configuration defects that retrying cannot fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return backoff.Permanent(err)
}

// Execute runs op under the policy, sleeping between failed attempts.
// It returns nil as soon as op succeeds, the last error once attempts are
// exhausted, or early when op returns an error wrapped by Permanent or the
// context is cancelled.
func (p Policy) Execute(ctx context.Context, op func() error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = p.InitialInterval
	bo.RandomizationFactor = 0
	bo.Multiplier = 2
	bo.MaxInterval = 5 * time.Minute
	bo.MaxElapsedTime = 0

	return backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, uint64(attempts-1)), ctx))
}

// ExecuteLogged behaves like Execute but emits a warn log per failed attempt.
func (p Policy) ExecuteLogged(ctx context.Context, logger zerolog.Logger, opName string, op func() error) error {
	attempt := 0
	return p.Execute(ctx, func() error {
		attempt++
		err := op()
		if err != nil {
			logger.Warn().Err(err).Str("operation", opName).
				Int("attempt", attempt).Int("max_attempts", p.MaxAttempts).
				Msg("operation failed, will retry if attempts remain")
		}
		return err
	})
}
