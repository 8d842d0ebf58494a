package broker

import "context"

// Publisher defines the operations to publish serialized event payloads to a
// broker under a routing key.
type Publisher interface {
	// PublishText sends a pre-serialized payload with the given routing key.
	PublishText(ctx context.Context, routingKey, payload string) error
	// Close cleans up any resources (connections).
	Close() error
}
