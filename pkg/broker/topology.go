package broker

import (
	"fmt"

	"github.com/streadway/amqp"
)

// Binding declares one piece of broker topology: a queue bound to a topic
// exchange under a routing key. The dead-letter names are derived from it.
type Binding struct {
	Queue      string
	Exchange   string
	RoutingKey string
}

// DLXName is the dead-letter exchange paired with the binding's exchange.
func (b Binding) DLXName() string { return b.Exchange + ".dlx" }

// DLQName is the dead-letter queue paired with the binding's queue.
func (b Binding) DLQName() string { return b.Queue + ".dlq" }

// topologyChannel is the slice of amqp.Channel needed to declare topology.
// Kept narrow so tests can substitute a mock.
type topologyChannel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
}

// declareTopology ensures exchange, queue, dead-letter exchange and
// dead-letter queue exist and are wired, for every binding. Declarations are
// idempotent, so this runs on every startup and reconnect. The dead-letter
// infrastructure is declared first: the main queue references it through its
// x-dead-letter arguments.
func declareTopology(ch topologyChannel, bindings []Binding) error {
	for _, b := range bindings {
		dlx := b.DLXName()
		dlq := b.DLQName()

		if err := ch.ExchangeDeclare(dlx, "direct", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter exchange %q: %w", dlx, err)
		}

		if _, err := ch.QueueDeclare(dlq, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare dead-letter queue %q: %w", dlq, err)
		}

		if err := ch.QueueBind(dlq, dlq, dlx, false, nil); err != nil {
			return fmt.Errorf("bind dead-letter queue %q: %w", dlq, err)
		}

		if err := ch.ExchangeDeclare(b.Exchange, "topic", true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare exchange %q: %w", b.Exchange, err)
		}

		args := amqp.Table{
			"x-dead-letter-exchange":    dlx,
			"x-dead-letter-routing-key": dlq,
		}
		if _, err := ch.QueueDeclare(b.Queue, true, false, false, false, args); err != nil {
			return fmt.Errorf("declare queue %q: %w", b.Queue, err)
		}

		if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
			return fmt.Errorf("bind queue %q to %q: %w", b.Queue, b.Exchange, err)
		}
	}

	return nil
}
