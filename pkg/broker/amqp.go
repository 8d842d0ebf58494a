package broker

import "github.com/streadway/amqp"

// amqpChannel is the subset of *amqp.Channel the publisher and consumer use.
// Both it and amqpConnection exist so tests can run against mocks.
type amqpChannel interface {
	topologyChannel
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Qos(prefetchCount, prefetchSize int, global bool) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
	NotifyReturn(c chan amqp.Return) chan amqp.Return
	Close() error
}

type amqpConnection interface {
	Channel() (amqpChannel, error)
	Close() error
	IsClosed() bool
}

// dialFunc opens a broker connection. The default wraps amqp.Dial.
type dialFunc func(url string) (amqpConnection, error)

type amqpConnAdapter struct {
	*amqp.Connection
}

func (a amqpConnAdapter) Channel() (amqpChannel, error) {
	return a.Connection.Channel()
}

func defaultDial(url string) (amqpConnection, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, err
	}
	return amqpConnAdapter{conn}, nil
}
