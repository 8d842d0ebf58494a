package broker

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/credsys/credit-pipeline/pkg/config"
	"github.com/credsys/credit-pipeline/pkg/resilience"
)

// --- Mocks ---

type mockConnection struct {
	mock.Mock
	closed bool
}

func (m *mockConnection) Channel() (amqpChannel, error) {
	args := m.Called()
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(amqpChannel), args.Error(1)
}

func (m *mockConnection) Close() error {
	m.closed = true
	return m.Called().Error(0)
}

func (m *mockConnection) IsClosed() bool {
	return m.closed
}

type mockChannel struct {
	mock.Mock
	returns chan amqp.Return
}

func (m *mockChannel) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	return m.Called(name, kind, durable, autoDelete, internal, noWait, args).Error(0)
}

func (m *mockChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	called := m.Called(name, durable, autoDelete, exclusive, noWait, args)
	return called.Get(0).(amqp.Queue), called.Error(1)
}

func (m *mockChannel) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	return m.Called(name, key, exchange, noWait, args).Error(0)
}

func (m *mockChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	return m.Called(exchange, key, mandatory, immediate, msg).Error(0)
}

func (m *mockChannel) Qos(prefetchCount, prefetchSize int, global bool) error {
	return m.Called(prefetchCount, prefetchSize, global).Error(0)
}

func (m *mockChannel) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	called := m.Called(queue, consumer, autoAck, exclusive, noLocal, noWait, args)
	if called.Get(0) == nil {
		return nil, called.Error(1)
	}
	return called.Get(0).(chan amqp.Delivery), called.Error(1)
}

func (m *mockChannel) NotifyReturn(c chan amqp.Return) chan amqp.Return {
	m.returns = c
	return c
}

func (m *mockChannel) Close() error {
	return m.Called().Error(0)
}

func expectTopology(ch *mockChannel) {
	ch.On("ExchangeDeclare", mock.Anything, mock.Anything, true, false, false, false, mock.Anything).Return(nil)
	ch.On("QueueDeclare", mock.Anything, true, false, false, false, mock.Anything).Return(amqp.Queue{}, nil)
	ch.On("QueueBind", mock.Anything, mock.Anything, mock.Anything, false, mock.Anything).Return(nil)
}

func fastPolicy(attempts int) resilience.Policy {
	return resilience.Policy{MaxAttempts: attempts, InitialInterval: time.Millisecond}
}

func newTestPublisher(conn *mockConnection) *RabbitMQPublisher {
	settings := &config.BrokerSettings{
		Type:     "rabbitmq",
		URL:      "amqp://localhost",
		Exchange: "credit-system",
	}
	pub := NewRabbitMQPublisher(settings, zerolog.Nop())
	pub.dial = func(url string) (amqpConnection, error) { return conn, nil }
	pub.connectPolicy = fastPolicy(2)
	pub.publishPolicy = fastPolicy(3)
	return pub
}

// --- Tests ---

func TestPublisher_InitializeDeclaresTopology(t *testing.T) {
	conn := new(mockConnection)
	ch := new(mockChannel)
	conn.On("Channel").Return(ch, nil)
	expectTopology(ch)

	pub := newTestPublisher(conn)
	pub.RegisterBinding("credit.proposals", "credit-system", "ClientCreated")

	err := pub.Initialize(context.Background())
	require.NoError(t, err)

	ch.AssertCalled(t, "ExchangeDeclare", "credit-system", "topic", true, false, false, false, mock.Anything)
	ch.AssertCalled(t, "QueueDeclare", "credit.proposals.dlq", true, false, false, false, mock.Anything)
}

func TestPublisher_InitializeIdempotent(t *testing.T) {
	conn := new(mockConnection)
	ch := new(mockChannel)
	conn.On("Channel").Return(ch, nil).Once()
	expectTopology(ch)

	pub := newTestPublisher(conn)

	require.NoError(t, pub.Initialize(context.Background()))
	require.NoError(t, pub.Initialize(context.Background()))

	conn.AssertNumberOfCalls(t, "Channel", 1)
}

func TestPublisher_InitializeConnectFailure(t *testing.T) {
	pub := newTestPublisher(nil)
	pub.dial = func(url string) (amqpConnection, error) {
		return nil, errors.New("connection refused")
	}

	err := pub.Initialize(context.Background())
	assert.ErrorIs(t, err, ErrConnectFailed)
}

func TestPublisher_PublishText(t *testing.T) {
	conn := new(mockConnection)
	ch := new(mockChannel)
	conn.On("Channel").Return(ch, nil)
	expectTopology(ch)
	ch.On("Publish", "credit-system", "ClientCreated", true, false, mock.MatchedBy(func(msg amqp.Publishing) bool {
		return msg.ContentType == "application/json" && string(msg.Body) == `{"client_id":"1"}`
	})).Return(nil)

	pub := newTestPublisher(conn)
	require.NoError(t, pub.Initialize(context.Background()))

	err := pub.PublishText(context.Background(), "ClientCreated", `{"client_id":"1"}`)
	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestPublisher_PublishTextBlankArguments(t *testing.T) {
	pub := newTestPublisher(nil)

	assert.ErrorIs(t, pub.PublishText(context.Background(), "", "payload"), ErrInvalidArgument)
	assert.ErrorIs(t, pub.PublishText(context.Background(), "rk", "  "), ErrInvalidArgument)
}

func TestPublisher_PublishBeforeInitialize(t *testing.T) {
	pub := newTestPublisher(nil)

	err := pub.PublishText(context.Background(), "rk", "payload")
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestPublisher_PublishRetriesTransientFailure(t *testing.T) {
	conn := new(mockConnection)
	ch := new(mockChannel)
	conn.On("Channel").Return(ch, nil)
	expectTopology(ch)
	ch.On("Publish", "credit-system", "rk", true, false, mock.Anything).Return(errors.New("channel gone")).Twice()
	ch.On("Publish", "credit-system", "rk", true, false, mock.Anything).Return(nil).Once()

	pub := newTestPublisher(conn)
	require.NoError(t, pub.Initialize(context.Background()))

	err := pub.PublishText(context.Background(), "rk", "payload")
	require.NoError(t, err)
	ch.AssertNumberOfCalls(t, "Publish", 3)
}

func TestPublisher_PublishReconnectsClosedConnection(t *testing.T) {
	conn := new(mockConnection)
	ch := new(mockChannel)
	conn.On("Channel").Return(ch, nil)
	expectTopology(ch)
	ch.On("Publish", "credit-system", "rk", true, false, mock.Anything).Return(nil)

	pub := newTestPublisher(conn)
	require.NoError(t, pub.Initialize(context.Background()))

	// Simulate the broker dropping the connection after Initialize.
	freshConn := new(mockConnection)
	freshCh := new(mockChannel)
	freshConn.On("Channel").Return(freshCh, nil)
	expectTopology(freshCh)
	freshCh.On("Publish", "credit-system", "rk", true, false, mock.Anything).Return(nil)

	conn.closed = true
	pub.dial = func(url string) (amqpConnection, error) { return freshConn, nil }

	err := pub.PublishText(context.Background(), "rk", "payload")
	require.NoError(t, err)
	freshCh.AssertCalled(t, "Publish", "credit-system", "rk", true, false, mock.Anything)
}

func TestPublisher_Publish_SerializesJSON(t *testing.T) {
	conn := new(mockConnection)
	ch := new(mockChannel)
	conn.On("Channel").Return(ch, nil)
	expectTopology(ch)
	ch.On("Publish", "credit-system", "rk", true, false, mock.MatchedBy(func(msg amqp.Publishing) bool {
		return string(msg.Body) == `{"name":"Ana"}`
	})).Return(nil)

	pub := newTestPublisher(conn)
	require.NoError(t, pub.Initialize(context.Background()))

	err := pub.Publish(context.Background(), "rk", map[string]string{"name": "Ana"})
	require.NoError(t, err)
	ch.AssertExpectations(t)
}

func TestPublisher_InitializeRegistersReturnListener(t *testing.T) {
	ch := new(mockChannel)
	expectTopology(ch)

	conn := new(mockConnection)
	conn.On("Channel").Return(ch, nil)

	pub := newTestPublisher(conn)
	require.NoError(t, pub.Initialize(context.Background()))

	assert.NotNil(t, ch.returns)
}

func TestPublisher_LogsBrokerReturns(t *testing.T) {
	var buf bytes.Buffer
	settings := &config.BrokerSettings{Type: "rabbitmq", URL: "amqp://localhost", Exchange: "credit-system"}
	pub := NewRabbitMQPublisher(settings, zerolog.New(&buf))

	// CreditProposalRejected has no bound queue, so a mandatory publish
	// comes back from the broker and must be visible in the logs.
	returns := make(chan amqp.Return, 1)
	returns <- amqp.Return{
		Exchange:   "credit-system",
		RoutingKey: "CreditProposalRejected",
		ReplyCode:  312,
		ReplyText:  "NO_ROUTE",
	}
	close(returns)

	pub.logReturns(returns)

	assert.Contains(t, buf.String(), "unroutable")
	assert.Contains(t, buf.String(), "CreditProposalRejected")
	assert.Contains(t, buf.String(), "NO_ROUTE")
}

func TestPublisher_CloseIdempotent(t *testing.T) {
	conn := new(mockConnection)
	ch := new(mockChannel)
	conn.On("Channel").Return(ch, nil)
	expectTopology(ch)
	ch.On("Close").Return(nil).Once()
	conn.On("Close").Return(nil).Once()

	pub := newTestPublisher(conn)
	require.NoError(t, pub.Initialize(context.Background()))

	require.NoError(t, pub.Close())
	require.NoError(t, pub.Close())

	ch.AssertNumberOfCalls(t, "Close", 1)
	conn.AssertNumberOfCalls(t, "Close", 1)
}
