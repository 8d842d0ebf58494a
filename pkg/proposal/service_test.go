package proposal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/credsys/credit-pipeline/pkg/client"
	"github.com/credsys/credit-pipeline/pkg/events"
	"github.com/credsys/credit-pipeline/pkg/outbox"
)

type mockRepository struct {
	mock.Mock
}

func (m *mockRepository) Insert(ctx context.Context, tx *sql.Tx, p *Proposal) error {
	return m.Called(ctx, tx, p).Error(0)
}

type mockOutbox struct {
	mock.Mock
}

func (m *mockOutbox) AddEvent(ctx context.Context, tx *sql.Tx, eventType, payload string) error {
	return m.Called(ctx, tx, eventType, payload).Error(0)
}

func (m *mockOutbox) FetchUnprocessed(ctx context.Context, batchSize, maxRetry int) ([]*outbox.Event, error) {
	panic("not used")
}

func (m *mockOutbox) SaveBatch(ctx context.Context, events []*outbox.Event) error {
	panic("not used")
}

type mockClientLookup struct {
	mock.Mock
}

func (m *mockClientLookup) GetByID(ctx context.Context, id uuid.UUID) (*client.Client, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*client.Client), args.Error(1)
}

func testEvent(clientID uuid.UUID, income float64) events.ClientCreated {
	return events.ClientCreated{
		ClientID:      clientID.String(),
		Name:          "Ana Souza",
		MonthlyIncome: income,
		DateBirth:     time.Date(1985, 3, 15, 0, 0, 0, 0, time.UTC),
	}
}

func storedClient(id uuid.UUID) *client.Client {
	return &client.Client{
		ID:       id,
		Name:     "Ana Souza",
		Document: client.Document{Number: "11144477735", Type: client.DocumentCPF},
	}
}

func newTestService(db *sql.DB, repo *mockRepository, ob *mockOutbox, clients *mockClientLookup, random func(int) int) *Service {
	service := NewService(db, repo, ob, clients, zerolog.Nop())
	service.calculator = &ScoreCalculator{random: random}
	return service
}

func TestHandleClientCreated_ApprovedProposal(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := new(mockRepository)
	ob := new(mockOutbox)
	clients := new(mockClientLookup)
	// High income, prime age, max random: guaranteed high score band.
	service := newTestService(db, repo, ob, clients, func(int) int { return 300 })

	clientID := uuid.New()
	clients.On("GetByID", mock.Anything, clientID).Return(storedClient(clientID), nil)
	repo.On("Insert", mock.Anything, mock.Anything, mock.MatchedBy(func(p *Proposal) bool {
		return p.Status == StatusApproved && p.ApprovedLimit == 5000 && p.CardsAllowed == 2
	})).Return(nil)
	ob.On("AddEvent", mock.Anything, mock.Anything, events.TypeCreditProposalApproved, mock.MatchedBy(func(payload string) bool {
		var event events.CreditProposalApproved
		if err := json.Unmarshal([]byte(payload), &event); err != nil {
			return false
		}
		return event.ClientID == clientID.String() &&
			event.Document == "11144477735" &&
			event.ApprovedLimit == 5000 &&
			event.CardsAllowed == 2
	})).Return(nil)

	dbmock.ExpectBegin()
	dbmock.ExpectCommit()

	err = service.HandleClientCreated(context.Background(), testEvent(clientID, 15000))
	require.NoError(t, err)

	repo.AssertExpectations(t)
	ob.AssertExpectations(t)
	assert.NoError(t, dbmock.ExpectationsWereMet())
}

func TestHandleClientCreated_RejectedProposal(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := new(mockRepository)
	ob := new(mockOutbox)
	clients := new(mockClientLookup)
	// Minimum income and age bands with zero random: 50 + 50 + 0 = 100.
	service := newTestService(db, repo, ob, clients, func(int) int { return 0 })

	clientID := uuid.New()
	event := testEvent(clientID, 500)
	event.DateBirth = time.Now().UTC().AddDate(-15, 0, 0)

	clients.On("GetByID", mock.Anything, clientID).Return(storedClient(clientID), nil)
	repo.On("Insert", mock.Anything, mock.Anything, mock.MatchedBy(func(p *Proposal) bool {
		return p.Status == StatusRejected && p.RejectionReason != ""
	})).Return(nil)
	ob.On("AddEvent", mock.Anything, mock.Anything, events.TypeCreditProposalRejected, mock.MatchedBy(func(payload string) bool {
		var rejected events.CreditProposalRejected
		if err := json.Unmarshal([]byte(payload), &rejected); err != nil {
			return false
		}
		return rejected.Reason != "" && rejected.Score <= 100
	})).Return(nil)

	dbmock.ExpectBegin()
	dbmock.ExpectCommit()

	err = service.HandleClientCreated(context.Background(), event)
	require.NoError(t, err)

	repo.AssertExpectations(t)
	ob.AssertExpectations(t)
	assert.NoError(t, dbmock.ExpectationsWereMet())
}

func TestHandleClientCreated_InvalidClientID(t *testing.T) {
	db, _, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	service := newTestService(db, new(mockRepository), new(mockOutbox), new(mockClientLookup), func(int) int { return 0 })

	err = service.HandleClientCreated(context.Background(), events.ClientCreated{ClientID: "not-a-uuid"})
	assert.ErrorContains(t, err, "invalid client id")
}

func TestHandleClientCreated_InsertFailureRollsBack(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := new(mockRepository)
	clients := new(mockClientLookup)
	service := newTestService(db, repo, new(mockOutbox), clients, func(int) int { return 300 })

	clientID := uuid.New()
	clients.On("GetByID", mock.Anything, clientID).Return(storedClient(clientID), nil)
	repo.On("Insert", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("connection reset"))

	dbmock.ExpectBegin()
	dbmock.ExpectRollback()

	err = service.HandleClientCreated(context.Background(), testEvent(clientID, 15000))
	assert.ErrorContains(t, err, "inserting proposal")
	assert.NoError(t, dbmock.ExpectationsWereMet())
}

func TestHandler_MalformedPayloadIsPermanent(t *testing.T) {
	handler := NewHandler(nil)

	err := handler.Consume(context.Background(), "not json")
	require.Error(t, err)

	// Permanent errors must not be retried by the consumer policy.
	var permanent interface{ Unwrap() error }
	assert.ErrorAs(t, err, &permanent)
}

func TestHandler_DispatchesToService(t *testing.T) {
	db, dbmock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	repo := new(mockRepository)
	ob := new(mockOutbox)
	clients := new(mockClientLookup)
	service := newTestService(db, repo, ob, clients, func(int) int { return 300 })
	handler := NewHandler(service)

	clientID := uuid.New()
	clients.On("GetByID", mock.Anything, clientID).Return(storedClient(clientID), nil)
	repo.On("Insert", mock.Anything, mock.Anything, mock.Anything).Return(nil)
	ob.On("AddEvent", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	dbmock.ExpectBegin()
	dbmock.ExpectCommit()

	payload, err := json.Marshal(testEvent(clientID, 15000))
	require.NoError(t, err)

	assert.NoError(t, handler.Consume(context.Background(), string(payload)))
}
