package client

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credsys/credit-pipeline/pkg/events"
	"github.com/credsys/credit-pipeline/pkg/outbox"
)

var (
	ErrDocumentExists = errors.New("document number already registered")
	ErrEmailExists    = errors.New("email already registered")
)

// Service creates clients and stages the ClientCreated event through the
// outbox so the insert and the event share one transaction.
type Service struct {
	db     *sql.DB
	repo   Repository
	outbox outbox.Store
	logger zerolog.Logger
}

func NewService(db *sql.DB, repo Repository, store outbox.Store, logger zerolog.Logger) *Service {
	return &Service{db: db, repo: repo, outbox: store, logger: logger}
}

type CreateInput struct {
	Name           string
	DocumentNumber string
	Email          string
	Telephone      string
	DateBirth      time.Time
	MonthlyIncome  float64
}

func (s *Service) Create(ctx context.Context, input CreateInput) (*Client, error) {
	// Normalize before the duplicate check so formatted and bare document
	// numbers cannot register twice.
	document, err := ParseDocument(input.DocumentNumber)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByDocument(ctx, document.Number)
	if err != nil {
		return nil, fmt.Errorf("checking document: %w", err)
	}
	if exists {
		return nil, ErrDocumentExists
	}

	exists, err = s.repo.ExistsByEmail(ctx, input.Email)
	if err != nil {
		return nil, fmt.Errorf("checking email: %w", err)
	}
	if exists {
		return nil, ErrEmailExists
	}

	c, err := NewClient(input.Name, input.DocumentNumber, input.Email, input.Telephone, input.DateBirth, input.MonthlyIncome)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(events.ClientCreated{
		ClientID:      c.ID.String(),
		Name:          c.Name,
		MonthlyIncome: c.MonthlyIncome,
		DateBirth:     c.DateBirth,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding event: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.repo.Insert(ctx, tx, c); err != nil {
		return nil, fmt.Errorf("inserting client: %w", err)
	}
	if err := s.outbox.AddEvent(ctx, tx, events.TypeClientCreated, string(payload)); err != nil {
		return nil, fmt.Errorf("staging event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Info().
		Str("client_id", c.ID.String()).
		Str("document_type", string(c.Document.Type)).
		Msg("client created")

	return c, nil
}

func (s *Service) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) List(ctx context.Context) ([]*Client, error) {
	return s.repo.List(ctx)
}
