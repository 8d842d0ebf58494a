package proposal

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credsys/credit-pipeline/pkg/client"
	"github.com/credsys/credit-pipeline/pkg/events"
	"github.com/credsys/credit-pipeline/pkg/outbox"
	"github.com/credsys/credit-pipeline/pkg/resilience"
)

// ClientLookup resolves the client behind a ClientCreated event. The
// document number travels on the proposal events but not on the client one.
type ClientLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (*client.Client, error)
}

// Service scores and evaluates a proposal for each created client. The
// proposal row and its outcome event are committed in one transaction.
type Service struct {
	db         *sql.DB
	repo       Repository
	outbox     outbox.Store
	clients    ClientLookup
	calculator *ScoreCalculator
	evaluator  *Evaluator
	logger     zerolog.Logger
}

func NewService(db *sql.DB, repo Repository, store outbox.Store, clients ClientLookup, logger zerolog.Logger) *Service {
	return &Service{
		db:         db,
		repo:       repo,
		outbox:     store,
		clients:    clients,
		calculator: NewScoreCalculator(),
		evaluator:  NewEvaluator(),
		logger:     logger,
	}
}

func (s *Service) HandleClientCreated(ctx context.Context, event events.ClientCreated) error {
	clientID, err := uuid.Parse(event.ClientID)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("invalid client id %q: %w", event.ClientID, err))
	}

	c, err := s.clients.GetByID(ctx, clientID)
	if err != nil {
		return fmt.Errorf("loading client %s: %w", clientID, err)
	}

	score := s.calculator.Calculate(event.MonthlyIncome, event.DateBirth)
	p := NewProposal(clientID, event.Name, c.Document.Number, event.MonthlyIncome, score)
	s.evaluator.Evaluate(p)

	payload, eventType, err := outcomeEvent(p)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	if err := s.repo.Insert(ctx, tx, p); err != nil {
		return fmt.Errorf("inserting proposal: %w", err)
	}
	if err := s.outbox.AddEvent(ctx, tx, eventType, string(payload)); err != nil {
		return fmt.Errorf("staging event: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}

	s.logger.Info().
		Str("proposal_id", p.ID.String()).
		Str("client_id", p.ClientID.String()).
		Int("score", p.Score).
		Str("status", string(p.Status)).
		Msg("proposal evaluated")

	return nil
}

func outcomeEvent(p *Proposal) ([]byte, string, error) {
	if p.Status == StatusApproved {
		payload, err := json.Marshal(events.CreditProposalApproved{
			ProposalID:    p.ID.String(),
			ClientID:      p.ClientID.String(),
			ClientName:    p.ClientName,
			Document:      p.Document,
			Score:         p.Score,
			ApprovedLimit: p.ApprovedLimit,
			CardsAllowed:  p.CardsAllowed,
			ApprovalDate:  p.EvaluationDate,
		})
		if err != nil {
			return nil, "", fmt.Errorf("encoding event: %w", err)
		}
		return payload, events.TypeCreditProposalApproved, nil
	}

	payload, err := json.Marshal(events.CreditProposalRejected{
		ProposalID:     p.ID.String(),
		ClientID:       p.ClientID.String(),
		ClientName:     p.ClientName,
		Document:       p.Document,
		Score:          p.Score,
		Reason:         p.RejectionReason,
		EvaluationDate: p.EvaluationDate,
	})
	if err != nil {
		return nil, "", fmt.Errorf("encoding event: %w", err)
	}
	return payload, events.TypeCreditProposalRejected, nil
}

// Handler adapts the service to the broker consumer contract.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Consume(ctx context.Context, message string) error {
	var event events.ClientCreated
	if err := json.Unmarshal([]byte(message), &event); err != nil {
		return resilience.Permanent(fmt.Errorf("decoding ClientCreated: %w", err))
	}
	if event.DateBirth.After(time.Now().UTC()) {
		return resilience.Permanent(fmt.Errorf("invalid date of birth %s", event.DateBirth))
	}
	return h.service.HandleClientCreated(ctx, event)
}
