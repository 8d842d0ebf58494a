package card

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/credsys/credit-pipeline/pkg/events"
	"github.com/credsys/credit-pipeline/pkg/resilience"
)

// Service issues the cards granted by an approved proposal. Issuance is
// idempotent per proposal so redelivered events do not duplicate cards.
type Service struct {
	repo      Repository
	generator *Generator
	logger    zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, generator: NewGenerator(), logger: logger}
}

func (s *Service) HandleProposalApproved(ctx context.Context, event events.CreditProposalApproved) error {
	proposalID, err := uuid.Parse(event.ProposalID)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("invalid proposal id %q: %w", event.ProposalID, err))
	}
	clientID, err := uuid.Parse(event.ClientID)
	if err != nil {
		return resilience.Permanent(fmt.Errorf("invalid client id %q: %w", event.ClientID, err))
	}

	exists, err := s.repo.ExistsByProposal(ctx, proposalID)
	if err != nil {
		return fmt.Errorf("checking proposal cards: %w", err)
	}
	if exists {
		s.logger.Debug().
			Str("proposal_id", proposalID.String()).
			Msg("cards already issued for proposal, skipping")
		return nil
	}

	cards := make([]*Card, 0, event.CardsAllowed)
	for i := 0; i < event.CardsAllowed; i++ {
		cards = append(cards, NewCard(
			proposalID,
			clientID,
			event.ClientName,
			s.generator.CardNumber(),
			s.generator.CVV(),
			s.generator.ExpirationDate(),
			event.ApprovedLimit,
		))
	}

	if err := s.repo.InsertBatch(ctx, cards); err != nil {
		return fmt.Errorf("inserting cards: %w", err)
	}

	s.logger.Info().
		Str("proposal_id", proposalID.String()).
		Str("client_id", clientID.String()).
		Int("cards", len(cards)).
		Msg("cards issued")

	return nil
}

func (s *Service) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Card, error) {
	return s.repo.ListByClient(ctx, clientID)
}

// Handler adapts the service to the broker consumer contract.
type Handler struct {
	service *Service
}

func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) Consume(ctx context.Context, message string) error {
	var event events.CreditProposalApproved
	if err := json.Unmarshal([]byte(message), &event); err != nil {
		return resilience.Permanent(fmt.Errorf("decoding CreditProposalApproved: %w", err))
	}
	return h.service.HandleProposalApproved(ctx, event)
}
