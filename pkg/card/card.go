// Package card issues credit cards for approved proposals.
package card

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusIssued    Status = "issued"
	StatusActivated Status = "activated"
	StatusBlocked   Status = "blocked"
	StatusCanceled  Status = "canceled"
)

var (
	ErrCardCanceled      = errors.New("cannot activate a canceled card")
	ErrCardNotActive     = errors.New("card must be activated before use")
	ErrInsufficientLimit = errors.New("insufficient available limit")
)

type Card struct {
	ID             uuid.UUID
	ProposalID     uuid.UUID
	ClientID       uuid.UUID
	ClientName     string
	Number         string
	CVV            string
	ExpirationDate time.Time
	TotalLimit     float64
	AvailableLimit float64
	Status         Status
	IssueDate      time.Time
	ActivationDate *time.Time
	BlockDate      *time.Time
}

func NewCard(proposalID, clientID uuid.UUID, clientName, number, cvv string, expirationDate time.Time, totalLimit float64) *Card {
	return &Card{
		ID:             uuid.New(),
		ProposalID:     proposalID,
		ClientID:       clientID,
		ClientName:     clientName,
		Number:         number,
		CVV:            cvv,
		ExpirationDate: expirationDate,
		TotalLimit:     totalLimit,
		AvailableLimit: totalLimit,
		Status:         StatusIssued,
		IssueDate:      time.Now().UTC(),
	}
}

// Activate transitions an issued or blocked card to activated. Activating an
// already active card is a no-op.
func (c *Card) Activate() error {
	switch c.Status {
	case StatusActivated:
		return nil
	case StatusIssued, StatusBlocked:
		now := time.Now().UTC()
		c.Status = StatusActivated
		c.ActivationDate = &now
		return nil
	case StatusCanceled:
		return ErrCardCanceled
	default:
		return fmt.Errorf("cannot activate card with status %q", c.Status)
	}
}

// Use debits amount from the available limit.
func (c *Card) Use(amount float64) error {
	if c.Status != StatusActivated {
		return ErrCardNotActive
	}
	if c.AvailableLimit < amount {
		return ErrInsufficientLimit
	}
	c.AvailableLimit -= amount
	return nil
}
