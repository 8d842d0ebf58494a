// Package proposal evaluates credit proposals for newly created clients and
// publishes the approval or rejection outcome.
package proposal

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

type Proposal struct {
	ID              uuid.UUID
	ClientID        uuid.UUID
	ClientName      string
	Document        string
	MonthlyIncome   float64
	Score           int
	CreatedAt       time.Time
	EvaluationDate  time.Time
	Status          Status
	ApprovedLimit   float64
	CardsAllowed    int
	RejectionReason string
}

func NewProposal(clientID uuid.UUID, clientName, document string, monthlyIncome float64, score int) *Proposal {
	return &Proposal{
		ID:            uuid.New(),
		ClientID:      clientID,
		ClientName:    clientName,
		Document:      document,
		MonthlyIncome: monthlyIncome,
		Score:         score,
		CreatedAt:     time.Now().UTC(),
		Status:        StatusPending,
	}
}

func (p *Proposal) approve(limit float64, cards int) {
	p.EvaluationDate = time.Now().UTC()
	p.Status = StatusApproved
	p.ApprovedLimit = limit
	p.CardsAllowed = cards
	p.RejectionReason = ""
}

func (p *Proposal) reject(reason string) {
	p.EvaluationDate = time.Now().UTC()
	p.Status = StatusRejected
	p.ApprovedLimit = 0
	p.CardsAllowed = 0
	p.RejectionReason = reason
}
