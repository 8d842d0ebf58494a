// Package events defines the integration events exchanged between the credit
// pipeline services. Event type names double as routing keys on the broker.
package events

import "time"

const (
	TypeClientCreated          = "ClientCreated"
	TypeCreditProposalApproved = "CreditProposalApproved"
	TypeCreditProposalRejected = "CreditProposalRejected"
)

// ClientCreated is emitted after a client is persisted and triggers the
// credit proposal evaluation.
type ClientCreated struct {
	ClientID      string    `json:"client_id"`
	Name          string    `json:"name"`
	MonthlyIncome float64   `json:"monthly_income"`
	DateBirth     time.Time `json:"date_birth"`
}

// CreditProposalApproved carries the approved limit and card entitlement and
// triggers card issuance.
type CreditProposalApproved struct {
	ProposalID    string    `json:"proposal_id"`
	ClientID      string    `json:"client_id"`
	ClientName    string    `json:"client_name"`
	Document      string    `json:"document"`
	Score         int       `json:"score"`
	ApprovedLimit float64   `json:"approved_limit"`
	CardsAllowed  int       `json:"cards_allowed"`
	ApprovalDate  time.Time `json:"approval_date"`
}

// CreditProposalRejected records why a proposal was declined.
type CreditProposalRejected struct {
	ProposalID     string    `json:"proposal_id"`
	ClientID       string    `json:"client_id"`
	ClientName     string    `json:"client_name"`
	Document       string    `json:"document"`
	Score          int       `json:"score"`
	Reason         string    `json:"reason"`
	EvaluationDate time.Time `json:"evaluation_date"`
}
