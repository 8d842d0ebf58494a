package api

import (
	"time"

	"github.com/credsys/credit-pipeline/pkg/card"
	"github.com/credsys/credit-pipeline/pkg/client"
)

type CreateClientRequest struct {
	Name           string    `json:"name" validate:"required,min=3,max=200"`
	DocumentNumber string    `json:"document_number" validate:"required"`
	Email          string    `json:"email" validate:"required,email"`
	Telephone      string    `json:"telephone" validate:"required"`
	DateBirth      time.Time `json:"date_birth" validate:"required"`
	MonthlyIncome  float64   `json:"monthly_income" validate:"required,gt=0"`
}

type ClientResponse struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	DocumentNumber string    `json:"document_number"`
	DocumentType   string    `json:"document_type"`
	Email          string    `json:"email"`
	Telephone      string    `json:"telephone"`
	DateBirth      time.Time `json:"date_birth"`
	MonthlyIncome  float64   `json:"monthly_income"`
	CreatedAt      time.Time `json:"created_at"`
}

func toClientResponse(c *client.Client) ClientResponse {
	return ClientResponse{
		ID:             c.ID.String(),
		Name:           c.Name,
		DocumentNumber: c.Document.Number,
		DocumentType:   string(c.Document.Type),
		Email:          c.Email,
		Telephone:      c.Telephone,
		DateBirth:      c.DateBirth,
		MonthlyIncome:  c.MonthlyIncome,
		CreatedAt:      c.CreatedAt,
	}
}

type CardResponse struct {
	ID             string    `json:"id"`
	ProposalID     string    `json:"proposal_id"`
	ClientID       string    `json:"client_id"`
	Number         string    `json:"number"`
	ExpirationDate time.Time `json:"expiration_date"`
	TotalLimit     float64   `json:"total_limit"`
	AvailableLimit float64   `json:"available_limit"`
	Status         string    `json:"status"`
	IssueDate      time.Time `json:"issue_date"`
}

// toCardResponse masks all but the last four digits of the card number and
// never exposes the CVV.
func toCardResponse(c *card.Card) CardResponse {
	return CardResponse{
		ID:             c.ID.String(),
		ProposalID:     c.ProposalID.String(),
		ClientID:       c.ClientID.String(),
		Number:         maskCardNumber(c.Number),
		ExpirationDate: c.ExpirationDate,
		TotalLimit:     c.TotalLimit,
		AvailableLimit: c.AvailableLimit,
		Status:         string(c.Status),
		IssueDate:      c.IssueDate,
	}
}

func maskCardNumber(number string) string {
	if len(number) <= 4 {
		return number
	}
	masked := make([]byte, len(number))
	for i := range masked {
		masked[i] = '*'
	}
	copy(masked[len(number)-4:], number[len(number)-4:])
	return string(masked)
}
