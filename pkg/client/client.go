// Package client manages credit system clients and emits the event that
// starts the proposal evaluation pipeline.
package client

import (
	"time"

	"github.com/google/uuid"
)

type Client struct {
	ID            uuid.UUID
	Name          string
	Document      Document
	Email         string
	Telephone     string
	DateBirth     time.Time
	MonthlyIncome float64
	CreatedAt     time.Time
}

// NewClient validates the document number and builds a client ready to be
// persisted.
func NewClient(name, documentNumber, email, telephone string, dateBirth time.Time, monthlyIncome float64) (*Client, error) {
	document, err := ParseDocument(documentNumber)
	if err != nil {
		return nil, err
	}

	return &Client{
		ID:            uuid.New(),
		Name:          name,
		Document:      document,
		Email:         email,
		Telephone:     telephone,
		DateBirth:     dateBirth,
		MonthlyIncome: monthlyIncome,
		CreatedAt:     time.Now().UTC(),
	}, nil
}
