package proposal

import (
	"context"
	"database/sql"
)

type Repository interface {
	// Insert persists the evaluated proposal inside the caller's transaction.
	Insert(ctx context.Context, tx *sql.Tx, p *Proposal) error
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, tx *sql.Tx, p *Proposal) error {
	query := `INSERT INTO proposals
              (id, client_id, client_name, document, monthly_income, score, created_at, evaluation_date, status, approved_limit, cards_allowed, rejection_reason)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	var reason *string
	if p.RejectionReason != "" {
		reason = &p.RejectionReason
	}

	_, err := tx.ExecContext(ctx, query,
		p.ID.String(),
		p.ClientID.String(),
		p.ClientName,
		p.Document,
		p.MonthlyIncome,
		p.Score,
		p.CreatedAt,
		p.EvaluationDate,
		string(p.Status),
		p.ApprovedLimit,
		p.CardsAllowed,
		reason,
	)
	return err
}
