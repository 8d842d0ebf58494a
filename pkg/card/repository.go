package card

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
)

type Repository interface {
	InsertBatch(ctx context.Context, cards []*Card) error
	ExistsByProposal(ctx context.Context, proposalID uuid.UUID) (bool, error)
	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Card, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) InsertBatch(ctx context.Context, cards []*Card) error {
	if len(cards) == 0 {
		return nil
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `INSERT INTO cards
              (id, proposal_id, client_id, client_name, number, cvv, expiration_date, total_limit, available_limit, status, issue_date)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	for _, c := range cards {
		if _, err := tx.ExecContext(ctx, query,
			c.ID.String(),
			c.ProposalID.String(),
			c.ClientID.String(),
			c.ClientName,
			c.Number,
			c.CVV,
			c.ExpirationDate,
			c.TotalLimit,
			c.AvailableLimit,
			string(c.Status),
			c.IssueDate,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (r *PostgresRepository) ExistsByProposal(ctx context.Context, proposalID uuid.UUID) (bool, error) {
	var found bool
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM cards WHERE proposal_id = $1)`,
		proposalID.String()).Scan(&found)
	if err != nil {
		return false, err
	}
	return found, nil
}

func (r *PostgresRepository) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Card, error) {
	query := `SELECT id, proposal_id, client_id, client_name, number, cvv, expiration_date, total_limit, available_limit, status, issue_date, activation_date, block_date
              FROM cards WHERE client_id = $1 ORDER BY issue_date DESC`

	rows, err := r.db.QueryContext(ctx, query, clientID.String())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cards []*Card
	for rows.Next() {
		var (
			id         string
			proposalID string
			cID        string
			status     string
			c          Card
		)
		if err := rows.Scan(
			&id,
			&proposalID,
			&cID,
			&c.ClientName,
			&c.Number,
			&c.CVV,
			&c.ExpirationDate,
			&c.TotalLimit,
			&c.AvailableLimit,
			&status,
			&c.IssueDate,
			&c.ActivationDate,
			&c.BlockDate,
		); err != nil {
			return nil, err
		}

		if c.ID, err = uuid.Parse(id); err != nil {
			return nil, err
		}
		if c.ProposalID, err = uuid.Parse(proposalID); err != nil {
			return nil, err
		}
		if c.ClientID, err = uuid.Parse(cID); err != nil {
			return nil, err
		}
		c.Status = Status(status)

		cards = append(cards, &c)
	}
	return cards, rows.Err()
}
