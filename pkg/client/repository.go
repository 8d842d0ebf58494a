package client

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("client not found")

type Repository interface {
	// Insert persists the client inside the caller's transaction.
	Insert(ctx context.Context, tx *sql.Tx, c *Client) error
	ExistsByDocument(ctx context.Context, documentNumber string) (bool, error)
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Client, error)
	List(ctx context.Context) ([]*Client, error)
}

type PostgresRepository struct {
	db *sql.DB
}

func NewPostgresRepository(db *sql.DB) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func (r *PostgresRepository) Insert(ctx context.Context, tx *sql.Tx, c *Client) error {
	query := `INSERT INTO clients (id, name, document_number, document_type, email, telephone, date_birth, monthly_income, created_at)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := tx.ExecContext(ctx, query,
		c.ID.String(),
		c.Name,
		c.Document.Number,
		string(c.Document.Type),
		c.Email,
		c.Telephone,
		c.DateBirth,
		c.MonthlyIncome,
		c.CreatedAt,
	)
	return err
}

func (r *PostgresRepository) ExistsByDocument(ctx context.Context, documentNumber string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM clients WHERE document_number = $1)`, documentNumber)
}

func (r *PostgresRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	return r.exists(ctx, `SELECT EXISTS(SELECT 1 FROM clients WHERE email = $1)`, email)
}

func (r *PostgresRepository) exists(ctx context.Context, query string, arg string) (bool, error) {
	var found bool
	if err := r.db.QueryRowContext(ctx, query, arg).Scan(&found); err != nil {
		return false, err
	}
	return found, nil
}

func (r *PostgresRepository) GetByID(ctx context.Context, id uuid.UUID) (*Client, error) {
	query := `SELECT id, name, document_number, document_type, email, telephone, date_birth, monthly_income, created_at
              FROM clients WHERE id = $1`

	c, err := scanClient(r.db.QueryRowContext(ctx, query, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

func (r *PostgresRepository) List(ctx context.Context) ([]*Client, error) {
	query := `SELECT id, name, document_number, document_type, email, telephone, date_birth, monthly_income, created_at
              FROM clients ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var clients []*Client
	for rows.Next() {
		c, err := scanClient(rows)
		if err != nil {
			return nil, err
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanClient(row rowScanner) (*Client, error) {
	var (
		id           string
		documentType string
		c            Client
	)
	err := row.Scan(
		&id,
		&c.Name,
		&c.Document.Number,
		&documentType,
		&c.Email,
		&c.Telephone,
		&c.DateBirth,
		&c.MonthlyIncome,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}

	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	c.ID = parsed
	c.Document.Type = DocumentType(documentType)
	c.DateBirth = c.DateBirth.UTC()
	c.CreatedAt = c.CreatedAt.UTC()

	return &c, nil
}
