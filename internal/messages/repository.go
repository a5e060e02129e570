package messages

import (
	"context"
	"database/sql"
)

// Repository is the append-only message log contract.
type Repository interface {
	Insert(ctx context.Context, m Message) error
	// List returns all messages, newest first.
	List(ctx context.Context) ([]Message, error)
	// ListByCounterparty returns messages to or from the given endpoint,
	// oldest first (thread display order).
	ListByCounterparty(ctx context.Context, counterparty string) ([]Message, error)
}

// PostgresRepo assumes a messages table:
//
//	id TEXT PRIMARY KEY, direction TEXT NOT NULL, from_number TEXT NOT NULL,
//	to_number TEXT NOT NULL, body TEXT NOT NULL, status TEXT NOT NULL,
//	date_sent TIMESTAMPTZ NOT NULL
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const messageColumns = `id, direction, from_number, to_number, body, status, date_sent`

func (r *PostgresRepo) Insert(ctx context.Context, m Message) error {
	const q = `
INSERT INTO messages (id, direction, from_number, to_number, body, status, date_sent)
VALUES ($1, $2, $3, $4, $5, $6, $7)
`
	_, err := r.db.ExecContext(ctx, q, m.ID, m.Direction, m.From, m.To, m.Body, m.Status, m.DateSent)
	return err
}

func (r *PostgresRepo) List(ctx context.Context) ([]Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM messages ORDER BY date_sent DESC`
	return r.query(ctx, q)
}

func (r *PostgresRepo) ListByCounterparty(ctx context.Context, counterparty string) ([]Message, error) {
	const q = `SELECT ` + messageColumns + ` FROM messages WHERE from_number = $1 OR to_number = $1 ORDER BY date_sent ASC`
	return r.query(ctx, q, counterparty)
}

func (r *PostgresRepo) query(ctx context.Context, q string, args ...any) ([]Message, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		var m Message
		if err := rows.Scan(&m.ID, &m.Direction, &m.From, &m.To, &m.Body, &m.Status, &m.DateSent); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
