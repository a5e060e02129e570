package users

import (
	"context"
	"database/sql"
	"errors"

	"callcenter-backend/internal/auth"
	"callcenter-backend/pkg/utils"

	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrNotFound   = errors.New("user not found")
	ErrEmailTaken = errors.New("email already registered")
)

// Repository is the credential store contract. Create returns the account
// as stored; implementations promote the first account to admin atomically
// with the insert.
type Repository interface {
	Create(ctx context.Context, u User) (User, error)
	ByID(ctx context.Context, id string) (User, error)
	ByEmail(ctx context.Context, email string) (User, error)
	ByPhoneNumber(ctx context.Context, number string) (User, error)
	SetRefreshToken(ctx context.Context, id, token string) error
	List(ctx context.Context) ([]User, error)
}

// PostgresRepo assumes a users table:
//
//	id TEXT PRIMARY KEY, username TEXT NOT NULL, email TEXT NOT NULL UNIQUE,
//	password_hash TEXT NOT NULL, role TEXT NOT NULL, phone_number TEXT NOT NULL,
//	refresh_token TEXT NOT NULL DEFAULT '', created_at TIMESTAMPTZ NOT NULL
type PostgresRepo struct {
	db *sql.DB
}

func NewPostgresRepo(db *sql.DB) *PostgresRepo {
	return &PostgresRepo{db: db}
}

const userColumns = `id, username, email, password_hash, role, phone_number, refresh_token, created_at`

func (r *PostgresRepo) Create(ctx context.Context, u User) (User, error) {
	err := utils.WithTx(ctx, r.db, nil, func(ctx context.Context, tx *sql.Tx) error {
		// Serialize registrations so exactly one account can observe the
		// empty table and win the admin role.
		if _, err := tx.ExecContext(ctx, `LOCK TABLE users IN SHARE ROW EXCLUSIVE MODE`); err != nil {
			return err
		}
		var n int
		if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM users`).Scan(&n); err != nil {
			return err
		}
		if n == 0 {
			u.Role = auth.RoleAdmin
		}

		const q = `
INSERT INTO users (id, username, email, password_hash, role, phone_number, refresh_token, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
		if _, err := tx.ExecContext(ctx, q,
			u.ID, u.Username, u.Email, u.PasswordHash, u.Role, u.PhoneNumber, u.RefreshToken, u.CreatedAt,
		); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrEmailTaken
			}
			return err
		}
		return nil
	})
	if err != nil {
		return User{}, err
	}
	return u, nil
}

func (r *PostgresRepo) ByID(ctx context.Context, id string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE id = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, id))
}

func (r *PostgresRepo) ByEmail(ctx context.Context, email string) (User, error) {
	const q = `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, email))
}

func (r *PostgresRepo) ByPhoneNumber(ctx context.Context, number string) (User, error) {
	// Multiple agents on one number is a misconfiguration; pick the oldest
	// registration deterministically.
	const q = `SELECT ` + userColumns + ` FROM users WHERE phone_number = $1 ORDER BY created_at ASC LIMIT 1`
	return r.scanOne(r.db.QueryRowContext(ctx, q, number))
}

func (r *PostgresRepo) SetRefreshToken(ctx context.Context, id, token string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE users SET refresh_token = $2 WHERE id = $1`, id, token)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *PostgresRepo) List(ctx context.Context) ([]User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []User
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.PhoneNumber, &u.RefreshToken, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

func (r *PostgresRepo) scanOne(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.Role, &u.PhoneNumber, &u.RefreshToken, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrNotFound
	}
	if err != nil {
		return User{}, err
	}
	return u, nil
}
