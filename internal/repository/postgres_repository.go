package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/telecomx/user-service/internal/domain"
)

const pgUniqueViolation = "23505"

// PgxQuerier is the subset of *pgxpool.Pool the Postgres repositories use.
type PgxQuerier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const userColumns = `user_id, name, email, address, phone, suspended, deleted, created_at, updated_at`

type postgresUserRepository struct {
	db PgxQuerier
}

// NewPostgresUserRepository returns a Postgres-backed implementation.
func NewPostgresUserRepository(db PgxQuerier) UserRepository {
	return &postgresUserRepository{db: db}
}

func (r *postgresUserRepository) FindActiveByNameOrEmail(ctx context.Context, name, email, excludeUserID string) (*domain.User, error) {
	if name == "" && email == "" {
		return nil, domain.ErrUserNotFound
	}
	const query = `
        SELECT ` + userColumns + `
        FROM users
        WHERE NOT deleted
          AND (($1 <> '' AND name = $1) OR ($2 <> '' AND email = $2))
          AND ($3 = '' OR user_id <> $3)
        ORDER BY id
        LIMIT 1`

	return scanUser(r.db.QueryRow(ctx, query, name, email, excludeUserID))
}

func (r *postgresUserRepository) FindByUserID(ctx context.Context, userID string) (*domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users WHERE user_id = $1`

	return scanUser(r.db.QueryRow(ctx, query, userID))
}

func (r *postgresUserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users WHERE email = $1 AND NOT deleted
        ORDER BY id
        LIMIT 1`

	return scanUser(r.db.QueryRow(ctx, query, email))
}

func (r *postgresUserRepository) Search(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users
        WHERE NOT deleted
          AND ($1 = '' OR strpos(lower(name), lower($1)) > 0 OR strpos(lower(email), lower($1)) > 0)
        ORDER BY id
        OFFSET $2
        LIMIT $3`

	var limit any
	if filter.Limit > 0 {
		limit = filter.Limit
	}

	rows, err := r.db.Query(ctx, query, filter.Query, filter.Offset, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, *user)
	}
	return users, rows.Err()
}

func (r *postgresUserRepository) Save(ctx context.Context, user *domain.User) error {
	const query = `
        INSERT INTO users (` + userColumns + `)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
        ON CONFLICT (user_id) DO UPDATE SET
            name = EXCLUDED.name,
            email = EXCLUDED.email,
            address = EXCLUDED.address,
            phone = EXCLUDED.phone,
            suspended = EXCLUDED.suspended,
            deleted = EXCLUDED.deleted,
            updated_at = EXCLUDED.updated_at`

	address, err := json.Marshal(user.Address)
	if err != nil {
		return fmt.Errorf("encode address: %w", err)
	}
	phone, err := json.Marshal(user.Phone)
	if err != nil {
		return fmt.Errorf("encode phone: %w", err)
	}

	_, err = r.db.Exec(ctx, query,
		user.UserID,
		user.Name,
		user.Email,
		address,
		phone,
		user.Suspended,
		user.Deleted,
		user.CreatedAt,
		user.UpdatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgUniqueViolation {
		return domain.ErrDuplicateUser
	}
	return err
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user    domain.User
		address []byte
		phone   []byte
	)
	if err := row.Scan(
		&user.UserID,
		&user.Name,
		&user.Email,
		&address,
		&phone,
		&user.Suspended,
		&user.Deleted,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrUserNotFound
		}
		return nil, err
	}
	if len(address) > 0 {
		if err := json.Unmarshal(address, &user.Address); err != nil {
			return nil, fmt.Errorf("decode address: %w", err)
		}
	}
	if len(phone) > 0 {
		if err := json.Unmarshal(phone, &user.Phone); err != nil {
			return nil, fmt.Errorf("decode phone: %w", err)
		}
	}
	return &user, nil
}

type postgresCounterRepository struct {
	db PgxQuerier
}

// NewPostgresCounterRepository returns a counter store on the counters table.
func NewPostgresCounterRepository(db PgxQuerier) CounterRepository {
	return &postgresCounterRepository{db: db}
}

func (r *postgresCounterRepository) Increment(ctx context.Context, name string) (int64, error) {
	const query = `
        INSERT INTO counters (name, seq) VALUES ($1, 1)
        ON CONFLICT (name) DO UPDATE SET seq = counters.seq + 1
        RETURNING seq`

	var seq int64
	if err := r.db.QueryRow(ctx, query, name).Scan(&seq); err != nil {
		return 0, err
	}
	return seq, nil
}
