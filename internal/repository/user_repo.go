package repository

import (
	"context"
	"errors"

	"taskmanager/internal/domain"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type UserRepository struct {
	db *pgxpool.Pool
}

func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	row := conn(ctx, r.db).QueryRow(ctx,
		`SELECT id, email, password, created_at
		 FROM users
		 WHERE email = $1`,
		email,
	)

	var u domain.User
	if err := row.Scan(&u.ID, &u.Email, &u.Password, &u.CreatedAt); err != nil {
		return nil, notFound(err)
	}
	return &u, nil
}

func (r *UserRepository) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := conn(ctx, r.db).QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM users WHERE email = $1)`, email,
	).Scan(&exists)
	return exists, err
}

// CreateUser inserts the user unless the email is taken. On conflict the
// stored row is left as is and u.ID is filled from it.
func (r *UserRepository) CreateUser(ctx context.Context, u *domain.User) (bool, error) {
	q := conn(ctx, r.db)
	err := q.QueryRow(ctx,
		`INSERT INTO users (email, password)
		 VALUES ($1, $2)
		 ON CONFLICT (email) DO NOTHING
		 RETURNING id, created_at`,
		u.Email, u.Password,
	).Scan(&u.ID, &u.CreatedAt)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, err
	}

	if err := q.QueryRow(ctx, `SELECT id, created_at FROM users WHERE email = $1`, u.Email).
		Scan(&u.ID, &u.CreatedAt); err != nil {
		return false, err
	}
	return false, nil
}
