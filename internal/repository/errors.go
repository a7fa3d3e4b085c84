package repository

import (
	"errors"

	"taskmanager/internal/domain"

	"github.com/jackc/pgx/v5"
)

// notFound maps pgx.ErrNoRows to the storage sentinel.
func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrRecordNotFound
	}
	return err
}
