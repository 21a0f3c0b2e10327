package repository

import (
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/deckardhq/deckard/internal/entity"
)

// translatePgError maps driver errors to domain sentinels. notFound is
// the sentinel substituted for pgx.ErrNoRows at the call site.
func translatePgError(err, notFound error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return entity.ErrDuplicateCardFront
		}
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return notFound
	}
	return err
}
