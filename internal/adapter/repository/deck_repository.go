package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
)

type deckRepository struct {
	pool *pgxpool.Pool
}

// NewDeckRepository constructs a pgx-backed deck repository.
func NewDeckRepository(pool *pgxpool.Pool) repository.DeckRepository {
	return &deckRepository{pool: pool}
}

func (r *deckRepository) Create(ctx context.Context, deck *entity.Deck) (*entity.Deck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO decks (id, owner_id, title, description, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := r.pool.Exec(ctx, q, deck.ID, deck.OwnerID, deck.Title, deck.Description, deck.CreatedAt); err != nil {
		return nil, fmt.Errorf("create deck: %w", err)
	}
	copy := *deck
	return &copy, nil
}

func (r *deckRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Deck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const q = `
		SELECT id, owner_id, title, description, created_at
		FROM decks WHERE id = $1`
	deck, err := scanDeck(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, translatePgError(err, entity.ErrDeckNotFound)
	}
	return deck, nil
}

func (r *deckRepository) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Deck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const q = `
		SELECT id, owner_id, title, description, created_at
		FROM decks WHERE owner_id = $1
		ORDER BY created_at DESC, id`
	rows, err := r.pool.Query(ctx, q, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list decks: %w", err)
	}
	defer rows.Close()

	var decks []*entity.Deck
	for rows.Next() {
		deck, err := scanDeck(rows)
		if err != nil {
			return nil, fmt.Errorf("scan deck: %w", err)
		}
		decks = append(decks, deck)
	}
	return decks, rows.Err()
}

func (r *deckRepository) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tag, err := r.pool.Exec(ctx, `DELETE FROM decks WHERE id = $1 AND owner_id = $2`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete deck: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrDeckNotFound
	}
	return nil
}

func scanDeck(row pgx.Row) (*entity.Deck, error) {
	var deck entity.Deck
	if err := row.Scan(&deck.ID, &deck.OwnerID, &deck.Title, &deck.Description, &deck.CreatedAt); err != nil {
		return nil, err
	}
	return &deck, nil
}
