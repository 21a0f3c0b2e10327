package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/deckardhq/deckard/internal/entity"
)

// DeckRepository abstracts persistence for decks.
type DeckRepository interface {
	Create(ctx context.Context, deck *entity.Deck) (*entity.Deck, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Deck, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Deck, error)
	Delete(ctx context.Context, ownerID, id uuid.UUID) error
}

// ListCardQuery holds parameters for listing cards within a deck.
type ListCardQuery struct {
	Pagination
	FilterOrder

	DeckID uuid.UUID
}

// CardRepository abstracts persistence for cards and their scheduler
// state. Card creation always installs a fresh state row in the same
// transaction so no card is ever unscheduled.
type CardRepository interface {
	CreateWithState(ctx context.Context, card *entity.Card, state entity.SchedulerState) (*entity.Card, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.Card, error)
	ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Card, error)
	List(ctx context.Context, query *ListCardQuery) ([]*entity.Card, int64, error)
	Update(ctx context.Context, card *entity.Card) (*entity.Card, error)
	Delete(ctx context.Context, id uuid.UUID) error

	// Fronts returns the raw fronts of every card in the given decks,
	// used to seed the transient duplicate-suppression set.
	Fronts(ctx context.Context, deckIDs []uuid.UUID) ([]string, error)
}
