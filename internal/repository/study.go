package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/deckardhq/deckard/internal/entity"
)

// CardSchedule pairs a card's scheduler state with the ownership facts
// needed to authorize a review without a second round trip.
type CardSchedule struct {
	State   entity.SchedulerState
	DeckID  uuid.UUID
	OwnerID uuid.UUID
}

// DueCard is one entry of the study queue.
type DueCard struct {
	Card  entity.Card
	State entity.SchedulerState
}

// ListReviewQuery holds parameters for listing a user's review history.
type ListReviewQuery struct {
	Pagination
	FilterOrder

	UserID uuid.UUID
}

// StudyRepository covers review recording and the study queue.
type StudyRepository interface {
	// Schedule loads the scheduler state for a card together with the
	// owning deck. Returns entity.ErrSchedulerStateNotFound when the
	// card has no state row.
	Schedule(ctx context.Context, cardID uuid.UUID) (*CardSchedule, error)

	// RecordReview appends the review and updates the card's scheduler
	// state in a single transaction. Either both writes commit or
	// neither does.
	RecordReview(ctx context.Context, review *entity.Review, state entity.SchedulerState) error

	// DueCards returns up to limit cards owned by the user whose next
	// due time is at or before now, ordered by due time ascending.
	DueCards(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID, now time.Time, limit int) ([]DueCard, error)

	// ReviewsInWindow returns the user's reviews recorded inside
	// [from, to], oldest first.
	ReviewsInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]entity.Review, error)

	ListReviews(ctx context.Context, query *ListReviewQuery) ([]*entity.Review, int64, error)
}
