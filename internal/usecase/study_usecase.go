package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
	"github.com/deckardhq/deckard/internal/srs"
)

const dueCardLimit = 20

// ReviewOutcome pairs the recorded review with the card's scheduling
// after the update, so callers can show the next due date immediately.
type ReviewOutcome struct {
	Review *entity.Review
	State  entity.SchedulerState
}

// StudyUsecase encapsulates review recording and the study queue.
type StudyUsecase interface {
	RecordReview(ctx context.Context, userID, cardID uuid.UUID, response entity.ReviewResponse, latencyMs int) (*ReviewOutcome, error)
	DueCards(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID) ([]repository.DueCard, error)
	ListReviews(ctx context.Context, query *repository.ListReviewQuery) ([]*entity.Review, int64, error)
}

// NewStudyUsecase wires the study repository with default behaviour.
func NewStudyUsecase(repo repository.StudyRepository) StudyUsecase {
	return &studyUsecase{
		repo:  repo,
		clock: time.Now,
	}
}

type studyUsecase struct {
	repo  repository.StudyRepository
	clock func() time.Time
}

func (u *studyUsecase) RecordReview(ctx context.Context, userID, cardID uuid.UUID, response entity.ReviewResponse, latencyMs int) (*ReviewOutcome, error) {
	if _, err := response.Quality(); err != nil {
		return nil, err
	}

	schedule, err := u.repo.Schedule(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if schedule.OwnerID != userID {
		return nil, entity.ErrNotDeckOwner
	}

	now := u.clock()
	next, err := srs.Next(schedule.State, response, now)
	if err != nil {
		return nil, err
	}

	review := &entity.Review{
		ID:        uuid.New(),
		CardID:    cardID,
		UserID:    userID,
		Response:  response,
		Ease:      next.Ease,
		LatencyMs: latencyMs,
		CreatedAt: now,
	}
	if err := u.repo.RecordReview(ctx, review, next); err != nil {
		return nil, err
	}

	return &ReviewOutcome{Review: review, State: next}, nil
}

func (u *studyUsecase) DueCards(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID) ([]repository.DueCard, error) {
	return u.repo.DueCards(ctx, userID, deckID, u.clock(), dueCardLimit)
}

func (u *studyUsecase) ListReviews(ctx context.Context, query *repository.ListReviewQuery) ([]*entity.Review, int64, error) {
	return u.repo.ListReviews(ctx, query)
}
