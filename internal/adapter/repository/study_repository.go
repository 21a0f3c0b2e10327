package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
	"github.com/deckardhq/deckard/pkg/filterexpr"
)

type studyRepository struct {
	pool *pgxpool.Pool
}

// NewStudyRepository constructs a pgx-backed study repository.
func NewStudyRepository(pool *pgxpool.Pool) repository.StudyRepository {
	return &studyRepository{pool: pool}
}

func (r *studyRepository) Schedule(ctx context.Context, cardID uuid.UUID) (*repository.CardSchedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const q = `
		SELECT s.card_id, s.ease, s.interval_days, s.repetitions, s.next_due_at, s.last_reviewed_at,
		       d.id, d.owner_id
		FROM scheduler_states s
		JOIN cards c ON c.id = s.card_id
		JOIN decks d ON d.id = c.deck_id
		WHERE s.card_id = $1`
	var schedule repository.CardSchedule
	err := r.pool.QueryRow(ctx, q, cardID).Scan(
		&schedule.State.CardID, &schedule.State.Ease, &schedule.State.IntervalDays,
		&schedule.State.Repetitions, &schedule.State.NextDueAt, &schedule.State.LastReviewedAt,
		&schedule.DeckID, &schedule.OwnerID,
	)
	if err != nil {
		return nil, translatePgError(err, entity.ErrSchedulerStateNotFound)
	}
	return &schedule, nil
}

// RecordReview appends the review row and replaces the card's scheduler
// state in one transaction.
func (r *studyRepository) RecordReview(ctx context.Context, review *entity.Review, state entity.SchedulerState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertReview = `
		INSERT INTO reviews (id, card_id, user_id, response, ease, latency_ms, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := tx.Exec(ctx, insertReview,
		review.ID, review.CardID, review.UserID, review.Response, review.Ease, review.LatencyMs, review.CreatedAt,
	); err != nil {
		return fmt.Errorf("insert review: %w", err)
	}

	const updateState = `
		UPDATE scheduler_states
		SET ease = $2, interval_days = $3, repetitions = $4, next_due_at = $5, last_reviewed_at = $6
		WHERE card_id = $1`
	tag, err := tx.Exec(ctx, updateState,
		state.CardID, state.Ease, state.IntervalDays, state.Repetitions, state.NextDueAt, state.LastReviewedAt,
	)
	if err != nil {
		return fmt.Errorf("update scheduler state: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrSchedulerStateNotFound
	}
	return tx.Commit(ctx)
}

func (r *studyRepository) DueCards(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID, now time.Time, limit int) ([]repository.DueCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := `
		SELECT c.id, c.deck_id, c.type, c.front, c.back, c.tags, c.source_excerpt, c.created_at, c.updated_at,
		       s.card_id, s.ease, s.interval_days, s.repetitions, s.next_due_at, s.last_reviewed_at
		FROM scheduler_states s
		JOIN cards c ON c.id = s.card_id
		JOIN decks d ON d.id = c.deck_id
		WHERE d.owner_id = $1 AND s.next_due_at <= $2`
	args := []any{userID, now}
	if deckID != nil {
		q += ` AND c.deck_id = $3`
		args = append(args, *deckID)
	}
	q += fmt.Sprintf(` ORDER BY s.next_due_at, c.id LIMIT %d`, limit)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("due cards: %w", err)
	}
	defer rows.Close()

	var due []repository.DueCard
	for rows.Next() {
		var d repository.DueCard
		if err := rows.Scan(
			&d.Card.ID, &d.Card.DeckID, &d.Card.Type, &d.Card.Front, &d.Card.Back,
			&d.Card.Tags, &d.Card.SourceExcerpt, &d.Card.CreatedAt, &d.Card.UpdatedAt,
			&d.State.CardID, &d.State.Ease, &d.State.IntervalDays,
			&d.State.Repetitions, &d.State.NextDueAt, &d.State.LastReviewedAt,
		); err != nil {
			return nil, fmt.Errorf("scan due card: %w", err)
		}
		due = append(due, d)
	}
	return due, rows.Err()
}

func (r *studyRepository) ReviewsInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]entity.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const q = `
		SELECT id, card_id, user_id, response, ease, latency_ms, created_at
		FROM reviews
		WHERE user_id = $1 AND created_at >= $2 AND created_at <= $3
		ORDER BY created_at, id`
	rows, err := r.pool.Query(ctx, q, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("reviews in window: %w", err)
	}
	defer rows.Close()

	var reviews []entity.Review
	for rows.Next() {
		var review entity.Review
		if err := scanReview(rows, &review); err != nil {
			return nil, err
		}
		reviews = append(reviews, review)
	}
	return reviews, rows.Err()
}

func (r *studyRepository) ListReviews(ctx context.Context, query *repository.ListReviewQuery) ([]*entity.Review, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	clause, err := filterexpr.Compile(query, reviewListSchema)
	if err != nil {
		return nil, 0, err
	}

	cond := "r.user_id = $1"
	where, filterArgs := clause.Where(4)
	if where != "" {
		cond += " AND " + where
	}

	q := fmt.Sprintf(`
		SELECT r.id, r.card_id, r.user_id, r.response, r.ease, r.latency_ms, r.created_at,
		       count(*) OVER() AS total_count
		FROM reviews r
		WHERE %s
		ORDER BY %s
		LIMIT $2 OFFSET $3`, cond, clause.OrderBy())

	args := append([]any{query.UserID, query.PageSize, query.Offset()}, filterArgs...)
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list reviews: %w", err)
	}
	defer rows.Close()

	var reviews []*entity.Review
	var total int64
	for rows.Next() {
		var review entity.Review
		if err := rows.Scan(
			&review.ID, &review.CardID, &review.UserID, &review.Response,
			&review.Ease, &review.LatencyMs, &review.CreatedAt, &total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan review: %w", err)
		}
		reviews = append(reviews, &review)
	}
	return reviews, total, rows.Err()
}

func scanReview(row pgx.Row, review *entity.Review) error {
	if err := row.Scan(
		&review.ID, &review.CardID, &review.UserID, &review.Response,
		&review.Ease, &review.LatencyMs, &review.CreatedAt,
	); err != nil {
		return fmt.Errorf("scan review: %w", err)
	}
	return nil
}
