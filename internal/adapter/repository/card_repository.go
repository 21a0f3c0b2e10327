package repository

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
	"github.com/deckardhq/deckard/pkg/filterexpr"
)

const cardColumns = "c.id, c.deck_id, c.type, c.front, c.back, c.tags, c.source_excerpt, c.created_at, c.updated_at"

type cardRepository struct {
	pool *pgxpool.Pool
}

// NewCardRepository constructs a pgx-backed card repository.
func NewCardRepository(pool *pgxpool.Pool) repository.CardRepository {
	return &cardRepository{pool: pool}
}

// CreateWithState inserts the card and its scheduler state in one
// transaction so no card exists unscheduled.
func (r *cardRepository) CreateWithState(ctx context.Context, card *entity.Card, state entity.SchedulerState) (*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertCard = `
		INSERT INTO cards (id, deck_id, type, front, back, tags, source_excerpt, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	if _, err := tx.Exec(ctx, insertCard,
		card.ID, card.DeckID, card.Type, card.Front, card.Back, card.Tags, card.SourceExcerpt, card.CreatedAt, card.UpdatedAt,
	); err != nil {
		return nil, translatePgError(err, entity.ErrCardNotFound)
	}

	const insertState = `
		INSERT INTO scheduler_states (card_id, ease, interval_days, repetitions, next_due_at, last_reviewed_at)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := tx.Exec(ctx, insertState,
		card.ID, state.Ease, state.IntervalDays, state.Repetitions, state.NextDueAt, state.LastReviewedAt,
	); err != nil {
		return nil, fmt.Errorf("create scheduler state: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	copy := *card
	return &copy, nil
}

func (r *cardRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM cards c WHERE c.id = $1`, cardColumns)
	card, err := scanCard(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, translatePgError(err, entity.ErrCardNotFound)
	}
	return card, nil
}

func (r *cardRepository) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}
	q := fmt.Sprintf(`SELECT %s FROM cards c WHERE c.id = ANY($1)`, cardColumns)
	rows, err := r.pool.Query(ctx, q, ids)
	if err != nil {
		return nil, fmt.Errorf("list cards by ids: %w", err)
	}
	defer rows.Close()
	return collectCards(rows)
}

func (r *cardRepository) List(ctx context.Context, query *repository.ListCardQuery) ([]*entity.Card, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	clause, err := filterexpr.Compile(query, cardListSchema)
	if err != nil {
		return nil, 0, err
	}

	args := []any{query.DeckID}
	where, filterArgs := clause.Where(len(args) + 3)
	cond := "c.deck_id = $1"
	if where != "" {
		cond += " AND " + where
	}

	q := fmt.Sprintf(`
		SELECT %s, count(*) OVER() AS total_count
		FROM cards c
		WHERE %s
		ORDER BY %s
		LIMIT $2 OFFSET $3`, cardColumns, cond, clause.OrderBy())

	args = append(args, query.PageSize, query.Offset())
	args = append(args, filterArgs...)

	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list cards: %w", err)
	}
	defer rows.Close()

	var cards []*entity.Card
	var total int64
	for rows.Next() {
		var card entity.Card
		if err := rows.Scan(
			&card.ID, &card.DeckID, &card.Type, &card.Front, &card.Back,
			&card.Tags, &card.SourceExcerpt, &card.CreatedAt, &card.UpdatedAt,
			&total,
		); err != nil {
			return nil, 0, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, &card)
	}
	return cards, total, rows.Err()
}

func (r *cardRepository) Update(ctx context.Context, card *entity.Card) (*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const q = `
		UPDATE cards
		SET front = $2, back = $3, tags = $4, updated_at = $5
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, card.ID, card.Front, card.Back, card.Tags, card.UpdatedAt)
	if err != nil {
		return nil, translatePgError(err, entity.ErrCardNotFound)
	}
	if tag.RowsAffected() == 0 {
		return nil, entity.ErrCardNotFound
	}
	copy := *card
	return &copy, nil
}

// Delete removes the card together with its scheduler state and review
// history.
func (r *cardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM scheduler_states WHERE card_id = $1`, id); err != nil {
		return fmt.Errorf("delete scheduler state: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM reviews WHERE card_id = $1`, id); err != nil {
		return fmt.Errorf("delete reviews: %w", err)
	}
	tag, err := tx.Exec(ctx, `DELETE FROM cards WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete card: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrCardNotFound
	}
	return tx.Commit(ctx)
}

func (r *cardRepository) Fronts(ctx context.Context, deckIDs []uuid.UUID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(deckIDs) == 0 {
		return nil, nil
	}
	rows, err := r.pool.Query(ctx, `SELECT front FROM cards WHERE deck_id = ANY($1)`, deckIDs)
	if err != nil {
		return nil, fmt.Errorf("list fronts: %w", err)
	}
	defer rows.Close()

	var fronts []string
	for rows.Next() {
		var front string
		if err := rows.Scan(&front); err != nil {
			return nil, fmt.Errorf("scan front: %w", err)
		}
		fronts = append(fronts, front)
	}
	return fronts, rows.Err()
}

func scanCard(row pgx.Row) (*entity.Card, error) {
	var card entity.Card
	if err := row.Scan(
		&card.ID, &card.DeckID, &card.Type, &card.Front, &card.Back,
		&card.Tags, &card.SourceExcerpt, &card.CreatedAt, &card.UpdatedAt,
	); err != nil {
		return nil, err
	}
	return &card, nil
}

func collectCards(rows pgx.Rows) ([]*entity.Card, error) {
	var cards []*entity.Card
	for rows.Next() {
		card, err := scanCard(rows)
		if err != nil {
			return nil, fmt.Errorf("scan card: %w", err)
		}
		cards = append(cards, card)
	}
	return cards, rows.Err()
}
