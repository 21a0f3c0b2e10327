package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
)

const sessionColumns = "id, user_id, deck_id, started_at, ended_at, cards_reviewed, correct_count, stats"

type sessionRepository struct {
	pool *pgxpool.Pool
}

// NewSessionRepository constructs a pgx-backed study session repository.
func NewSessionRepository(pool *pgxpool.Pool) repository.StudySessionRepository {
	return &sessionRepository{pool: pool}
}

func (r *sessionRepository) Create(ctx context.Context, session *entity.StudySession) (*entity.StudySession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO study_sessions (id, user_id, deck_id, started_at, cards_reviewed, correct_count)
		VALUES ($1, $2, $3, $4, 0, 0)`
	if _, err := r.pool.Exec(ctx, q, session.ID, session.UserID, session.DeckID, session.StartedAt); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	copy := *session
	return &copy, nil
}

func (r *sessionRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*entity.StudySession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM study_sessions WHERE id = $1`, sessionColumns)
	session, err := scanSession(r.pool.QueryRow(ctx, q, id))
	if err != nil {
		return nil, translatePgError(err, entity.ErrSessionNotFound)
	}
	if session.UserID != userID {
		return nil, entity.ErrNotSessionOwner
	}
	return session, nil
}

// MarkEnded stamps ended_at with a conditional update so exactly one of
// any concurrent end calls wins; the rest observe the conflict.
func (r *sessionRepository) MarkEnded(ctx context.Context, userID, id uuid.UUID, endedAt time.Time) (*entity.StudySession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
		UPDATE study_sessions
		SET ended_at = $3
		WHERE id = $1 AND user_id = $2 AND ended_at IS NULL
		RETURNING %s`, sessionColumns)
	session, err := scanSession(r.pool.QueryRow(ctx, q, id, userID, endedAt))
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("end session: %w", err)
	}

	// No row updated: distinguish missing, foreign and already-ended.
	existing, err := r.GetByID(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if existing.Ended() {
		return nil, entity.ErrSessionAlreadyEnded
	}
	return nil, entity.ErrSessionNotFound
}

func (r *sessionRepository) Finalize(ctx context.Context, session *entity.StudySession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var stats []byte
	if session.Stats != nil {
		encoded, err := json.Marshal(session.Stats)
		if err != nil {
			return fmt.Errorf("encode stats: %w", err)
		}
		stats = encoded
	}
	const q = `
		UPDATE study_sessions
		SET cards_reviewed = $2, correct_count = $3, stats = $4
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, session.ID, session.CardsReviewed, session.CorrectCount, stats)
	if err != nil {
		return fmt.Errorf("finalize session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrSessionNotFound
	}
	return nil
}

func scanSession(row pgx.Row) (*entity.StudySession, error) {
	var session entity.StudySession
	var stats []byte
	if err := row.Scan(
		&session.ID, &session.UserID, &session.DeckID, &session.StartedAt,
		&session.EndedAt, &session.CardsReviewed, &session.CorrectCount, &stats,
	); err != nil {
		return nil, err
	}
	if len(stats) > 0 {
		session.Stats = &entity.SessionStats{}
		if err := json.Unmarshal(stats, session.Stats); err != nil {
			return nil, fmt.Errorf("decode stats: %w", err)
		}
	}
	return &session, nil
}
