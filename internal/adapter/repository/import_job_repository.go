package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
)

const jobColumns = "id, user_id, deck_id, source_type, topic, content, status, error, result_summary, created_at, completed_at"

type importJobRepository struct {
	pool *pgxpool.Pool
}

// NewImportJobRepository constructs a pgx-backed import job repository.
func NewImportJobRepository(pool *pgxpool.Pool) repository.ImportJobRepository {
	return &importJobRepository{pool: pool}
}

func (r *importJobRepository) Create(ctx context.Context, job *entity.ImportJob) (*entity.ImportJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	const q = `
		INSERT INTO import_jobs (id, user_id, deck_id, source_type, topic, content, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	if _, err := r.pool.Exec(ctx, q,
		job.ID, job.UserID, job.DeckID, job.SourceType, job.Topic, job.Content, job.Status, job.CreatedAt,
	); err != nil {
		return nil, fmt.Errorf("create import job: %w", err)
	}
	copy := *job
	return &copy, nil
}

func (r *importJobRepository) GetByID(ctx context.Context, userID, id uuid.UUID) (*entity.ImportJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT %s FROM import_jobs WHERE id = $1 AND user_id = $2`, jobColumns)
	job, err := scanJob(r.pool.QueryRow(ctx, q, id, userID))
	if err != nil {
		return nil, translatePgError(err, entity.ErrImportJobNotFound)
	}
	return job, nil
}

// ClaimPending flips the oldest pending job to processing. SKIP LOCKED
// lets multiple workers poll without contending on the same row.
func (r *importJobRepository) ClaimPending(ctx context.Context) (*entity.ImportJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`
		UPDATE import_jobs
		SET status = $1
		WHERE id = (
			SELECT id FROM import_jobs
			WHERE status = $2
			ORDER BY created_at
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		)
		RETURNING %s`, jobColumns)
	job, err := scanJob(r.pool.QueryRow(ctx, q, entity.ImportProcessing, entity.ImportPending))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("claim import job: %w", err)
	}
	return job, nil
}

func (r *importJobRepository) Update(ctx context.Context, job *entity.ImportJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	const q = `
		UPDATE import_jobs
		SET status = $2, error = $3, result_summary = $4, completed_at = $5
		WHERE id = $1`
	tag, err := r.pool.Exec(ctx, q, job.ID, job.Status, job.Error, job.ResultSummary, job.CompletedAt)
	if err != nil {
		return fmt.Errorf("update import job: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return entity.ErrImportJobNotFound
	}
	return nil
}

func scanJob(row pgx.Row) (*entity.ImportJob, error) {
	var job entity.ImportJob
	if err := row.Scan(
		&job.ID, &job.UserID, &job.DeckID, &job.SourceType, &job.Topic, &job.Content,
		&job.Status, &job.Error, &job.ResultSummary, &job.CreatedAt, &job.CompletedAt,
	); err != nil {
		return nil, err
	}
	return &job, nil
}
