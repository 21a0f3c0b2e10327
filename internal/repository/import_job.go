package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/deckardhq/deckard/internal/entity"
)

// ImportJobRepository abstracts persistence for import jobs.
type ImportJobRepository interface {
	Create(ctx context.Context, job *entity.ImportJob) (*entity.ImportJob, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*entity.ImportJob, error)

	// ClaimPending atomically moves the oldest pending job to
	// processing and returns it, or nil when no job is waiting.
	ClaimPending(ctx context.Context) (*entity.ImportJob, error)

	Update(ctx context.Context, job *entity.ImportJob) error
}
