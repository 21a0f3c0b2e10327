package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/deckardhq/deckard/internal/entity"
)

// StudySessionRepository abstracts persistence for study sessions.
type StudySessionRepository interface {
	Create(ctx context.Context, session *entity.StudySession) (*entity.StudySession, error)
	GetByID(ctx context.Context, userID, id uuid.UUID) (*entity.StudySession, error)

	// MarkEnded stamps the session's end time if and only if it has not
	// been ended yet. A session that is already ended yields
	// entity.ErrSessionAlreadyEnded, which is how concurrent end calls
	// are serialized: exactly one caller wins.
	MarkEnded(ctx context.Context, userID, id uuid.UUID, endedAt time.Time) (*entity.StudySession, error)

	// Finalize persists the aggregated counts and stats of an ended
	// session.
	Finalize(ctx context.Context, session *entity.StudySession) error
}
