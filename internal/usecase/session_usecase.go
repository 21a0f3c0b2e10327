package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
)

// SessionUsecase encapsulates the study-session lifecycle. Ending a
// session aggregates its reviews and drives adaptive card generation;
// generation failures degrade the report but never fail the end call.
type SessionUsecase interface {
	StartSession(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID) (*entity.StudySession, error)
	EndSession(ctx context.Context, userID, sessionID uuid.UUID) (*entity.GenerationReport, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*entity.StudySession, error)
}

// NewSessionUsecase wires the session lifecycle with its collaborators.
func NewSessionUsecase(
	sessions repository.StudySessionRepository,
	study repository.StudyRepository,
	cards repository.CardRepository,
	extractor TopicExtractor,
	generator CardGenerator,
	logger *logrus.Logger,
) SessionUsecase {
	return &sessionUsecase{
		sessions:  sessions,
		study:     study,
		cards:     cards,
		extractor: extractor,
		generator: generator,
		logger:    logger,
		clock:     time.Now,
	}
}

type sessionUsecase struct {
	sessions  repository.StudySessionRepository
	study     repository.StudyRepository
	cards     repository.CardRepository
	extractor TopicExtractor
	generator CardGenerator
	logger    *logrus.Logger
	clock     func() time.Time
}

func (u *sessionUsecase) StartSession(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID) (*entity.StudySession, error) {
	session := &entity.StudySession{
		ID:        uuid.New(),
		UserID:    userID,
		DeckID:    deckID,
		StartedAt: u.clock(),
	}
	return u.sessions.Create(ctx, session)
}

func (u *sessionUsecase) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*entity.StudySession, error) {
	return u.sessions.GetByID(ctx, userID, sessionID)
}

// EndSession finalizes the session exactly once. The repository's
// conditional update arbitrates concurrent end calls; losers observe
// entity.ErrSessionAlreadyEnded.
func (u *sessionUsecase) EndSession(ctx context.Context, userID, sessionID uuid.UUID) (*entity.GenerationReport, error) {
	session, err := u.sessions.MarkEnded(ctx, userID, sessionID, u.clock())
	if err != nil {
		return nil, err
	}

	reviews, err := u.study.ReviewsInWindow(ctx, userID, session.StartedAt, *session.EndedAt)
	if err != nil {
		return nil, err
	}

	stats := summarize(reviews)
	session.CardsReviewed = len(reviews)
	session.CorrectCount = correctCount(reviews)
	session.Stats = stats

	report := &entity.GenerationReport{
		SessionID:     session.ID,
		CardsReviewed: session.CardsReviewed,
		CorrectCount:  session.CorrectCount,
	}

	if len(reviews) == 0 {
		report.Message = "No cards reviewed in this session."
		if err := u.sessions.Finalize(ctx, session); err != nil {
			return nil, err
		}
		return report, nil
	}

	buckets := u.generateForSession(ctx, session, reviews)
	stats.ByDifficulty = buckets
	for _, b := range buckets {
		stats.Generated += b.Generated()
	}
	report.Generated = stats.Generated
	report.ByDifficulty = buckets
	report.Message = fmt.Sprintf("Reviewed %d cards, generated %d new cards.", session.CardsReviewed, stats.Generated)

	if err := u.sessions.Finalize(ctx, session); err != nil {
		return nil, err
	}
	return report, nil
}

func summarize(reviews []entity.Review) *entity.SessionStats {
	stats := &entity.SessionStats{}
	if len(reviews) == 0 {
		return stats
	}
	totalLatency := 0
	for _, r := range reviews {
		totalLatency += r.LatencyMs
	}
	stats.AvgLatencyMs = totalLatency / len(reviews)
	stats.AccuracyPct = float64(correctCount(reviews)) / float64(len(reviews)) * 100
	return stats
}

func correctCount(reviews []entity.Review) int {
	n := 0
	for _, r := range reviews {
		if r.Response.Correct() {
			n++
		}
	}
	return n
}
