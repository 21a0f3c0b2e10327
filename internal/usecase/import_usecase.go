package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
)

const (
	// maxImportChars clamps pasted content before it reaches the model.
	maxImportChars = 12000

	// maxImportCards caps how many cards one job may create.
	maxImportCards = 30

	// fallbackCardLimit caps sentence-derived cards when the model is
	// unavailable.
	fallbackCardLimit = 8

	excerptLen = 200
)

// ImportUsecase turns pasted text into cards asynchronously. Jobs are
// created pending and picked up by the background worker; callers poll
// job status.
type ImportUsecase interface {
	CreateTextJob(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID, topic, content string) (*entity.ImportJob, error)
	Job(ctx context.Context, userID, jobID uuid.UUID) (*entity.ImportJob, error)

	// ProcessPending claims and runs at most one pending job. It
	// reports whether a job was found so the worker can drain the
	// queue.
	ProcessPending(ctx context.Context) (bool, error)
}

// NewImportUsecase wires the import pipeline.
func NewImportUsecase(
	jobs repository.ImportJobRepository,
	decks repository.DeckRepository,
	cards repository.CardRepository,
	generator CardGenerator,
	logger *logrus.Logger,
) ImportUsecase {
	return &importUsecase{
		jobs:      jobs,
		decks:     decks,
		cards:     cards,
		generator: generator,
		logger:    logger,
		clock:     time.Now,
	}
}

type importUsecase struct {
	jobs      repository.ImportJobRepository
	decks     repository.DeckRepository
	cards     repository.CardRepository
	generator CardGenerator
	logger    *logrus.Logger
	clock     func() time.Time
}

func (u *importUsecase) CreateTextJob(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID, topic, content string) (*entity.ImportJob, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, entity.ErrInvalidImportContent
	}
	content = entity.TruncateText(content, maxImportChars)

	target, err := u.ensureDeck(ctx, userID, topic, deckID)
	if err != nil {
		return nil, err
	}

	job := &entity.ImportJob{
		ID:         uuid.New(),
		UserID:     userID,
		DeckID:     target,
		SourceType: entity.ImportSourceText,
		Topic:      strings.TrimSpace(topic),
		Content:    content,
		Status:     entity.ImportPending,
		CreatedAt:  u.clock(),
	}
	return u.jobs.Create(ctx, job)
}

func (u *importUsecase) Job(ctx context.Context, userID, jobID uuid.UUID) (*entity.ImportJob, error) {
	return u.jobs.GetByID(ctx, userID, jobID)
}

func (u *importUsecase) ProcessPending(ctx context.Context) (bool, error) {
	job, err := u.jobs.ClaimPending(ctx)
	if err != nil {
		return false, err
	}
	if job == nil {
		return false, nil
	}

	log := u.logger.WithFields(logrus.Fields{"job_id": job.ID, "deck_id": job.DeckID})
	log.Info("processing import job")

	created, err := u.process(ctx, job)
	now := u.clock()
	job.CompletedAt = &now
	if err != nil {
		job.Status = entity.ImportFailed
		job.Error = err.Error()
		log.WithError(err).Warn("import job failed")
	} else {
		job.Status = entity.ImportCompleted
		job.ResultSummary = fmt.Sprintf("Generated %d cards", created)
		log.WithField("cards", created).Info("import job completed")
	}
	if uerr := u.jobs.Update(ctx, job); uerr != nil {
		return true, uerr
	}
	return true, nil
}

// process generates cards for one claimed job and persists them. The
// model path is preferred; when it fails, sentence-derived fallback
// cards keep the job useful instead of failing it.
func (u *importUsecase) process(ctx context.Context, job *entity.ImportJob) (int, error) {
	topic := job.Topic
	if topic == "" {
		topic = "Imported deck"
	}

	items, err := u.generator.GenerateFromText(ctx, topic, job.Content, maxImportCards)
	if err != nil {
		u.logger.WithError(err).WithField("job_id", job.ID).
			Warn("model generation failed, falling back to sentence cards")
		items = fallbackCards(topic, job.Content)
	}
	if len(items) == 0 {
		return 0, entity.ErrInvalidImportContent
	}

	excerpt := entity.TruncateText(job.Content, excerptLen)

	created := 0
	for _, item := range items {
		if !item.Valid() {
			continue
		}
		now := u.clock()
		card := &entity.Card{
			ID:            uuid.New(),
			DeckID:        job.DeckID,
			Type:          entity.CardTypeBasic,
			Front:         item.Front,
			Back:          item.Back,
			Tags:          item.Tags,
			SourceExcerpt: excerpt,
		}
		card.Normalize(now)
		if _, err := u.cards.CreateWithState(ctx, card, entity.NewSchedulerState(card.ID, now)); err != nil {
			u.logger.WithError(err).WithField("front", card.Front).Warn("skipping generated card")
			continue
		}
		created++
	}
	if created == 0 {
		return 0, entity.ErrInvalidImportContent
	}
	return created, nil
}

// ensureDeck resolves the target deck, creating a fresh one titled
// after the topic when the caller did not name a deck.
func (u *importUsecase) ensureDeck(ctx context.Context, userID uuid.UUID, topic string, deckID *uuid.UUID) (uuid.UUID, error) {
	if deckID != nil {
		deck, err := u.decks.GetByID(ctx, *deckID)
		if err != nil {
			return uuid.Nil, err
		}
		if deck.OwnerID != userID {
			return uuid.Nil, entity.ErrNotDeckOwner
		}
		return deck.ID, nil
	}

	title := strings.TrimSpace(topic)
	if title == "" {
		title = "Imported deck"
	}
	deck, err := u.decks.Create(ctx, &entity.Deck{
		ID:          uuid.New(),
		OwnerID:     userID,
		Title:       title,
		Description: "Generated from import",
		CreatedAt:   u.clock(),
	})
	if err != nil {
		return uuid.Nil, err
	}
	return deck.ID, nil
}

// fallbackCards derives simple prompt cards from the source sentences.
func fallbackCards(topic, text string) []entity.GeneratedCard {
	split := strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	})
	var cards []entity.GeneratedCard
	for _, raw := range split {
		sentence := strings.TrimSpace(raw)
		if len(sentence) <= 20 || len(sentence) >= 300 {
			continue
		}
		cards = append(cards, entity.GeneratedCard{
			Front: fmt.Sprintf("What is an important concept about %s? (%d)", topic, len(cards)+1),
			Back:  sentence,
		})
		if len(cards) == fallbackCardLimit {
			break
		}
	}
	return cards
}
