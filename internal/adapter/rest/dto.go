package rest

import (
	"time"

	"github.com/google/uuid"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
)

type createDeckRequest struct {
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=2000"`
}

type deckResponse struct {
	ID          uuid.UUID `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

func toDeckResponse(deck *entity.Deck) deckResponse {
	return deckResponse{
		ID:          deck.ID,
		Title:       deck.Title,
		Description: deck.Description,
		CreatedAt:   deck.CreatedAt,
	}
}

type createCardRequest struct {
	Type          string   `json:"type" validate:"omitempty,oneof=basic cloze"`
	Front         string   `json:"front" validate:"required"`
	Back          string   `json:"back" validate:"required"`
	Tags          []string `json:"tags" validate:"max=16,dive,max=64"`
	SourceExcerpt string   `json:"source_excerpt" validate:"max=1000"`
}

type updateCardRequest struct {
	Front *string  `json:"front" validate:"omitempty,min=1"`
	Back  *string  `json:"back" validate:"omitempty,min=1"`
	Tags  []string `json:"tags" validate:"omitempty,max=16,dive,max=64"`
}

type importCardsRequest struct {
	Format    string `json:"format" validate:"required,oneof=csv markdown json"`
	Content   string `json:"content" validate:"required"`
	Delimiter string `json:"delimiter" validate:"omitempty,len=1"`
}

type cardResponse struct {
	ID            uuid.UUID `json:"id"`
	DeckID        uuid.UUID `json:"deck_id"`
	Type          string    `json:"type"`
	Front         string    `json:"front"`
	Back          string    `json:"back"`
	Tags          []string  `json:"tags"`
	SourceExcerpt string    `json:"source_excerpt,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

func toCardResponse(card *entity.Card) cardResponse {
	return cardResponse{
		ID:            card.ID,
		DeckID:        card.DeckID,
		Type:          card.Type,
		Front:         card.Front,
		Back:          card.Back,
		Tags:          card.Tags,
		SourceExcerpt: card.SourceExcerpt,
		CreatedAt:     card.CreatedAt,
		UpdatedAt:     card.UpdatedAt,
	}
}

type cardListResponse struct {
	Cards []cardResponse `json:"cards"`
	Total int64          `json:"total"`
}

type recordReviewRequest struct {
	CardID    string `json:"card_id" validate:"required,uuid"`
	Response  string `json:"response" validate:"required,oneof=Again Hard Good Easy"`
	LatencyMs int    `json:"latency_ms" validate:"gte=0"`
}

type schedulerStateResponse struct {
	Ease           float64    `json:"ease"`
	IntervalDays   int        `json:"interval_days"`
	Repetitions    int        `json:"repetitions"`
	NextDueAt      time.Time  `json:"next_due_at"`
	LastReviewedAt *time.Time `json:"last_reviewed_at,omitempty"`
}

func toStateResponse(state entity.SchedulerState) schedulerStateResponse {
	return schedulerStateResponse{
		Ease:           state.Ease,
		IntervalDays:   state.IntervalDays,
		Repetitions:    state.Repetitions,
		NextDueAt:      state.NextDueAt,
		LastReviewedAt: state.LastReviewedAt,
	}
}

type reviewResponse struct {
	ID        uuid.UUID `json:"id"`
	CardID    uuid.UUID `json:"card_id"`
	Response  string    `json:"response"`
	Ease      float64   `json:"ease"`
	LatencyMs int       `json:"latency_ms"`
	CreatedAt time.Time `json:"created_at"`
}

func toReviewResponse(review *entity.Review) reviewResponse {
	return reviewResponse{
		ID:        review.ID,
		CardID:    review.CardID,
		Response:  string(review.Response),
		Ease:      review.Ease,
		LatencyMs: review.LatencyMs,
		CreatedAt: review.CreatedAt,
	}
}

type reviewOutcomeResponse struct {
	Review reviewResponse         `json:"review"`
	State  schedulerStateResponse `json:"state"`
}

type dueCardResponse struct {
	Card  cardResponse           `json:"card"`
	State schedulerStateResponse `json:"state"`
}

func toDueCardResponses(due []repository.DueCard) []dueCardResponse {
	out := make([]dueCardResponse, 0, len(due))
	for _, d := range due {
		card := d.Card
		out = append(out, dueCardResponse{Card: toCardResponse(&card), State: toStateResponse(d.State)})
	}
	return out
}

type startSessionRequest struct {
	DeckID *string `json:"deck_id" validate:"omitempty,uuid"`
}

type sessionResponse struct {
	ID            uuid.UUID            `json:"id"`
	DeckID        *uuid.UUID           `json:"deck_id,omitempty"`
	StartedAt     time.Time            `json:"started_at"`
	EndedAt       *time.Time           `json:"ended_at,omitempty"`
	CardsReviewed int                  `json:"cards_reviewed"`
	CorrectCount  int                  `json:"correct_count"`
	Stats         *entity.SessionStats `json:"stats,omitempty"`
}

func toSessionResponse(session *entity.StudySession) sessionResponse {
	return sessionResponse{
		ID:            session.ID,
		DeckID:        session.DeckID,
		StartedAt:     session.StartedAt,
		EndedAt:       session.EndedAt,
		CardsReviewed: session.CardsReviewed,
		CorrectCount:  session.CorrectCount,
		Stats:         session.Stats,
	}
}

type createImportRequest struct {
	DeckID  *string `json:"deck_id" validate:"omitempty,uuid"`
	Topic   string  `json:"topic" validate:"max=200"`
	Content string  `json:"content" validate:"required"`
}

type importJobResponse struct {
	ID            uuid.UUID  `json:"id"`
	DeckID        uuid.UUID  `json:"deck_id"`
	SourceType    string     `json:"source_type"`
	Topic         string     `json:"topic,omitempty"`
	Status        string     `json:"status"`
	Error         string     `json:"error,omitempty"`
	ResultSummary string     `json:"result_summary,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

func toImportJobResponse(job *entity.ImportJob) importJobResponse {
	return importJobResponse{
		ID:            job.ID,
		DeckID:        job.DeckID,
		SourceType:    job.SourceType,
		Topic:         job.Topic,
		Status:        string(job.Status),
		Error:         job.Error,
		ResultSummary: job.ResultSummary,
		CreatedAt:     job.CreatedAt,
		CompletedAt:   job.CompletedAt,
	}
}
