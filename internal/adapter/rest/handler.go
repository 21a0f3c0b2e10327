package rest

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
	"github.com/deckardhq/deckard/internal/usecase"
)

const (
	defaultPageSize = 50
	maxPageSize     = 200

	// endSessionBudget bounds the background session-end run, which
	// includes model calls.
	endSessionBudget = 5 * time.Minute
)

// Handler exposes the REST surface of the service.
type Handler struct {
	study    usecase.StudyUsecase
	sessions usecase.SessionUsecase
	cards    usecase.CardUsecase
	imports  usecase.ImportUsecase
	validate *validator.Validate
	logger   *logrus.Logger
}

// NewHandler wires the usecases into a handler.
func NewHandler(
	study usecase.StudyUsecase,
	sessions usecase.SessionUsecase,
	cards usecase.CardUsecase,
	imports usecase.ImportUsecase,
	logger *logrus.Logger,
) *Handler {
	return &Handler{
		study:    study,
		sessions: sessions,
		cards:    cards,
		imports:  imports,
		validate: validator.New(),
		logger:   logger,
	}
}

// Routes builds the router with logging and user-extraction middleware
// applied to the API surface.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/decks", h.createDeck)
	mux.HandleFunc("GET /api/decks", h.listDecks)
	mux.HandleFunc("GET /api/decks/{id}", h.getDeck)
	mux.HandleFunc("DELETE /api/decks/{id}", h.deleteDeck)

	mux.HandleFunc("POST /api/decks/{id}/cards", h.createCard)
	mux.HandleFunc("GET /api/decks/{id}/cards", h.listCards)
	mux.HandleFunc("POST /api/decks/{id}/cards/import", h.importCards)
	mux.HandleFunc("PATCH /api/cards/{id}", h.updateCard)
	mux.HandleFunc("DELETE /api/cards/{id}", h.deleteCard)

	mux.HandleFunc("GET /api/study/queue", h.dueCards)
	mux.HandleFunc("POST /api/study/reviews", h.recordReview)
	mux.HandleFunc("GET /api/study/reviews", h.listReviews)

	mux.HandleFunc("POST /api/sessions", h.startSession)
	mux.HandleFunc("POST /api/sessions/{id}/end", h.endSession)
	mux.HandleFunc("GET /api/sessions/{id}", h.getSession)

	mux.HandleFunc("POST /api/imports", h.createImport)
	mux.HandleFunc("GET /api/imports/{id}", h.getImport)

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	var handler http.Handler = mux
	handler = withUserExceptHealth(handler)
	handler = logRequests(h.logger, handler)
	return handler
}

func withUserExceptHealth(next http.Handler) http.Handler {
	authed := withUser(next)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/healthz" {
			next.ServeHTTP(w, r)
			return
		}
		authed.ServeHTTP(w, r)
	})
}

func (h *Handler) decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return errors.New("invalid JSON body")
	}
	return h.validate.Struct(dst)
}

func pathID(r *http.Request) (uuid.UUID, error) {
	return uuid.Parse(r.PathValue("id"))
}

// --- decks ---

func (h *Handler) createDeck(w http.ResponseWriter, r *http.Request) {
	var req createDeckRequest
	if err := h.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	deck, err := h.cards.CreateDeck(r.Context(), userID(r.Context()), req.Title, req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toDeckResponse(deck))
}

func (h *Handler) listDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := h.cards.ListDecks(r.Context(), userID(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := make([]deckResponse, 0, len(decks))
	for _, deck := range decks {
		out = append(out, toDeckResponse(deck))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) getDeck(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid deck id"})
		return
	}
	deck, err := h.cards.GetDeck(r.Context(), userID(r.Context()), id)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDeckResponse(deck))
}

func (h *Handler) deleteDeck(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid deck id"})
		return
	}
	if err := h.cards.DeleteDeck(r.Context(), userID(r.Context()), id); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- cards ---

func (h *Handler) createCard(w http.ResponseWriter, r *http.Request) {
	deckID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid deck id"})
		return
	}
	var req createCardRequest
	if err := h.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	card, err := h.cards.CreateCard(r.Context(), userID(r.Context()), &entity.Card{
		DeckID:        deckID,
		Type:          req.Type,
		Front:         req.Front,
		Back:          req.Back,
		Tags:          req.Tags,
		SourceExcerpt: req.SourceExcerpt,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toCardResponse(card))
}

func (h *Handler) listCards(w http.ResponseWriter, r *http.Request) {
	deckID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid deck id"})
		return
	}
	query := &repository.ListCardQuery{
		Pagination:  pagination(r),
		FilterOrder: filterOrder(r),
		DeckID:      deckID,
	}
	cards, total, err := h.cards.ListCards(r.Context(), userID(r.Context()), query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := cardListResponse{Cards: make([]cardResponse, 0, len(cards)), Total: total}
	for _, card := range cards {
		out.Cards = append(out.Cards, toCardResponse(card))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) importCards(w http.ResponseWriter, r *http.Request) {
	deckID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid deck id"})
		return
	}
	var req importCardsRequest
	if err := h.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	cards, err := h.cards.ImportCards(r.Context(), userID(r.Context()), deckID, req.Format, req.Content, req.Delimiter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := cardListResponse{Cards: make([]cardResponse, 0, len(cards)), Total: int64(len(cards))}
	for _, card := range cards {
		out.Cards = append(out.Cards, toCardResponse(card))
	}
	writeJSON(w, http.StatusCreated, out)
}

func (h *Handler) updateCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid card id"})
		return
	}
	var req updateCardRequest
	if err := h.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	card, err := h.cards.UpdateCard(r.Context(), userID(r.Context()), cardID, usecase.CardPatch{
		Front: req.Front,
		Back:  req.Back,
		Tags:  req.Tags,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCardResponse(card))
}

func (h *Handler) deleteCard(w http.ResponseWriter, r *http.Request) {
	cardID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid card id"})
		return
	}
	if err := h.cards.DeleteCard(r.Context(), userID(r.Context()), cardID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- study ---

func (h *Handler) dueCards(w http.ResponseWriter, r *http.Request) {
	var deckID *uuid.UUID
	if raw := r.URL.Query().Get("deck_id"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid deck_id"})
			return
		}
		deckID = &id
	}
	due, err := h.study.DueCards(r.Context(), userID(r.Context()), deckID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toDueCardResponses(due))
}

func (h *Handler) recordReview(w http.ResponseWriter, r *http.Request) {
	var req recordReviewRequest
	if err := h.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	cardID, err := uuid.Parse(req.CardID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid card_id"})
		return
	}
	outcome, err := h.study.RecordReview(r.Context(), userID(r.Context()), cardID, entity.ReviewResponse(req.Response), req.LatencyMs)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, reviewOutcomeResponse{
		Review: toReviewResponse(outcome.Review),
		State:  toStateResponse(outcome.State),
	})
}

func (h *Handler) listReviews(w http.ResponseWriter, r *http.Request) {
	query := &repository.ListReviewQuery{
		Pagination:  pagination(r),
		FilterOrder: filterOrder(r),
		UserID:      userID(r.Context()),
	}
	reviews, total, err := h.study.ListReviews(r.Context(), query)
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := struct {
		Reviews []reviewResponse `json:"reviews"`
		Total   int64            `json:"total"`
	}{Reviews: make([]reviewResponse, 0, len(reviews)), Total: total}
	for _, review := range reviews {
		out.Reviews = append(out.Reviews, toReviewResponse(review))
	}
	writeJSON(w, http.StatusOK, out)
}

// --- sessions ---

func (h *Handler) startSession(w http.ResponseWriter, r *http.Request) {
	var req startSessionRequest
	if err := h.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var deckID *uuid.UUID
	if req.DeckID != nil {
		id, err := uuid.Parse(*req.DeckID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid deck_id"})
			return
		}
		deckID = &id
	}
	session, err := h.sessions.StartSession(r.Context(), userID(r.Context()), deckID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toSessionResponse(session))
}

// endSession finalizes asynchronously: the session is ended and the
// adaptive generation pass runs in the background while the caller
// polls the session for its stats. Model calls make the synchronous
// path too slow for a request cycle.
func (h *Handler) endSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid session id"})
		return
	}
	uid := userID(r.Context())

	// Surface ownership and double-end errors synchronously before
	// detaching the heavy work.
	session, err := h.sessions.GetSession(r.Context(), uid, sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if session.Ended() {
		h.writeError(w, entity.ErrSessionAlreadyEnded)
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), endSessionBudget)
		defer cancel()
		if _, err := h.sessions.EndSession(ctx, uid, sessionID); err != nil {
			h.logger.WithError(err).WithField("session_id", sessionID).Warn("session end failed")
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]any{
		"session_id": sessionID,
		"status":     "ending",
	})
}

func (h *Handler) getSession(w http.ResponseWriter, r *http.Request) {
	sessionID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid session id"})
		return
	}
	session, err := h.sessions.GetSession(r.Context(), userID(r.Context()), sessionID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSessionResponse(session))
}

// --- imports ---

func (h *Handler) createImport(w http.ResponseWriter, r *http.Request) {
	var req createImportRequest
	if err := h.decode(r, &req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	var deckID *uuid.UUID
	if req.DeckID != nil {
		id, err := uuid.Parse(*req.DeckID)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid deck_id"})
			return
		}
		deckID = &id
	}
	job, err := h.imports.CreateTextJob(r.Context(), userID(r.Context()), deckID, req.Topic, req.Content)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusAccepted, toImportJobResponse(job))
}

func (h *Handler) getImport(w http.ResponseWriter, r *http.Request) {
	jobID, err := pathID(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "invalid job id"})
		return
	}
	job, err := h.imports.Job(r.Context(), userID(r.Context()), jobID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toImportJobResponse(job))
}

func pagination(r *http.Request) repository.Pagination {
	page := repository.Pagination{PageNo: 1, PageSize: defaultPageSize}
	if raw := r.URL.Query().Get("page_no"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page.PageNo = int32(n)
		}
	}
	if raw := r.URL.Query().Get("page_size"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			if n > maxPageSize {
				n = maxPageSize
			}
			page.PageSize = int32(n)
		}
	}
	return page
}

func filterOrder(r *http.Request) repository.FilterOrder {
	return repository.FilterOrder{
		Filter:  r.URL.Query().Get("filter"),
		OrderBy: r.URL.Query().Get("order_by"),
	}
}
