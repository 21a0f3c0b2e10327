package usecase

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
)

// fakeStore is an in-memory stand-in for the whole persistence layer.
// Study, card and session repositories share rows in the real database,
// so the fake backs them all with one mutex-guarded state.
type fakeStore struct {
	mu       sync.RWMutex
	decks    map[uuid.UUID]*entity.Deck
	cards    map[uuid.UUID]*entity.Card
	states   map[uuid.UUID]entity.SchedulerState
	reviews  []*entity.Review
	sessions map[uuid.UUID]*entity.StudySession
	jobs     map[uuid.UUID]*entity.ImportJob
	jobOrder []uuid.UUID
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		decks:    make(map[uuid.UUID]*entity.Deck),
		cards:    make(map[uuid.UUID]*entity.Card),
		states:   make(map[uuid.UUID]entity.SchedulerState),
		sessions: make(map[uuid.UUID]*entity.StudySession),
		jobs:     make(map[uuid.UUID]*entity.ImportJob),
	}
}

// --- DeckRepository ---

func (s *fakeStore) Create(ctx context.Context, deck *entity.Deck) (*entity.Deck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	copy := *deck
	if copy.ID == uuid.Nil {
		copy.ID = uuid.New()
	}
	s.decks[copy.ID] = &copy
	out := copy
	return &out, nil
}

func (s *fakeStore) GetByID(ctx context.Context, id uuid.UUID) (*entity.Deck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	deck, ok := s.decks[id]
	if !ok {
		return nil, entity.ErrDeckNotFound
	}
	copy := *deck
	return &copy, nil
}

func (s *fakeStore) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*entity.Deck, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*entity.Deck
	for _, deck := range s.decks {
		if deck.OwnerID == ownerID {
			copy := *deck
			out = append(out, &copy)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *fakeStore) Delete(ctx context.Context, ownerID, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	deck, ok := s.decks[id]
	if !ok {
		return entity.ErrDeckNotFound
	}
	if deck.OwnerID != ownerID {
		return entity.ErrNotDeckOwner
	}
	delete(s.decks, id)
	for cardID, card := range s.cards {
		if card.DeckID == id {
			delete(s.cards, cardID)
			delete(s.states, cardID)
		}
	}
	return nil
}

// --- CardRepository ---

// fakeCardRepo is fakeStore's CardRepository view. Kept as a separate
// type so the interfaces do not collide on Create/GetByID/Delete.
type fakeCardRepo struct{ store *fakeStore }

func (r *fakeCardRepo) CreateWithState(ctx context.Context, card *entity.Card, state entity.SchedulerState) (*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	needle := entity.NormalizeFront(card.Front)
	for _, existing := range r.store.cards {
		if existing.DeckID == card.DeckID && entity.NormalizeFront(existing.Front) == needle {
			return nil, entity.ErrDuplicateCardFront
		}
	}
	copy := cloneCard(card)
	if copy.ID == uuid.Nil {
		copy.ID = uuid.New()
	}
	state.CardID = copy.ID
	r.store.cards[copy.ID] = copy
	r.store.states[copy.ID] = state
	return cloneCard(copy), nil
}

func (r *fakeCardRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	card, ok := r.store.cards[id]
	if !ok {
		return nil, entity.ErrCardNotFound
	}
	return cloneCard(card), nil
}

func (r *fakeCardRepo) ListByIDs(ctx context.Context, ids []uuid.UUID) ([]*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	out := make([]*entity.Card, 0, len(ids))
	for _, id := range ids {
		if card, ok := r.store.cards[id]; ok {
			out = append(out, cloneCard(card))
		}
	}
	return out, nil
}

func (r *fakeCardRepo) List(ctx context.Context, query *repository.ListCardQuery) ([]*entity.Card, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var filtered []*entity.Card
	for _, card := range r.store.cards {
		if card.DeckID == query.DeckID {
			filtered = append(filtered, cloneCard(card))
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].CreatedAt.Before(filtered[j].CreatedAt) })
	total := int64(len(filtered))
	pageSize := query.PageSize
	if pageSize <= 0 {
		pageSize = int32(len(filtered))
	}
	start := int(query.Offset())
	if start < 0 {
		start = 0
	}
	if start >= len(filtered) {
		return []*entity.Card{}, total, nil
	}
	end := start + int(pageSize)
	if end > len(filtered) {
		end = len(filtered)
	}
	return filtered[start:end], total, nil
}

func (r *fakeCardRepo) Update(ctx context.Context, card *entity.Card) (*entity.Card, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.cards[card.ID]; !ok {
		return nil, entity.ErrCardNotFound
	}
	copy := cloneCard(card)
	r.store.cards[copy.ID] = copy
	return cloneCard(copy), nil
}

func (r *fakeCardRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.cards[id]; !ok {
		return entity.ErrCardNotFound
	}
	delete(r.store.cards, id)
	delete(r.store.states, id)
	return nil
}

func (r *fakeCardRepo) Fronts(ctx context.Context, deckIDs []uuid.UUID) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	wanted := make(map[uuid.UUID]struct{}, len(deckIDs))
	for _, id := range deckIDs {
		wanted[id] = struct{}{}
	}
	var fronts []string
	for _, card := range r.store.cards {
		if _, ok := wanted[card.DeckID]; ok {
			fronts = append(fronts, card.Front)
		}
	}
	return fronts, nil
}

// --- StudyRepository ---

type fakeStudyRepo struct{ store *fakeStore }

func (r *fakeStudyRepo) Schedule(ctx context.Context, cardID uuid.UUID) (*repository.CardSchedule, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	state, ok := r.store.states[cardID]
	if !ok {
		return nil, entity.ErrSchedulerStateNotFound
	}
	card, ok := r.store.cards[cardID]
	if !ok {
		return nil, entity.ErrCardNotFound
	}
	deck, ok := r.store.decks[card.DeckID]
	if !ok {
		return nil, entity.ErrDeckNotFound
	}
	return &repository.CardSchedule{State: state, DeckID: deck.ID, OwnerID: deck.OwnerID}, nil
}

func (r *fakeStudyRepo) RecordReview(ctx context.Context, review *entity.Review, state entity.SchedulerState) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copy := *review
	r.store.reviews = append(r.store.reviews, &copy)
	r.store.states[state.CardID] = state
	return nil
}

func (r *fakeStudyRepo) DueCards(ctx context.Context, userID uuid.UUID, deckID *uuid.UUID, now time.Time, limit int) ([]repository.DueCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var due []repository.DueCard
	for id, card := range r.store.cards {
		deck, ok := r.store.decks[card.DeckID]
		if !ok || deck.OwnerID != userID {
			continue
		}
		if deckID != nil && card.DeckID != *deckID {
			continue
		}
		state, ok := r.store.states[id]
		if !ok || state.NextDueAt.After(now) {
			continue
		}
		due = append(due, repository.DueCard{Card: *cloneCard(card), State: state})
	}
	sort.Slice(due, func(i, j int) bool { return due[i].State.NextDueAt.Before(due[j].State.NextDueAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (r *fakeStudyRepo) ReviewsInWindow(ctx context.Context, userID uuid.UUID, from, to time.Time) ([]entity.Review, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var out []entity.Review
	for _, review := range r.store.reviews {
		if review.UserID != userID {
			continue
		}
		if review.CreatedAt.Before(from) || review.CreatedAt.After(to) {
			continue
		}
		out = append(out, *review)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *fakeStudyRepo) ListReviews(ctx context.Context, query *repository.ListReviewQuery) ([]*entity.Review, int64, error) {
	if err := ctx.Err(); err != nil {
		return nil, 0, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	var filtered []*entity.Review
	for _, review := range r.store.reviews {
		if review.UserID == query.UserID {
			copy := *review
			filtered = append(filtered, &copy)
		}
	}
	sort.Slice(filtered, func(i, j int) bool { return filtered[i].CreatedAt.After(filtered[j].CreatedAt) })
	return filtered, int64(len(filtered)), nil
}

// --- StudySessionRepository ---

type fakeSessionRepo struct{ store *fakeStore }

func (r *fakeSessionRepo) Create(ctx context.Context, session *entity.StudySession) (*entity.StudySession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copy := cloneSession(session)
	if copy.ID == uuid.Nil {
		copy.ID = uuid.New()
	}
	r.store.sessions[copy.ID] = copy
	return cloneSession(copy), nil
}

func (r *fakeSessionRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*entity.StudySession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	session, ok := r.store.sessions[id]
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, entity.ErrNotSessionOwner
	}
	return cloneSession(session), nil
}

func (r *fakeSessionRepo) MarkEnded(ctx context.Context, userID, id uuid.UUID, endedAt time.Time) (*entity.StudySession, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	session, ok := r.store.sessions[id]
	if !ok {
		return nil, entity.ErrSessionNotFound
	}
	if session.UserID != userID {
		return nil, entity.ErrNotSessionOwner
	}
	if session.Ended() {
		return nil, entity.ErrSessionAlreadyEnded
	}
	ended := endedAt
	session.EndedAt = &ended
	return cloneSession(session), nil
}

func (r *fakeSessionRepo) Finalize(ctx context.Context, session *entity.StudySession) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	existing, ok := r.store.sessions[session.ID]
	if !ok {
		return entity.ErrSessionNotFound
	}
	existing.CardsReviewed = session.CardsReviewed
	existing.CorrectCount = session.CorrectCount
	existing.Stats = session.Stats
	return nil
}

// --- ImportJobRepository ---

type fakeImportJobRepo struct{ store *fakeStore }

func (r *fakeImportJobRepo) Create(ctx context.Context, job *entity.ImportJob) (*entity.ImportJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	copy := *job
	if copy.ID == uuid.Nil {
		copy.ID = uuid.New()
	}
	r.store.jobs[copy.ID] = &copy
	r.store.jobOrder = append(r.store.jobOrder, copy.ID)
	out := copy
	return &out, nil
}

func (r *fakeImportJobRepo) GetByID(ctx context.Context, userID, id uuid.UUID) (*entity.ImportJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.RLock()
	defer r.store.mu.RUnlock()
	job, ok := r.store.jobs[id]
	if !ok || job.UserID != userID {
		return nil, entity.ErrImportJobNotFound
	}
	copy := *job
	return &copy, nil
}

func (r *fakeImportJobRepo) ClaimPending(ctx context.Context) (*entity.ImportJob, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, id := range r.store.jobOrder {
		job := r.store.jobs[id]
		if job.Status != entity.ImportPending {
			continue
		}
		job.Status = entity.ImportProcessing
		copy := *job
		return &copy, nil
	}
	return nil, nil
}

func (r *fakeImportJobRepo) Update(ctx context.Context, job *entity.ImportJob) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.jobs[job.ID]; !ok {
		return entity.ErrImportJobNotFound
	}
	copy := *job
	r.store.jobs[job.ID] = &copy
	return nil
}

// --- capabilities ---

type extractCall struct {
	Text string
	Max  int
}

type fakeExtractor struct {
	mu    sync.Mutex
	fn    func(text string, max int) ([]string, error)
	calls []extractCall
}

func (e *fakeExtractor) ExtractTopics(ctx context.Context, text string, max int) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	e.calls = append(e.calls, extractCall{Text: text, Max: max})
	e.mu.Unlock()
	if e.fn == nil {
		return nil, nil
	}
	return e.fn(text, max)
}

type generateCall struct {
	Topic string
	Count int
	Avoid []string
}

type fakeGenerator struct {
	mu        sync.Mutex
	fn        func(topic string, count int) ([]entity.GeneratedCard, error)
	textFn    func(topic, text string, max int) ([]entity.GeneratedCard, error)
	calls     []generateCall
	textCalls []generateCall
}

func (g *fakeGenerator) GenerateCards(ctx context.Context, topic string, count int, avoid []string) ([]entity.GeneratedCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.calls = append(g.calls, generateCall{Topic: topic, Count: count, Avoid: avoid})
	g.mu.Unlock()
	if g.fn == nil {
		return nil, nil
	}
	return g.fn(topic, count)
}

func (g *fakeGenerator) GenerateFromText(ctx context.Context, topic, text string, max int) ([]entity.GeneratedCard, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	g.mu.Lock()
	g.textCalls = append(g.textCalls, generateCall{Topic: topic, Count: max})
	g.mu.Unlock()
	if g.textFn == nil {
		return nil, nil
	}
	return g.textFn(topic, text, max)
}

func cloneCard(src *entity.Card) *entity.Card {
	if src == nil {
		return nil
	}
	copy := *src
	if src.Tags != nil {
		copy.Tags = append([]string(nil), src.Tags...)
	}
	return &copy
}

func cloneSession(src *entity.StudySession) *entity.StudySession {
	if src == nil {
		return nil
	}
	copy := *src
	if src.DeckID != nil {
		deckID := *src.DeckID
		copy.DeckID = &deckID
	}
	if src.EndedAt != nil {
		ended := *src.EndedAt
		copy.EndedAt = &ended
	}
	if src.Stats != nil {
		stats := *src.Stats
		copy.Stats = &stats
	}
	return &copy
}
