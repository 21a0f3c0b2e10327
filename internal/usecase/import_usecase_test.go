package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/deckardhq/deckard/internal/entity"
)

func newImportHarness() (*fakeStore, ImportUsecase, *importUsecase, *fakeGenerator) {
	store := newFakeStore()
	generator := &fakeGenerator{}
	uc := NewImportUsecase(&fakeImportJobRepo{store: store}, store, &fakeCardRepo{store: store}, generator, quietLogger())
	impl := uc.(*importUsecase)
	impl.clock = func() time.Time { return time.Date(2025, 6, 4, 8, 0, 0, 0, time.UTC) }
	return store, uc, impl, generator
}

func TestCreateTextJobCreatesDeckFromTopic(t *testing.T) {
	_, uc, _, _ := newImportHarness()
	userID := uuid.New()

	job, err := uc.CreateTextJob(context.Background(), userID, nil, "Roman history", "The Roman Republic lasted centuries.")
	if err != nil {
		t.Fatalf("CreateTextJob returned error: %v", err)
	}
	if job.Status != entity.ImportPending {
		t.Errorf("expected pending status, got %s", job.Status)
	}
	if job.DeckID == uuid.Nil {
		t.Fatal("expected a deck to be created")
	}

	stored, err := uc.Job(context.Background(), userID, job.ID)
	if err != nil {
		t.Fatalf("Job returned error: %v", err)
	}
	if stored.Topic != "Roman history" {
		t.Errorf("unexpected topic %q", stored.Topic)
	}
}

func TestCreateTextJobUsesExistingDeck(t *testing.T) {
	store, uc, _, _ := newImportHarness()
	userID := uuid.New()
	deck, err := store.Create(context.Background(), &entity.Deck{OwnerID: userID, Title: "Mine"})
	if err != nil {
		t.Fatalf("seeding deck failed: %v", err)
	}

	job, err := uc.CreateTextJob(context.Background(), userID, &deck.ID, "", "Some content to study.")
	if err != nil {
		t.Fatalf("CreateTextJob returned error: %v", err)
	}
	if job.DeckID != deck.ID {
		t.Errorf("expected job bound to existing deck, got %s", job.DeckID)
	}
	if len(store.decks) != 1 {
		t.Errorf("expected no extra deck, got %d", len(store.decks))
	}
}

func TestCreateTextJobDeniesForeignDeck(t *testing.T) {
	store, uc, _, _ := newImportHarness()
	deck, err := store.Create(context.Background(), &entity.Deck{OwnerID: uuid.New(), Title: "Theirs"})
	if err != nil {
		t.Fatalf("seeding deck failed: %v", err)
	}
	_, err = uc.CreateTextJob(context.Background(), uuid.New(), &deck.ID, "", "content")
	if !errors.Is(err, entity.ErrNotDeckOwner) {
		t.Fatalf("expected ErrNotDeckOwner, got %v", err)
	}
}

func TestCreateTextJobRejectsEmptyContent(t *testing.T) {
	_, uc, _, _ := newImportHarness()
	_, err := uc.CreateTextJob(context.Background(), uuid.New(), nil, "topic", "   ")
	if !errors.Is(err, entity.ErrInvalidImportContent) {
		t.Fatalf("expected ErrInvalidImportContent, got %v", err)
	}
}

func TestCreateTextJobClampsContent(t *testing.T) {
	_, uc, _, _ := newImportHarness()
	long := strings.Repeat("a", maxImportChars+500)
	job, err := uc.CreateTextJob(context.Background(), uuid.New(), nil, "topic", long)
	if err != nil {
		t.Fatalf("CreateTextJob returned error: %v", err)
	}
	if len(job.Content) != maxImportChars {
		t.Errorf("expected content clamped to %d chars, got %d", maxImportChars, len(job.Content))
	}
}

func TestCreateTextJobTruncatesOnRuneBoundary(t *testing.T) {
	_, uc, _, _ := newImportHarness()
	long := strings.Repeat("a", maxImportChars-1) + "éxtra"

	job, err := uc.CreateTextJob(context.Background(), uuid.New(), nil, "topic", long)
	if err != nil {
		t.Fatalf("CreateTextJob returned error: %v", err)
	}
	if !utf8.ValidString(job.Content) {
		t.Fatal("clamped content is not valid UTF-8")
	}
	if len(job.Content) > maxImportChars {
		t.Errorf("expected at most %d bytes, got %d", maxImportChars, len(job.Content))
	}
	if strings.ContainsRune(job.Content, utf8.RuneError) {
		t.Error("clamped content carries a replacement rune")
	}
}

func TestProcessPendingExcerptKeepsValidUTF8(t *testing.T) {
	store, uc, _, generator := newImportHarness()
	generator.textFn = func(topic, text string, max int) ([]entity.GeneratedCard, error) {
		return []entity.GeneratedCard{{Front: "Q?", Back: "A."}}, nil
	}

	content := strings.Repeat("b", excerptLen-1) + "é and more source text after the cut"
	if _, err := uc.CreateTextJob(context.Background(), uuid.New(), nil, "topic", content); err != nil {
		t.Fatalf("CreateTextJob returned error: %v", err)
	}
	if _, err := uc.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending returned error: %v", err)
	}

	for _, card := range store.cards {
		if !utf8.ValidString(card.SourceExcerpt) {
			t.Fatalf("excerpt is not valid UTF-8: %q", card.SourceExcerpt)
		}
		if len(card.SourceExcerpt) > excerptLen {
			t.Errorf("expected excerpt at most %d bytes, got %d", excerptLen, len(card.SourceExcerpt))
		}
	}
}

func TestProcessPendingCompletesJob(t *testing.T) {
	store, uc, _, generator := newImportHarness()
	userID := uuid.New()
	generator.textFn = func(topic, text string, max int) ([]entity.GeneratedCard, error) {
		return []entity.GeneratedCard{
			{Front: "What started the Republic?", Back: "The overthrow of the monarchy."},
			{Front: "", Back: "dropped"},
		}, nil
	}

	job, err := uc.CreateTextJob(context.Background(), userID, nil, "Roman history", "The Roman Republic lasted centuries.")
	if err != nil {
		t.Fatalf("CreateTextJob returned error: %v", err)
	}

	processed, err := uc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending returned error: %v", err)
	}
	if !processed {
		t.Fatal("expected a job to be processed")
	}

	done, err := uc.Job(context.Background(), userID, job.ID)
	if err != nil {
		t.Fatalf("Job returned error: %v", err)
	}
	if done.Status != entity.ImportCompleted {
		t.Fatalf("expected completed status, got %s (error %q)", done.Status, done.Error)
	}
	if done.ResultSummary != "Generated 1 cards" {
		t.Errorf("unexpected summary %q", done.ResultSummary)
	}
	if done.CompletedAt == nil {
		t.Error("expected completion timestamp")
	}
	if len(store.cards) != 1 {
		t.Errorf("expected 1 card persisted, got %d", len(store.cards))
	}
	for id := range store.cards {
		if _, ok := store.states[id]; !ok {
			t.Error("expected imported card to be scheduled")
		}
	}
}

func TestProcessPendingFallsBackToSentences(t *testing.T) {
	store, uc, _, generator := newImportHarness()
	userID := uuid.New()
	generator.textFn = func(topic, text string, max int) ([]entity.GeneratedCard, error) {
		return nil, errors.New("model unavailable")
	}

	content := "Photosynthesis converts light into chemical energy. " +
		"Chlorophyll absorbs mostly red and blue wavelengths. " +
		"The Calvin cycle fixes carbon dioxide into sugar."
	job, err := uc.CreateTextJob(context.Background(), userID, nil, "Photosynthesis", content)
	if err != nil {
		t.Fatalf("CreateTextJob returned error: %v", err)
	}

	if _, err := uc.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending returned error: %v", err)
	}

	done, err := uc.Job(context.Background(), userID, job.ID)
	if err != nil {
		t.Fatalf("Job returned error: %v", err)
	}
	if done.Status != entity.ImportCompleted {
		t.Fatalf("expected fallback to complete the job, got %s (error %q)", done.Status, done.Error)
	}
	if len(store.cards) != 3 {
		t.Errorf("expected 3 fallback cards, got %d", len(store.cards))
	}
	for _, card := range store.cards {
		if !strings.Contains(card.Front, "Photosynthesis") {
			t.Errorf("fallback front missing topic: %q", card.Front)
		}
	}
}

func TestProcessPendingMarksFailure(t *testing.T) {
	_, uc, _, generator := newImportHarness()
	userID := uuid.New()
	generator.textFn = func(topic, text string, max int) ([]entity.GeneratedCard, error) {
		return nil, errors.New("model unavailable")
	}

	// Content with no usable sentences defeats the fallback too.
	job, err := uc.CreateTextJob(context.Background(), userID, nil, "topic", "short. words. only.")
	if err != nil {
		t.Fatalf("CreateTextJob returned error: %v", err)
	}

	if _, err := uc.ProcessPending(context.Background()); err != nil {
		t.Fatalf("ProcessPending returned error: %v", err)
	}
	done, err := uc.Job(context.Background(), userID, job.ID)
	if err != nil {
		t.Fatalf("Job returned error: %v", err)
	}
	if done.Status != entity.ImportFailed {
		t.Fatalf("expected failed status, got %s", done.Status)
	}
	if done.Error == "" {
		t.Error("expected failure reason recorded")
	}
}

func TestProcessPendingEmptyQueue(t *testing.T) {
	_, uc, _, _ := newImportHarness()
	processed, err := uc.ProcessPending(context.Background())
	if err != nil {
		t.Fatalf("ProcessPending returned error: %v", err)
	}
	if processed {
		t.Error("expected no job to be claimed")
	}
}
