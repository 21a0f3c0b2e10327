package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/deckardhq/deckard/internal/entity"
)

func newCardUsecase(store *fakeStore) (CardUsecase, *cardUsecase) {
	uc := NewCardUsecase(store, &fakeCardRepo{store: store}, quietLogger())
	impl := uc.(*cardUsecase)
	impl.clock = func() time.Time { return time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC) }
	return uc, impl
}

func TestCreateCardInitializesSchedule(t *testing.T) {
	store := newFakeStore()
	uc, impl := newCardUsecase(store)
	userID := uuid.New()
	deck, err := uc.CreateDeck(context.Background(), userID, "  Chemistry ", "")
	if err != nil {
		t.Fatalf("CreateDeck returned error: %v", err)
	}
	if deck.Title != "Chemistry" {
		t.Errorf("expected trimmed title, got %q", deck.Title)
	}

	card, err := uc.CreateCard(context.Background(), userID, &entity.Card{
		DeckID: deck.ID,
		Front:  "What is an isotope?",
		Back:   "An atom variant differing in neutron count.",
	})
	if err != nil {
		t.Fatalf("CreateCard returned error: %v", err)
	}
	if card.Type != entity.CardTypeBasic {
		t.Errorf("expected default type, got %q", card.Type)
	}

	state, ok := store.states[card.ID]
	if !ok {
		t.Fatal("expected scheduler state to be created with the card")
	}
	if state.Ease != entity.DefaultEase || state.Repetitions != 0 || state.IntervalDays != 0 {
		t.Errorf("unexpected initial state %+v", state)
	}
	if !state.NextDueAt.Equal(impl.clock()) {
		t.Errorf("expected card due immediately, got %v", state.NextDueAt)
	}
}

func TestCreateCardRejectsEmptyText(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	userID := uuid.New()
	deck, _ := uc.CreateDeck(context.Background(), userID, "Chemistry", "")

	_, err := uc.CreateCard(context.Background(), userID, &entity.Card{DeckID: deck.ID, Front: "   ", Back: "x"})
	if !errors.Is(err, entity.ErrInvalidCardText) {
		t.Fatalf("expected ErrInvalidCardText, got %v", err)
	}
}

func TestCreateCardDeniesForeignDeck(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	deck, _ := uc.CreateDeck(context.Background(), uuid.New(), "Chemistry", "")

	_, err := uc.CreateCard(context.Background(), uuid.New(), &entity.Card{DeckID: deck.ID, Front: "q", Back: "a"})
	if !errors.Is(err, entity.ErrNotDeckOwner) {
		t.Fatalf("expected ErrNotDeckOwner, got %v", err)
	}
}

func TestImportCardsCSV(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	userID := uuid.New()
	deck, _ := uc.CreateDeck(context.Background(), userID, "Vocab", "")

	content := "front,back\nhola,hello\nadios,goodbye\nbroken line\n"
	cards, err := uc.ImportCards(context.Background(), userID, deck.ID, FormatCSV, content, "")
	if err != nil {
		t.Fatalf("ImportCards returned error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 imported cards, got %d", len(cards))
	}
	if cards[0].Front != "hola" || cards[0].Back != "hello" {
		t.Errorf("unexpected first card %+v", cards[0])
	}
}

func TestImportCardsCSVHeaderAliases(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	userID := uuid.New()
	deck, _ := uc.CreateDeck(context.Background(), userID, "Vocab", "")

	content := "Question;Answer\nWhat is water?;H2O\n"
	cards, err := uc.ImportCards(context.Background(), userID, deck.ID, FormatCSV, content, ";")
	if err != nil {
		t.Fatalf("ImportCards returned error: %v", err)
	}
	if len(cards) != 1 || cards[0].Front != "What is water?" || cards[0].Back != "H2O" {
		t.Fatalf("unexpected cards %+v", cards)
	}
}

func TestImportCardsMarkdown(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	userID := uuid.New()
	deck, _ := uc.CreateDeck(context.Background(), userID, "Physics", "")

	content := "# What is inertia?\nResistance to change in motion.\n---\n## Newton's second law?\nF = ma\nForce equals mass times acceleration.\n---\nlonely line\n"
	cards, err := uc.ImportCards(context.Background(), userID, deck.ID, FormatMarkdown, content, "")
	if err != nil {
		t.Fatalf("ImportCards returned error: %v", err)
	}
	if len(cards) != 2 {
		t.Fatalf("expected 2 cards, got %d", len(cards))
	}
	if cards[0].Front != "What is inertia?" {
		t.Errorf("expected heading stripped, got %q", cards[0].Front)
	}
	if cards[1].Back != "F = ma\nForce equals mass times acceleration." {
		t.Errorf("expected multi-line back preserved, got %q", cards[1].Back)
	}
}

func TestImportCardsJSON(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	userID := uuid.New()
	deck, _ := uc.CreateDeck(context.Background(), userID, "Mixed", "")

	content := `[{"front":"q1","back":"a1"},{"question":"q2","answer":"a2"},{"q":"q3","a":"a3"},{"front":"","back":""}]`
	cards, err := uc.ImportCards(context.Background(), userID, deck.ID, FormatJSON, content, "")
	if err != nil {
		t.Fatalf("ImportCards returned error: %v", err)
	}
	if len(cards) != 3 {
		t.Fatalf("expected 3 cards, got %d", len(cards))
	}
}

func TestImportCardsRejectsBadInput(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	userID := uuid.New()
	deck, _ := uc.CreateDeck(context.Background(), userID, "Mixed", "")

	if _, err := uc.ImportCards(context.Background(), userID, deck.ID, "xml", "<cards/>", ""); !errors.Is(err, entity.ErrInvalidImportFormat) {
		t.Errorf("expected ErrInvalidImportFormat for unknown format, got %v", err)
	}
	if _, err := uc.ImportCards(context.Background(), userID, deck.ID, FormatJSON, "not json", ""); !errors.Is(err, entity.ErrInvalidImportFormat) {
		t.Errorf("expected ErrInvalidImportFormat for broken JSON, got %v", err)
	}
	if _, err := uc.ImportCards(context.Background(), userID, deck.ID, FormatCSV, "front,back\n", ""); !errors.Is(err, entity.ErrInvalidImportContent) {
		t.Errorf("expected ErrInvalidImportContent for empty CSV, got %v", err)
	}
}

func TestImportCardsSkipsDuplicates(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	userID := uuid.New()
	deck, _ := uc.CreateDeck(context.Background(), userID, "Vocab", "")

	content := "front,back\nhola,hello\nHOLA,hello again\n"
	cards, err := uc.ImportCards(context.Background(), userID, deck.ID, FormatCSV, content, "")
	if err != nil {
		t.Fatalf("ImportCards returned error: %v", err)
	}
	if len(cards) != 1 {
		t.Fatalf("expected duplicate front to be skipped, got %d cards", len(cards))
	}
}

func TestUpdateCardAppliesPatch(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	userID := uuid.New()
	deck, _ := uc.CreateDeck(context.Background(), userID, "Vocab", "")
	card, err := uc.CreateCard(context.Background(), userID, &entity.Card{DeckID: deck.ID, Front: "q", Back: "a"})
	if err != nil {
		t.Fatalf("CreateCard returned error: %v", err)
	}

	newBack := "a better answer"
	updated, err := uc.UpdateCard(context.Background(), userID, card.ID, CardPatch{Back: &newBack, Tags: []string{"updated"}})
	if err != nil {
		t.Fatalf("UpdateCard returned error: %v", err)
	}
	if updated.Front != "q" {
		t.Errorf("expected front untouched, got %q", updated.Front)
	}
	if updated.Back != newBack {
		t.Errorf("expected back updated, got %q", updated.Back)
	}
	if len(updated.Tags) != 1 || updated.Tags[0] != "updated" {
		t.Errorf("expected tags replaced, got %v", updated.Tags)
	}
}

func TestDeleteCardRemovesState(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	userID := uuid.New()
	deck, _ := uc.CreateDeck(context.Background(), userID, "Vocab", "")
	card, err := uc.CreateCard(context.Background(), userID, &entity.Card{DeckID: deck.ID, Front: "q", Back: "a"})
	if err != nil {
		t.Fatalf("CreateCard returned error: %v", err)
	}

	if err := uc.DeleteCard(context.Background(), userID, card.ID); err != nil {
		t.Fatalf("DeleteCard returned error: %v", err)
	}
	if _, ok := store.cards[card.ID]; ok {
		t.Error("expected card to be deleted")
	}
	if _, ok := store.states[card.ID]; ok {
		t.Error("expected scheduler state to be deleted")
	}
}

func TestDeleteCardDeniesNonOwner(t *testing.T) {
	store := newFakeStore()
	uc, _ := newCardUsecase(store)
	owner := uuid.New()
	deck, _ := uc.CreateDeck(context.Background(), owner, "Vocab", "")
	card, err := uc.CreateCard(context.Background(), owner, &entity.Card{DeckID: deck.ID, Front: "q", Back: "a"})
	if err != nil {
		t.Fatalf("CreateCard returned error: %v", err)
	}

	if err := uc.DeleteCard(context.Background(), uuid.New(), card.ID); !errors.Is(err, entity.ErrNotDeckOwner) {
		t.Fatalf("expected ErrNotDeckOwner, got %v", err)
	}
}
