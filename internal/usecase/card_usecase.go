package usecase

import (
	"context"
	"encoding/json"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/deckardhq/deckard/internal/repository"
)

// Import formats accepted by ImportCards.
const (
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// CardPatch carries the updatable card fields. Nil pointers leave the
// current value in place.
type CardPatch struct {
	Front *string
	Back  *string
	Tags  []string
}

// CardUsecase encapsulates deck and card management, including bulk
// import from pasted CSV, markdown or JSON content.
type CardUsecase interface {
	CreateDeck(ctx context.Context, userID uuid.UUID, title, description string) (*entity.Deck, error)
	ListDecks(ctx context.Context, userID uuid.UUID) ([]*entity.Deck, error)
	GetDeck(ctx context.Context, userID, deckID uuid.UUID) (*entity.Deck, error)
	DeleteDeck(ctx context.Context, userID, deckID uuid.UUID) error

	CreateCard(ctx context.Context, userID uuid.UUID, card *entity.Card) (*entity.Card, error)
	ImportCards(ctx context.Context, userID, deckID uuid.UUID, format, content, delimiter string) ([]*entity.Card, error)
	ListCards(ctx context.Context, userID uuid.UUID, query *repository.ListCardQuery) ([]*entity.Card, int64, error)
	UpdateCard(ctx context.Context, userID, cardID uuid.UUID, patch CardPatch) (*entity.Card, error)
	DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error
}

// NewCardUsecase wires the deck and card repositories.
func NewCardUsecase(decks repository.DeckRepository, cards repository.CardRepository, logger *logrus.Logger) CardUsecase {
	return &cardUsecase{
		decks:  decks,
		cards:  cards,
		logger: logger,
		clock:  time.Now,
	}
}

type cardUsecase struct {
	decks  repository.DeckRepository
	cards  repository.CardRepository
	logger *logrus.Logger
	clock  func() time.Time
}

func (u *cardUsecase) CreateDeck(ctx context.Context, userID uuid.UUID, title, description string) (*entity.Deck, error) {
	deck := &entity.Deck{
		ID:          uuid.New(),
		OwnerID:     userID,
		Title:       strings.TrimSpace(title),
		Description: strings.TrimSpace(description),
		CreatedAt:   u.clock(),
	}
	return u.decks.Create(ctx, deck)
}

func (u *cardUsecase) ListDecks(ctx context.Context, userID uuid.UUID) ([]*entity.Deck, error) {
	return u.decks.ListByOwner(ctx, userID)
}

func (u *cardUsecase) GetDeck(ctx context.Context, userID, deckID uuid.UUID) (*entity.Deck, error) {
	return u.authorizeDeck(ctx, userID, deckID)
}

func (u *cardUsecase) DeleteDeck(ctx context.Context, userID, deckID uuid.UUID) error {
	if _, err := u.authorizeDeck(ctx, userID, deckID); err != nil {
		return err
	}
	return u.decks.Delete(ctx, userID, deckID)
}

func (u *cardUsecase) CreateCard(ctx context.Context, userID uuid.UUID, card *entity.Card) (*entity.Card, error) {
	if _, err := u.authorizeDeck(ctx, userID, card.DeckID); err != nil {
		return nil, err
	}
	now := u.clock()
	copy := *card
	copy.ID = uuid.New()
	copy.Normalize(now)
	if err := copy.Validate(); err != nil {
		return nil, err
	}
	return u.cards.CreateWithState(ctx, &copy, entity.NewSchedulerState(copy.ID, now))
}

// ImportCards parses pasted content and creates one card per parsed
// item. Items that fail validation or collide with an existing front
// are skipped, not fatal; the surviving cards are returned.
func (u *cardUsecase) ImportCards(ctx context.Context, userID, deckID uuid.UUID, format, content, delimiter string) ([]*entity.Card, error) {
	if _, err := u.authorizeDeck(ctx, userID, deckID); err != nil {
		return nil, err
	}

	var (
		items []importItem
		err   error
	)
	switch format {
	case FormatCSV:
		if delimiter == "" {
			delimiter = ","
		}
		items = parseCSVCards(content, delimiter)
	case FormatMarkdown:
		items = parseMarkdownCards(content)
	case FormatJSON:
		items, err = parseJSONCards(content)
		if err != nil {
			return nil, err
		}
	default:
		return nil, entity.ErrInvalidImportFormat
	}
	if len(items) == 0 {
		return nil, entity.ErrInvalidImportContent
	}

	created := make([]*entity.Card, 0, len(items))
	for _, item := range items {
		now := u.clock()
		card := &entity.Card{
			ID:     uuid.New(),
			DeckID: deckID,
			Type:   item.Type,
			Front:  item.Front,
			Back:   item.Back,
		}
		card.Normalize(now)
		if err := card.Validate(); err != nil {
			continue
		}
		stored, err := u.cards.CreateWithState(ctx, card, entity.NewSchedulerState(card.ID, now))
		if err != nil {
			u.logger.WithError(err).WithField("front", card.Front).Warn("skipping card during import")
			continue
		}
		created = append(created, stored)
	}
	if len(created) == 0 {
		return nil, entity.ErrInvalidImportContent
	}
	return created, nil
}

func (u *cardUsecase) ListCards(ctx context.Context, userID uuid.UUID, query *repository.ListCardQuery) ([]*entity.Card, int64, error) {
	if _, err := u.authorizeDeck(ctx, userID, query.DeckID); err != nil {
		return nil, 0, err
	}
	return u.cards.List(ctx, query)
}

func (u *cardUsecase) UpdateCard(ctx context.Context, userID, cardID uuid.UUID, patch CardPatch) (*entity.Card, error) {
	card, err := u.authorizeCard(ctx, userID, cardID)
	if err != nil {
		return nil, err
	}
	if patch.Front != nil {
		card.Front = *patch.Front
	}
	if patch.Back != nil {
		card.Back = *patch.Back
	}
	if patch.Tags != nil {
		card.Tags = patch.Tags
	}
	card.Normalize(u.clock())
	if err := card.Validate(); err != nil {
		return nil, err
	}
	return u.cards.Update(ctx, card)
}

func (u *cardUsecase) DeleteCard(ctx context.Context, userID, cardID uuid.UUID) error {
	if _, err := u.authorizeCard(ctx, userID, cardID); err != nil {
		return err
	}
	return u.cards.Delete(ctx, cardID)
}

func (u *cardUsecase) authorizeDeck(ctx context.Context, userID, deckID uuid.UUID) (*entity.Deck, error) {
	deck, err := u.decks.GetByID(ctx, deckID)
	if err != nil {
		return nil, err
	}
	if deck.OwnerID != userID {
		return nil, entity.ErrNotDeckOwner
	}
	return deck, nil
}

func (u *cardUsecase) authorizeCard(ctx context.Context, userID, cardID uuid.UUID) (*entity.Card, error) {
	card, err := u.cards.GetByID(ctx, cardID)
	if err != nil {
		return nil, err
	}
	if _, err := u.authorizeDeck(ctx, userID, card.DeckID); err != nil {
		return nil, err
	}
	return card, nil
}

type importItem struct {
	Front string
	Back  string
	Type  string
}

// parseCSVCards expects a header row naming the columns. Front and back
// accept the aliases question/q and answer/a.
func parseCSVCards(content, delimiter string) []importItem {
	lines := strings.Split(strings.TrimSpace(content), "\n")
	if len(lines) < 2 {
		return nil
	}
	headers := strings.Split(lines[0], delimiter)
	for i := range headers {
		headers[i] = strings.ToLower(strings.TrimSpace(headers[i]))
	}

	var items []importItem
	for _, line := range lines[1:] {
		values := strings.Split(line, delimiter)
		if len(values) < 2 {
			continue
		}
		row := make(map[string]string, len(headers))
		for i, header := range headers {
			if i < len(values) {
				row[header] = strings.TrimSpace(values[i])
			}
		}
		items = append(items, importItem{
			Front: firstNonEmpty(row["front"], row["question"], row["q"]),
			Back:  firstNonEmpty(row["back"], row["answer"], row["a"]),
			Type:  row["type"],
		})
	}
	return items
}

var markdownHeading = regexp.MustCompile(`^#+\s*`)

// parseMarkdownCards splits blocks on "---" separators. The first line
// of a block (heading markers stripped) is the front, the rest is the
// back.
func parseMarkdownCards(content string) []importItem {
	var items []importItem
	for _, block := range strings.Split(content, "---") {
		var lines []string
		for _, line := range strings.Split(block, "\n") {
			if strings.TrimSpace(line) != "" {
				lines = append(lines, line)
			}
		}
		if len(lines) < 2 {
			continue
		}
		items = append(items, importItem{
			Front: markdownHeading.ReplaceAllString(strings.TrimSpace(lines[0]), ""),
			Back:  strings.Join(lines[1:], "\n"),
		})
	}
	return items
}

func parseJSONCards(content string) ([]importItem, error) {
	var raw []struct {
		Front    string `json:"front"`
		Back     string `json:"back"`
		Type     string `json:"type"`
		Question string `json:"question"`
		Answer   string `json:"answer"`
		Q        string `json:"q"`
		A        string `json:"a"`
	}
	if err := json.Unmarshal([]byte(content), &raw); err != nil {
		return nil, entity.ErrInvalidImportFormat
	}
	items := make([]importItem, 0, len(raw))
	for _, entry := range raw {
		items = append(items, importItem{
			Front: firstNonEmpty(entry.Front, entry.Question, entry.Q),
			Back:  firstNonEmpty(entry.Back, entry.Answer, entry.A),
			Type:  entry.Type,
		})
	}
	return items, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
