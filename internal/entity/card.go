package entity

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

// CardTypeBasic is the default front/back card type.
const CardTypeBasic = "basic"

// TagAdaptive marks cards synthesized by the adaptive generation policy,
// as opposed to cards created via CRUD or bulk import.
const TagAdaptive = "adaptive"

// Deck groups cards under a single owner.
type Deck struct {
	ID          uuid.UUID
	OwnerID     uuid.UUID
	Title       string
	Description string
	CreatedAt   time.Time
}

// Card is a single flashcard.
type Card struct {
	ID            uuid.UUID
	DeckID        uuid.UUID
	Type          string
	Front         string
	Back          string
	Tags          []string
	SourceExcerpt string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Normalize ensures defaults & constraints before persistence.
func (c *Card) Normalize(now time.Time) {
	c.Front = strings.TrimSpace(c.Front)
	c.Back = strings.TrimSpace(c.Back)
	if c.Type == "" {
		c.Type = CardTypeBasic
	}
	if c.Tags == nil {
		c.Tags = []string{}
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
}

// Validate reports whether the card carries usable text.
func (c *Card) Validate() error {
	if strings.TrimSpace(c.Front) == "" || strings.TrimSpace(c.Back) == "" {
		return ErrInvalidCardText
	}
	return nil
}

// NormalizeFront canonicalizes a card front for duplicate detection:
// lowercase, surrounding whitespace removed.
func NormalizeFront(front string) string {
	return strings.ToLower(strings.TrimSpace(front))
}

// TruncateText caps s at max bytes without splitting a multi-byte
// rune, so truncated text stays valid UTF-8.
func TruncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// GeneratedCard is one item returned by the card generator capability.
// Generator output is untrusted; callers keep only valid items.
type GeneratedCard struct {
	Front string   `json:"front"`
	Back  string   `json:"back"`
	Tags  []string `json:"tags,omitempty"`
}

// Valid reports whether the generated item has usable front and back
// text. Invalid items are dropped without failing the batch.
func (g GeneratedCard) Valid() bool {
	return strings.TrimSpace(g.Front) != "" && strings.TrimSpace(g.Back) != ""
}
