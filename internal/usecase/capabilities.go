package usecase

import (
	"context"

	"github.com/deckardhq/deckard/internal/entity"
)

// TopicExtractor labels card text with a small set of topic strings.
// Implementations may call an external model; the keyword fallback in
// adapter/assistant keeps extraction working without one.
type TopicExtractor interface {
	ExtractTopics(ctx context.Context, text string, max int) ([]string, error)
}

// CardGenerator synthesizes flashcards about a topic. The avoid list
// carries fronts the caller already has so the generator steers away
// from repeats; honoring it is best effort, deduplication happens on
// the caller's side regardless.
type CardGenerator interface {
	GenerateCards(ctx context.Context, topic string, count int, avoid []string) ([]entity.GeneratedCard, error)

	// GenerateFromText synthesizes up to max cards grounded in the
	// given source text rather than the model's own knowledge.
	GenerateFromText(ctx context.Context, topic, text string, max int) ([]entity.GeneratedCard, error)
}
