package usecase

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/deckardhq/deckard/internal/entity"
)

// Adaptive generation synthesizes follow-up cards after a session ends.
// Struggled-with material earns more reinforcement: each response bucket
// has a fixed card quota, split across the topics seen in that bucket.
const (
	maxTopicsPerReview = 3
	generateTimeout    = 45 * time.Second
)

var bucketQuotas = map[entity.ReviewResponse]int{
	entity.ResponseAgain: 4,
	entity.ResponseHard:  2,
	entity.ResponseGood:  1,
	entity.ResponseEasy:  0,
}

var bucketOrder = []entity.ReviewResponse{
	entity.ResponseAgain,
	entity.ResponseHard,
	entity.ResponseGood,
	entity.ResponseEasy,
}

// generateForSession runs the whole adaptive pass for one ended session.
// Every failure inside it is recorded on the report and logged; none
// propagates to the caller.
func (u *sessionUsecase) generateForSession(ctx context.Context, session *entity.StudySession, reviews []entity.Review) []entity.BucketGeneration {
	cardIDs := lo.Uniq(lo.Map(reviews, func(r entity.Review, _ int) uuid.UUID { return r.CardID }))
	cards, err := u.cards.ListByIDs(ctx, cardIDs)
	if err != nil {
		u.logger.WithError(err).WithField("session_id", session.ID).
			Warn("adaptive generation skipped: loading reviewed cards failed")
		return nil
	}
	cardsByID := lo.KeyBy(cards, func(c *entity.Card) uuid.UUID { return c.ID })

	targetDeck, ok := targetDeckID(session, reviews, cardsByID)
	if !ok {
		return nil
	}

	seen := u.seenFronts(ctx, targetDeck, cards)
	avoid := lo.Uniq(lo.Map(cards, func(c *entity.Card, _ int) string { return c.Front }))

	grouped := lo.GroupBy(reviews, func(r entity.Review) entity.ReviewResponse { return r.Response })

	var buckets []entity.BucketGeneration
	for _, response := range bucketOrder {
		group := grouped[response]
		if len(group) == 0 {
			continue
		}
		bucket := entity.BucketGeneration{
			Response: response,
			Reviews:  len(group),
			Quota:    bucketQuotas[response],
		}
		if bucket.Quota > 0 {
			topics := u.bucketTopics(ctx, group, cardsByID)
			bucket.Topics = u.generateBucket(ctx, session, targetDeck, response, bucket.Quota, topics, avoid, seen)
		}
		buckets = append(buckets, bucket)
	}
	return buckets
}

// targetDeckID picks the deck generated cards land in: the session's
// deck when scoped, otherwise the deck of the first reviewed card.
func targetDeckID(session *entity.StudySession, reviews []entity.Review, cardsByID map[uuid.UUID]*entity.Card) (uuid.UUID, bool) {
	if session.DeckID != nil {
		return *session.DeckID, true
	}
	for _, r := range reviews {
		if card, ok := cardsByID[r.CardID]; ok {
			return card.DeckID, true
		}
	}
	return uuid.Nil, false
}

// seenFronts builds the duplicate-suppression set over every deck that
// contributes to this pass. The set is transient; it is rebuilt on each
// session end rather than maintained as an index.
func (u *sessionUsecase) seenFronts(ctx context.Context, targetDeck uuid.UUID, cards []*entity.Card) map[string]struct{} {
	deckIDs := lo.Uniq(append(
		lo.Map(cards, func(c *entity.Card, _ int) uuid.UUID { return c.DeckID }),
		targetDeck,
	))
	seen := make(map[string]struct{})
	fronts, err := u.cards.Fronts(ctx, deckIDs)
	if err != nil {
		u.logger.WithError(err).Warn("seeding duplicate set failed, generating without it")
		return seen
	}
	for _, front := range fronts {
		seen[entity.NormalizeFront(front)] = struct{}{}
	}
	return seen
}

// bucketTopics collects up to maxTopicsPerReview topics per review,
// deduplicated across the bucket in first-seen order. Tagged cards
// supply their tags directly; untagged cards go through the extractor.
func (u *sessionUsecase) bucketTopics(ctx context.Context, group []entity.Review, cardsByID map[uuid.UUID]*entity.Card) []string {
	var topics []string
	for _, review := range group {
		card, ok := cardsByID[review.CardID]
		if !ok {
			continue
		}
		source := entity.TaggedTopics(card.Tags)
		if source.Tagged() {
			topics = append(topics, clampTopics(source.Topics())...)
			continue
		}
		source = entity.InferredTopics(card.Front + "\n" + card.Back)
		extracted, err := u.extractor.ExtractTopics(ctx, source.Text(), maxTopicsPerReview)
		if err != nil {
			u.logger.WithError(err).WithField("card_id", card.ID).
				Warn("topic extraction failed, skipping card")
			continue
		}
		topics = append(topics, clampTopics(extracted)...)
	}
	return lo.Uniq(topics)
}

func clampTopics(topics []string) []string {
	if len(topics) > maxTopicsPerReview {
		return topics[:maxTopicsPerReview]
	}
	return topics
}

// generateBucket spends one bucket's quota across its topics. The split
// rounds up, so a bucket may create slightly more cards than its quota;
// that slack is intentional.
func (u *sessionUsecase) generateBucket(
	ctx context.Context,
	session *entity.StudySession,
	targetDeck uuid.UUID,
	response entity.ReviewResponse,
	quota int,
	topics []string,
	avoid []string,
	seen map[string]struct{},
) []entity.TopicGeneration {
	if len(topics) == 0 {
		return nil
	}
	perTopic := (quota + len(topics) - 1) / len(topics)

	results := make([]entity.TopicGeneration, 0, len(topics))
	for _, topic := range topics {
		outcome := entity.TopicGeneration{Topic: topic, Requested: perTopic}

		genCtx, cancel := context.WithTimeout(ctx, generateTimeout)
		items, err := u.generator.GenerateCards(genCtx, topic, perTopic, avoid)
		cancel()
		if err != nil {
			outcome.Error = err.Error()
			u.logger.WithError(err).WithFields(map[string]any{
				"session_id": session.ID,
				"topic":      topic,
				"response":   response,
			}).Warn("card generation failed for topic")
			results = append(results, outcome)
			continue
		}

		for _, item := range items {
			if !item.Valid() {
				continue
			}
			key := entity.NormalizeFront(item.Front)
			if _, dup := seen[key]; dup {
				continue
			}
			if err := u.materialize(ctx, targetDeck, topic, response, item); err != nil {
				u.logger.WithError(err).WithField("topic", topic).
					Warn("persisting generated card failed")
				continue
			}
			seen[key] = struct{}{}
			outcome.Created++
		}
		results = append(results, outcome)
	}
	return results
}

// materialize persists one generated card with a fresh scheduler state
// so it enters the study queue immediately.
func (u *sessionUsecase) materialize(ctx context.Context, deckID uuid.UUID, topic string, response entity.ReviewResponse, item entity.GeneratedCard) error {
	now := u.clock()
	card := &entity.Card{
		ID:            uuid.New(),
		DeckID:        deckID,
		Type:          entity.CardTypeBasic,
		Front:         item.Front,
		Back:          item.Back,
		Tags:          lo.Uniq(append([]string{topic, entity.TagAdaptive}, item.Tags...)),
		SourceExcerpt: fmt.Sprintf("Generated after %s response - Topic: %s", response, topic),
	}
	card.Normalize(now)
	if err := card.Validate(); err != nil {
		return err
	}
	_, err := u.cards.CreateWithState(ctx, card, entity.NewSchedulerState(card.ID, now))
	return err
}
