package entity

import "strings"

// TopicSource names where a card's topic labels come from. Cards with
// tags carry their topics directly; untagged cards defer to the topic
// extractor capability at aggregation time. Modeling the two cases as
// explicit variants keeps the fallback path visible and testable.
type TopicSource struct {
	topics []string
	text   string
}

// TaggedTopics builds a source from a card's existing tags. Blank tags
// are discarded.
func TaggedTopics(tags []string) TopicSource {
	cleaned := make([]string, 0, len(tags))
	for _, tag := range tags {
		if t := strings.TrimSpace(tag); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return TopicSource{topics: cleaned}
}

// InferredTopics builds a source that must be resolved by an extractor
// call over the given card text.
func InferredTopics(text string) TopicSource {
	return TopicSource{text: text}
}

// Tagged reports whether topics are already known.
func (s TopicSource) Tagged() bool { return len(s.topics) > 0 }

// Topics returns the pre-computed topic labels of a tagged source.
func (s TopicSource) Topics() []string { return s.topics }

// Text returns the card text an inferred source extracts topics from.
func (s TopicSource) Text() string { return s.text }
