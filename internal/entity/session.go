package entity

import (
	"time"

	"github.com/google/uuid"
)

// StudySession is a bounded study window. DeckID is nil when the
// session spans all of the user's decks. A session is finalized exactly
// once; re-ending an ended session is a conflict.
type StudySession struct {
	ID            uuid.UUID
	UserID        uuid.UUID
	DeckID        *uuid.UUID
	StartedAt     time.Time
	EndedAt       *time.Time
	CardsReviewed int
	CorrectCount  int
	Stats         *SessionStats
}

// Ended reports whether the session has been finalized.
func (s *StudySession) Ended() bool {
	return s.EndedAt != nil
}

// SessionStats is the opaque aggregate persisted on session end.
type SessionStats struct {
	AvgLatencyMs int                `json:"avg_latency_ms"`
	AccuracyPct  float64            `json:"accuracy_pct"`
	Generated    int                `json:"generated"`
	ByDifficulty []BucketGeneration `json:"by_difficulty,omitempty"`
}

// BucketGeneration records the adaptive-generation outcome for one
// response bucket (Again/Hard/Good/Easy).
type BucketGeneration struct {
	Response ReviewResponse    `json:"response"`
	Reviews  int               `json:"reviews"`
	Quota    int               `json:"quota"`
	Topics   []TopicGeneration `json:"topics,omitempty"`
}

// TopicGeneration records the outcome for one topic within a bucket.
// A failed topic carries its error and a zero created count; failures
// never abort the surrounding session-end operation.
type TopicGeneration struct {
	Topic     string `json:"topic"`
	Requested int    `json:"requested"`
	Created   int    `json:"created"`
	Error     string `json:"error,omitempty"`
}

// Generated sums the cards actually persisted for this bucket.
func (b BucketGeneration) Generated() int {
	total := 0
	for _, t := range b.Topics {
		total += t.Created
	}
	return total
}

// GenerationReport is the session-end result returned to the caller.
// It is always produced, even when every generation attempt failed.
type GenerationReport struct {
	SessionID     uuid.UUID          `json:"session_id"`
	Message       string             `json:"message"`
	CardsReviewed int                `json:"cards_reviewed"`
	CorrectCount  int                `json:"correct_count"`
	Generated     int                `json:"generated"`
	ByDifficulty  []BucketGeneration `json:"by_difficulty,omitempty"`
}
