package entity

import (
	"time"

	"github.com/google/uuid"
)

// ReviewResponse is the learner's self-graded outcome of one card review.
type ReviewResponse string

const (
	ResponseAgain ReviewResponse = "Again"
	ResponseHard  ReviewResponse = "Hard"
	ResponseGood  ReviewResponse = "Good"
	ResponseEasy  ReviewResponse = "Easy"
)

// Scheduler defaults applied to every freshly created card.
const (
	DefaultEase = 2.5
	MinEase     = 1.3
)

// Quality maps a response to its SM-2 quality score. The mapping is
// deliberately coarse: four buckets instead of SM-2's six grades.
func (r ReviewResponse) Quality() (int, error) {
	switch r {
	case ResponseEasy:
		return 5, nil
	case ResponseGood:
		return 4, nil
	case ResponseHard:
		return 3, nil
	case ResponseAgain:
		return 0, nil
	default:
		return 0, ErrInvalidReviewResponse
	}
}

// Correct reports whether the response counts toward a session's
// correct-answer tally.
func (r ReviewResponse) Correct() bool {
	return r == ResponseGood || r == ResponseEasy
}

// SchedulerState holds the spaced-repetition timing for a single card.
// There is exactly one state row per card; it is mutated only by review
// recording and created fresh by card materialization.
type SchedulerState struct {
	CardID         uuid.UUID
	Ease           float64
	IntervalDays   int
	Repetitions    int
	NextDueAt      time.Time
	LastReviewedAt *time.Time
}

// NewSchedulerState returns the state a freshly created card starts
// with: due immediately, default ease, no history.
func NewSchedulerState(cardID uuid.UUID, now time.Time) SchedulerState {
	return SchedulerState{
		CardID:    cardID,
		Ease:      DefaultEase,
		NextDueAt: now,
	}
}

// Review is one recorded answer. Rows are append-only; they are removed
// only when the owning card is deleted.
type Review struct {
	ID        uuid.UUID
	CardID    uuid.UUID
	UserID    uuid.UUID
	Response  ReviewResponse
	Ease      float64
	LatencyMs int
	CreatedAt time.Time
}
