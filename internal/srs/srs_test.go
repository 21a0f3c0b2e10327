package srs

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/deckardhq/deckard/internal/entity"
	"github.com/google/uuid"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func freshState() entity.SchedulerState {
	return entity.NewSchedulerState(uuid.New(), testNow)
}

func TestNextFirstSuccess(t *testing.T) {
	for _, resp := range []entity.ReviewResponse{entity.ResponseHard, entity.ResponseGood, entity.ResponseEasy} {
		state := freshState()
		next, err := Next(state, resp, testNow)
		if err != nil {
			t.Fatalf("Next(%s): %v", resp, err)
		}
		if next.IntervalDays != 1 {
			t.Errorf("%s: expected interval 1 on first success, got %d", resp, next.IntervalDays)
		}
		if next.Repetitions != 1 {
			t.Errorf("%s: expected repetitions 1, got %d", resp, next.Repetitions)
		}
		if !next.NextDueAt.Equal(testNow.AddDate(0, 0, 1)) {
			t.Errorf("%s: unexpected due date %v", resp, next.NextDueAt)
		}
	}
}

func TestNextSecondSuccess(t *testing.T) {
	state := freshState()
	state.Repetitions = 1
	state.IntervalDays = 1

	next, err := Next(state, entity.ResponseGood, testNow)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if next.IntervalDays != 6 {
		t.Errorf("expected interval 6 on second success, got %d", next.IntervalDays)
	}
	if next.Repetitions != 2 {
		t.Errorf("expected repetitions 2, got %d", next.Repetitions)
	}
}

func TestNextMatureInterval(t *testing.T) {
	state := freshState()
	state.Repetitions = 3
	state.IntervalDays = 10
	state.Ease = 2.5

	next, err := Next(state, entity.ResponseGood, testNow)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	// ceil(10 * 2.5) computed with the pre-update ease.
	if next.IntervalDays != 25 {
		t.Errorf("expected interval 25, got %d", next.IntervalDays)
	}
	if next.IntervalDays < state.IntervalDays {
		t.Errorf("interval shrank on success: %d -> %d", state.IntervalDays, next.IntervalDays)
	}
}

func TestNextIntervalMonotonicWhenEaseAtLeastOne(t *testing.T) {
	state := freshState()
	state.Repetitions = 2
	state.Ease = entity.MinEase
	for _, interval := range []int{1, 3, 17, 120} {
		state.IntervalDays = interval
		next, err := Next(state, entity.ResponseHard, testNow)
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		if next.IntervalDays < interval {
			t.Errorf("interval %d shrank to %d", interval, next.IntervalDays)
		}
	}
}

func TestNextEaseAdjustment(t *testing.T) {
	tests := []struct {
		response entity.ReviewResponse
		ease     float64
		want     float64
	}{
		{entity.ResponseEasy, 2.5, 2.6},
		{entity.ResponseGood, 2.5, 2.5},
		{entity.ResponseHard, 2.5, 2.36},
		{entity.ResponseHard, 1.3, 1.3},  // floored
		{entity.ResponseGood, 1.3, 1.3},  // floored
	}
	for _, tt := range tests {
		state := freshState()
		state.Repetitions = 2
		state.IntervalDays = 5
		state.Ease = tt.ease

		next, err := Next(state, tt.response, testNow)
		if err != nil {
			t.Fatalf("Next(%s): %v", tt.response, err)
		}
		if math.Abs(next.Ease-tt.want) > 1e-9 {
			t.Errorf("%s from ease %.2f: expected %.2f, got %.4f", tt.response, tt.ease, tt.want, next.Ease)
		}
		if next.Ease < entity.MinEase {
			t.Errorf("ease fell below floor: %.4f", next.Ease)
		}
	}
}

func TestNextFailureResets(t *testing.T) {
	state := freshState()
	state.Repetitions = 7
	state.IntervalDays = 42
	state.Ease = 2.1

	next, err := Next(state, entity.ResponseAgain, testNow)
	if err != nil {
		t.Fatalf("Next: %v", err)
	}
	if next.Repetitions != 0 {
		t.Errorf("expected repetitions reset to 0, got %d", next.Repetitions)
	}
	if next.IntervalDays != 1 {
		t.Errorf("expected interval reset to 1, got %d", next.IntervalDays)
	}
	if next.Ease != state.Ease {
		t.Errorf("ease must be unchanged on failure: %.2f -> %.2f", state.Ease, next.Ease)
	}
	if next.LastReviewedAt == nil || !next.LastReviewedAt.Equal(testNow) {
		t.Errorf("expected last-reviewed to be stamped, got %v", next.LastReviewedAt)
	}
}

func TestNextInvalidResponse(t *testing.T) {
	state := freshState()
	_, err := Next(state, entity.ReviewResponse("Maybe"), testNow)
	if !errors.Is(err, entity.ErrInvalidReviewResponse) {
		t.Fatalf("expected ErrInvalidReviewResponse, got %v", err)
	}
}

func TestNextDoesNotMutateInput(t *testing.T) {
	state := freshState()
	state.Repetitions = 2
	state.IntervalDays = 4
	before := state

	if _, err := Next(state, entity.ResponseGood, testNow); err != nil {
		t.Fatalf("Next: %v", err)
	}
	if state != before {
		t.Errorf("input state mutated: %+v", state)
	}
}
