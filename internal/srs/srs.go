// Package srs implements the SM-2 state transition that governs review
// timing. The package is pure: no clock, no storage, no I/O.
package srs

import (
	"math"
	"time"

	"github.com/deckardhq/deckard/internal/entity"
)

// passThreshold is the minimum quality counted as a successful recall.
const passThreshold = 3

// Next applies one review outcome to a card's scheduling state and
// returns the updated state. The input state is not modified.
//
// Success (quality >= 3) grows the interval: 1 day after the first
// success, 6 days after the second, then ceil(interval * ease), and
// nudges the ease factor by the SM-2 formula with a 1.3 floor. Failure
// resets repetitions and schedules the card for tomorrow, leaving ease
// untouched.
func Next(state entity.SchedulerState, response entity.ReviewResponse, now time.Time) (entity.SchedulerState, error) {
	quality, err := response.Quality()
	if err != nil {
		return entity.SchedulerState{}, err
	}

	next := state
	if quality >= passThreshold {
		switch state.Repetitions {
		case 0:
			next.IntervalDays = 1
		case 1:
			next.IntervalDays = 6
		default:
			next.IntervalDays = int(math.Ceil(float64(state.IntervalDays) * state.Ease))
		}
		next.Repetitions = state.Repetitions + 1

		q := float64(quality)
		ease := state.Ease + (0.1 - (5-q)*(0.08+(5-q)*0.02))
		if ease < entity.MinEase {
			ease = entity.MinEase
		}
		next.Ease = ease
	} else {
		next.Repetitions = 0
		next.IntervalDays = 1
	}

	next.NextDueAt = now.AddDate(0, 0, next.IntervalDays)
	reviewed := now
	next.LastReviewedAt = &reviewed
	return next, nil
}
