package srs

import (
	"math"
	"time"

	"github.com/phrazzld/scry-vocab/internal/domain"
)

// calculateNewEaseFactor determines the new ease factor for a grade.
//
// Again and hard lower the ease factor, easy raises it and good leaves it
// unchanged. The result is never below params.MinEaseFactor; there is no ceiling.
func calculateNewEaseFactor(currentEF float64, grade domain.Grade, params *Params) float64 {
	newEF := currentEF + params.EaseFactorAdjustment[grade]
	if newEF < params.MinEaseFactor {
		newEF = params.MinEaseFactor
	}
	return newEF
}

// calculateNewRepetitions returns the repetition count after a grade.
// Again resets to zero, hard steps back one, good and easy advance one.
func calculateNewRepetitions(current int, grade domain.Grade) int {
	switch grade {
	case domain.GradeAgain:
		return 0
	case domain.GradeHard:
		if current <= 1 {
			return 0
		}
		return current - 1
	default:
		return current + 1
	}
}

// calculateNewInterval determines the new interval in days for a grade.
//
// Parameters:
//   - currentInterval: the interval before this review
//   - repetitions: the repetition count before this review
//   - easeFactor: the ease factor before this review
//
// Behavior:
//   - again: 0, meaning a short-term requeue measured in minutes
//   - hard: params.HardInterval full days
//   - good/easy with 0 or 1 prior repetitions: the configured young-item intervals
//   - good otherwise: round(interval × ease)
//   - easy otherwise: round(interval × ease × params.EasyBonus)
//
// Mature intervals are capped at params.MaxIntervalDays.
func calculateNewInterval(
	currentInterval int,
	repetitions int,
	easeFactor float64,
	grade domain.Grade,
	params *Params,
) int {
	switch grade {
	case domain.GradeAgain:
		return 0
	case domain.GradeHard:
		return params.HardInterval
	}

	switch repetitions {
	case 0:
		return params.FirstReviewIntervals[grade]
	case 1:
		return params.SecondReviewIntervals[grade]
	}

	// interval × ease is evaluated before the easy bonus; the grouping changes rounding.
	scaled := float64(currentInterval) * easeFactor
	if grade == domain.GradeEasy {
		scaled *= params.EasyBonus
	}

	interval := int(math.Round(scaled))
	// A corrupt zero interval on a mature item must still move forward.
	if interval < 1 {
		interval = 1
	}
	if params.MaxIntervalDays > 0 && interval > params.MaxIntervalDays {
		interval = params.MaxIntervalDays
	}
	return interval
}

// calculateNextReviewAt converts an interval into the next review timestamp.
// A zero interval schedules a retry params.AgainDelay from now; otherwise the
// item is due at the start of the local calendar day interval days ahead.
func calculateNextReviewAt(interval int, now time.Time, params *Params) time.Time {
	if interval == 0 {
		return now.Add(params.AgainDelay)
	}
	return startOfDay(now, interval, params.Location)
}

// startOfDay returns local midnight of the day offset days after now.
func startOfDay(now time.Time, offset int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	local := now.In(loc)
	return time.Date(local.Year(), local.Month(), local.Day()+offset, 0, 0, 0, 0, loc)
}

// calculateNextItem returns a copy of item with the schedule transition for grade applied.
// The input item is never modified.
func calculateNextItem(
	item *domain.ReviewItem,
	grade domain.Grade,
	now time.Time,
	params *Params,
) *domain.ReviewItem {
	next := item.Clone()
	current := item.Schedule

	interval := calculateNewInterval(
		current.IntervalDays,
		current.Repetitions,
		current.EaseFactor,
		grade,
		params,
	)
	repetitions := calculateNewRepetitions(current.Repetitions, grade)

	next.Schedule = domain.Schedule{
		IntervalDays: interval,
		EaseFactor:   calculateNewEaseFactor(current.EaseFactor, grade, params),
		Repetitions:  repetitions,
		Difficulty:   domain.Classify(repetitions, interval),
	}

	reviewedAt := now
	next.LastReviewedAt = &reviewedAt
	next.NextReviewAt = calculateNextReviewAt(interval, now, params)
	next.UpdatedAt = now

	return next
}
