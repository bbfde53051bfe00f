package srs

import (
	"time"

	"github.com/phrazzld/scry-vocab/internal/domain"
)

// DefaultMaxIntervalDays is roughly one hundred years.
const DefaultMaxIntervalDays = 36500

// Params defines all configurable parameters for the SRS algorithm
type Params struct {
	// Core limits
	MinEaseFactor float64

	// Ease adjustments per grade. Good is zero: the ease factor is left unchanged.
	EaseFactorAdjustment map[domain.Grade]float64

	// Intervals used while an item is young, keyed by repetitions before the review.
	FirstReviewIntervals  map[domain.Grade]int // repetitions == 0
	SecondReviewIntervals map[domain.Grade]int // repetitions == 1

	// HardInterval is the fixed full-day delay after a hard grade.
	HardInterval int

	// EasyBonus multiplies interval × ease for mature items graded easy.
	EasyBonus float64

	// MaxIntervalDays caps interval growth and how far ahead Postpone may push an item.
	MaxIntervalDays int

	// AgainDelay is the short-term requeue used when the new interval is zero.
	AgainDelay time.Duration

	// Location defines the calendar used for "start of day" boundaries.
	Location *time.Location
}

// ParamsConfig allows overriding the default parameters when creating a new Params instance.
// Zero values keep the default.
type ParamsConfig struct {
	MinEaseFactor float64

	AgainEaseFactorAdjustment float64
	HardEaseFactorAdjustment  float64
	EasyEaseFactorAdjustment  float64

	EasyBonus float64

	MaxIntervalDays int

	AgainDelayMinutes int

	Location *time.Location
}

// NewDefaultParams creates a new Params instance with default values
func NewDefaultParams() *Params {
	return &Params{
		MinEaseFactor: domain.MinEaseFactor,

		EaseFactorAdjustment: map[domain.Grade]float64{
			domain.GradeAgain: -0.20,
			domain.GradeHard:  -0.15,
			domain.GradeGood:  0.0,
			domain.GradeEasy:  0.15,
		},

		FirstReviewIntervals: map[domain.Grade]int{
			domain.GradeGood: 1,
			domain.GradeEasy: 2,
		},
		SecondReviewIntervals: map[domain.Grade]int{
			domain.GradeGood: 3,
			domain.GradeEasy: 5,
		},

		HardInterval:    1,
		EasyBonus:       1.3,
		MaxIntervalDays: DefaultMaxIntervalDays,

		// Review again in 10 minutes
		AgainDelay: 10 * time.Minute,

		Location: time.Local,
	}
}

// NewParams creates a new Params instance with custom configuration
func NewParams(config ParamsConfig) *Params {
	params := NewDefaultParams()

	// The floor can be raised but never lowered below the domain invariant.
	if config.MinEaseFactor > params.MinEaseFactor {
		params.MinEaseFactor = config.MinEaseFactor
	}

	if config.AgainEaseFactorAdjustment != 0 {
		params.EaseFactorAdjustment[domain.GradeAgain] = config.AgainEaseFactorAdjustment
	}
	if config.HardEaseFactorAdjustment != 0 {
		params.EaseFactorAdjustment[domain.GradeHard] = config.HardEaseFactorAdjustment
	}
	if config.EasyEaseFactorAdjustment != 0 {
		params.EaseFactorAdjustment[domain.GradeEasy] = config.EasyEaseFactorAdjustment
	}

	if config.EasyBonus > 0 {
		params.EasyBonus = config.EasyBonus
	}

	if config.MaxIntervalDays > 0 {
		params.MaxIntervalDays = config.MaxIntervalDays
	}

	if config.AgainDelayMinutes > 0 {
		params.AgainDelay = time.Duration(config.AgainDelayMinutes) * time.Minute
	}

	if config.Location != nil {
		params.Location = config.Location
	}

	return params
}
