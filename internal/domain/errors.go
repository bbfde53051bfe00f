// Package domain defines the core business entities and errors.
package domain

import (
	"errors"
	"fmt"
)

// Common domain errors used across the application.
var (
	// ErrValidation is returned when a domain entity fails validation.
	// Field-specific errors below wrap it so callers can test for the whole class.
	ErrValidation = errors.New("validation failed")

	// ErrInvalidGrade is returned when a grade is not one of again, hard, good, easy.
	ErrInvalidGrade = fmt.Errorf("%w: invalid grade", ErrValidation)

	// ErrItemIDEmpty is returned when a review item ID is nil.
	ErrItemIDEmpty = fmt.Errorf("%w: review item ID cannot be empty", ErrValidation)

	// ErrOwnerIDEmpty is returned when a review item has no owner.
	ErrOwnerIDEmpty = fmt.Errorf("%w: owner ID cannot be empty", ErrValidation)

	// ErrVocabularyBaseEmpty is returned when the base-language term is blank.
	ErrVocabularyBaseEmpty = fmt.Errorf("%w: vocabulary base term cannot be empty", ErrValidation)

	// ErrVocabularyTargetEmpty is returned when the target-language term is blank.
	ErrVocabularyTargetEmpty = fmt.Errorf("%w: vocabulary target term cannot be empty", ErrValidation)

	// ErrInvalidInterval is returned when intervalDays is negative.
	ErrInvalidInterval = fmt.Errorf("%w: interval must be greater than or equal to 0", ErrValidation)

	// ErrInvalidEaseFactor is returned when the ease factor is below MinEaseFactor.
	ErrInvalidEaseFactor = fmt.Errorf("%w: ease factor must be at least %.1f", ErrValidation, MinEaseFactor)

	// ErrInvalidRepetitions is returned when repetitions is negative.
	ErrInvalidRepetitions = fmt.Errorf("%w: repetitions must be greater than or equal to 0", ErrValidation)

	// ErrDifficultyMismatch is returned when the stored difficulty label disagrees
	// with Classify(repetitions, intervalDays).
	ErrDifficultyMismatch = fmt.Errorf("%w: difficulty does not match schedule", ErrValidation)
)
