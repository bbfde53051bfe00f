package srs

import (
	"errors"
	"time"

	"github.com/phrazzld/scry-vocab/internal/domain"
)

// Common errors
var (
	ErrNilItem     = errors.New("review item cannot be nil")
	ErrInvalidDays = errors.New("postpone days must be at least 1")
)

// Service defines the interface for SRS algorithm operations.
// All methods are pure: they return new values and never touch storage.
type Service interface {
	// Grade computes the item's next schedule for a grade.
	// Returns domain.ErrInvalidGrade for unknown grades.
	Grade(item *domain.ReviewItem, grade domain.Grade, now time.Time) (*domain.ReviewItem, error)

	// FirstReviewAt returns when a newly created item becomes due.
	FirstReviewAt(now time.Time) time.Time

	// Postpone pushes the next review time forward by whole days, counting from
	// the later of now and the current due time, never beyond MaxIntervalDays from now.
	Postpone(item *domain.ReviewItem, days int, now time.Time) (*domain.ReviewItem, error)
}

// defaultService is the standard implementation of the Service interface
type defaultService struct {
	params *Params
}

// NewDefaultService creates a new SRS service with default parameters
func NewDefaultService() Service {
	return &defaultService{
		params: NewDefaultParams(),
	}
}

// NewServiceWithParams creates a new SRS service with custom parameters
func NewServiceWithParams(params *Params) Service {
	if params == nil {
		params = NewDefaultParams()
	}
	return &defaultService{
		params: params,
	}
}

// Grade implements Service.Grade
func (s *defaultService) Grade(
	item *domain.ReviewItem,
	grade domain.Grade,
	now time.Time,
) (*domain.ReviewItem, error) {
	if item == nil {
		return nil, ErrNilItem
	}

	if !grade.Valid() {
		return nil, domain.ErrInvalidGrade
	}

	return calculateNextItem(item, grade, now, s.params), nil
}

// FirstReviewAt implements Service.FirstReviewAt
func (s *defaultService) FirstReviewAt(now time.Time) time.Time {
	return startOfDay(now, domain.DefaultIntervalDays, s.params.Location)
}

// Postpone implements Service.Postpone
func (s *defaultService) Postpone(
	item *domain.ReviewItem,
	days int,
	now time.Time,
) (*domain.ReviewItem, error) {
	if item == nil {
		return nil, ErrNilItem
	}

	if days < 1 {
		return nil, ErrInvalidDays
	}

	// Overdue items are postponed relative to now, not to their stale due time.
	base := item.NextReviewAt
	if base.Before(now) {
		base = now
	}

	nextReviewAt := base.AddDate(0, 0, days)
	if maxDays := s.params.MaxIntervalDays; maxDays > 0 {
		if limit := now.AddDate(0, 0, maxDays); nextReviewAt.After(limit) {
			nextReviewAt = limit
		}
	}

	next := item.Clone()
	next.NextReviewAt = nextReviewAt
	next.UpdatedAt = now

	return next, nil
}
