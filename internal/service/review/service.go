package review

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/content"
	"github.com/phrazzld/scry-vocab/internal/domain"
)

// Stats is a progress snapshot for one owner.
type Stats struct {
	Total    int `json:"total"`
	Due      int `json:"due"`
	New      int `json:"new"`
	Learning int `json:"learning"`
	Mastered int `json:"mastered"`
}

// Service exposes the review engine operations. Every call is scoped to the
// caller-supplied owner ID, which is trusted as authenticated.
type Service interface {
	// IngestFromContent creates review items for content not yet represented
	// by a live item with the same source reference. Invalid and already-known
	// entries are skipped. Writes happen in bounded batches; a failed batch is
	// logged (and handed to the retry scheduler when one is configured)
	// without stopping later batches. Returns the number of items created.
	IngestFromContent(ctx context.Context, ownerID uuid.UUID, items []content.Item) (int, error)

	// CreateAdHoc creates a single item, or returns the live item already
	// holding the same (owner, source reference, target) key with created=false.
	CreateAdHoc(ctx context.Context, ownerID uuid.UUID, item content.Item) (*domain.ReviewItem, bool, error)

	// DueItems returns items due now, earliest first. A limit <= 0 applies the
	// configured default limit, where 0 means no limit.
	DueItems(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.ReviewItem, error)

	// DueCount returns the number of items due now.
	DueCount(ctx context.Context, ownerID uuid.UUID) (int, error)

	// Grade applies a grade and persists the next schedule atomically.
	// Returns ErrItemNotFound, ErrInvalidGrade or ErrConcurrencyConflict
	// without mutating anything.
	Grade(ctx context.Context, ownerID, itemID uuid.UUID, grade domain.Grade) (*domain.ReviewItem, error)

	// Postpone pushes an item's next review forward by whole days, leaving the
	// schedule untouched.
	Postpone(ctx context.Context, ownerID, itemID uuid.UUID, days int) (*domain.ReviewItem, error)

	// Stats returns counts by difficulty plus the live due count.
	Stats(ctx context.Context, ownerID uuid.UUID) (Stats, error)

	// ListItems returns every live item, newest first.
	ListItems(ctx context.Context, ownerID uuid.UUID) ([]*domain.ReviewItem, error)

	// ResetForReview makes every live item that came from content due now and
	// returns how many were reset.
	ResetForReview(ctx context.Context, ownerID uuid.UUID) (int, error)

	// RetireSource tombstones every item created from sourceRef and returns
	// how many were retired.
	RetireSource(ctx context.Context, ownerID uuid.UUID, sourceRef string) (int, error)
}

// RetryScheduler accepts ingestion batches whose insert failed on a
// transient store error.
type RetryScheduler interface {
	ScheduleIngestRetry(ctx context.Context, ownerID uuid.UUID, batchIndex int, items []*domain.ReviewItem) error
}

// Default tuning values
const (
	DefaultBatchSize = 50
)

// Config tunes the review service.
type Config struct {
	// BatchSize bounds how many items each ingestion write carries.
	BatchSize int

	// DefaultDueLimit applies when DueItems is called without a limit. 0 is unlimited.
	DefaultDueLimit int

	// Retry receives failed ingestion batches. Nil disables retries.
	Retry RetryScheduler
}
