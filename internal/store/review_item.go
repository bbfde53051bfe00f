package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
)

// ReviewItemStore defines the interface for review item persistence.
// Every read is scoped by owner and excludes tombstoned items.
type ReviewItemStore interface {
	// Get retrieves a live item by owner and ID.
	// Returns ErrReviewItemNotFound if it does not exist, is tombstoned, or
	// belongs to a different owner.
	Get(ctx context.Context, ownerID, id uuid.UUID) (*domain.ReviewItem, error)

	// FindByKey retrieves the live item holding the uniqueness key
	// (owner, sourceRef, target). A nil sourceRef matches ad-hoc items only.
	// Returns ErrReviewItemNotFound if there is none.
	FindByKey(ctx context.Context, ownerID uuid.UUID, sourceRef *string, target string) (*domain.ReviewItem, error)

	// List returns all live items for the owner, newest first.
	List(ctx context.Context, ownerID uuid.UUID) ([]*domain.ReviewItem, error)

	// ListDue returns live items with next_review_at <= now, earliest due first.
	// A limit <= 0 returns every due item.
	ListDue(ctx context.Context, ownerID uuid.UUID, now time.Time, limit int) ([]*domain.ReviewItem, error)

	// CountDue returns the number of items ListDue would return without a limit.
	CountDue(ctx context.Context, ownerID uuid.UUID, now time.Time) (int, error)

	// CountByDifficulty returns live item counts keyed by difficulty. Difficulties
	// with no items are absent from the map.
	CountByDifficulty(ctx context.Context, ownerID uuid.UUID) (map[domain.Difficulty]int, error)

	// ListSourceRefs returns the distinct source references of the owner's live items.
	ListSourceRefs(ctx context.Context, ownerID uuid.UUID) ([]string, error)

	// InsertOrGet saves a new item unless a live item already holds its
	// uniqueness key, in which case that item is returned with created=false.
	// A conflict is a normal result, never an error.
	InsertOrGet(ctx context.Context, item *domain.ReviewItem) (stored *domain.ReviewItem, created bool, err error)

	// InsertBatch saves items atomically, silently skipping any whose uniqueness
	// key is already taken, and returns how many rows were created.
	InsertBatch(ctx context.Context, items []*domain.ReviewItem) (int, error)

	// UpdateSchedule persists the schedule, review timestamps and updated_at of
	// item, provided the stored version still equals expectedVersion. On success
	// the stored version becomes expectedVersion+1 and item.Version is set to it.
	// Returns ErrReviewItemNotFound if the item is gone and ErrVersionConflict if
	// another writer got there first.
	UpdateSchedule(ctx context.Context, item *domain.ReviewItem, expectedVersion int) error

	// ResetDue makes every live item with a source or media reference due at now,
	// leaving schedules untouched, and returns how many items changed.
	ResetDue(ctx context.Context, ownerID uuid.UUID, now time.Time) (int, error)

	// MarkDeletedBySource tombstones every live item of the owner carrying
	// sourceRef and returns how many items were tombstoned.
	MarkDeletedBySource(ctx context.Context, ownerID uuid.UUID, sourceRef string, now time.Time) (int, error)
}
