package review_test

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/store"
	"github.com/stretchr/testify/mock"
)

// MockReviewItemStore is a testify mock of store.ReviewItemStore
type MockReviewItemStore struct {
	mock.Mock
}

var _ store.ReviewItemStore = (*MockReviewItemStore)(nil)

func (m *MockReviewItemStore) Get(ctx context.Context, ownerID, id uuid.UUID) (*domain.ReviewItem, error) {
	args := m.Called(ctx, ownerID, id)
	item, _ := args.Get(0).(*domain.ReviewItem)
	return item, args.Error(1)
}

func (m *MockReviewItemStore) FindByKey(
	ctx context.Context,
	ownerID uuid.UUID,
	sourceRef *string,
	target string,
) (*domain.ReviewItem, error) {
	args := m.Called(ctx, ownerID, sourceRef, target)
	item, _ := args.Get(0).(*domain.ReviewItem)
	return item, args.Error(1)
}

func (m *MockReviewItemStore) List(ctx context.Context, ownerID uuid.UUID) ([]*domain.ReviewItem, error) {
	args := m.Called(ctx, ownerID)
	items, _ := args.Get(0).([]*domain.ReviewItem)
	return items, args.Error(1)
}

func (m *MockReviewItemStore) ListDue(
	ctx context.Context,
	ownerID uuid.UUID,
	now time.Time,
	limit int,
) ([]*domain.ReviewItem, error) {
	args := m.Called(ctx, ownerID, now, limit)
	items, _ := args.Get(0).([]*domain.ReviewItem)
	return items, args.Error(1)
}

func (m *MockReviewItemStore) CountDue(ctx context.Context, ownerID uuid.UUID, now time.Time) (int, error) {
	args := m.Called(ctx, ownerID, now)
	return args.Int(0), args.Error(1)
}

func (m *MockReviewItemStore) CountByDifficulty(
	ctx context.Context,
	ownerID uuid.UUID,
) (map[domain.Difficulty]int, error) {
	args := m.Called(ctx, ownerID)
	counts, _ := args.Get(0).(map[domain.Difficulty]int)
	return counts, args.Error(1)
}

func (m *MockReviewItemStore) ListSourceRefs(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	args := m.Called(ctx, ownerID)
	refs, _ := args.Get(0).([]string)
	return refs, args.Error(1)
}

func (m *MockReviewItemStore) InsertOrGet(
	ctx context.Context,
	item *domain.ReviewItem,
) (*domain.ReviewItem, bool, error) {
	args := m.Called(ctx, item)
	stored, _ := args.Get(0).(*domain.ReviewItem)
	return stored, args.Bool(1), args.Error(2)
}

func (m *MockReviewItemStore) InsertBatch(ctx context.Context, items []*domain.ReviewItem) (int, error) {
	args := m.Called(ctx, items)
	return args.Int(0), args.Error(1)
}

func (m *MockReviewItemStore) UpdateSchedule(ctx context.Context, item *domain.ReviewItem, expectedVersion int) error {
	args := m.Called(ctx, item, expectedVersion)
	return args.Error(0)
}

func (m *MockReviewItemStore) ResetDue(ctx context.Context, ownerID uuid.UUID, now time.Time) (int, error) {
	args := m.Called(ctx, ownerID, now)
	return args.Int(0), args.Error(1)
}

func (m *MockReviewItemStore) MarkDeletedBySource(
	ctx context.Context,
	ownerID uuid.UUID,
	sourceRef string,
	now time.Time,
) (int, error) {
	args := m.Called(ctx, ownerID, sourceRef, now)
	return args.Int(0), args.Error(1)
}

// MockRetryScheduler records scheduled retries
type MockRetryScheduler struct {
	mock.Mock
}

func (m *MockRetryScheduler) ScheduleIngestRetry(
	ctx context.Context,
	ownerID uuid.UUID,
	batchIndex int,
	items []*domain.ReviewItem,
) error {
	args := m.Called(ctx, ownerID, batchIndex, items)
	return args.Error(0)
}
