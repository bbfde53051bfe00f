package api_test

import (
	"context"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/content"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/service/review"
	"github.com/stretchr/testify/mock"
)

// MockReviewService is a testify mock of review.Service
type MockReviewService struct {
	mock.Mock
}

var _ review.Service = (*MockReviewService)(nil)

func (m *MockReviewService) IngestFromContent(
	ctx context.Context,
	ownerID uuid.UUID,
	items []content.Item,
) (int, error) {
	args := m.Called(ctx, ownerID, items)
	return args.Int(0), args.Error(1)
}

func (m *MockReviewService) CreateAdHoc(
	ctx context.Context,
	ownerID uuid.UUID,
	item content.Item,
) (*domain.ReviewItem, bool, error) {
	args := m.Called(ctx, ownerID, item)
	result, _ := args.Get(0).(*domain.ReviewItem)
	return result, args.Bool(1), args.Error(2)
}

func (m *MockReviewService) DueItems(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.ReviewItem, error) {
	args := m.Called(ctx, ownerID, limit)
	items, _ := args.Get(0).([]*domain.ReviewItem)
	return items, args.Error(1)
}

func (m *MockReviewService) DueCount(ctx context.Context, ownerID uuid.UUID) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *MockReviewService) Grade(
	ctx context.Context,
	ownerID, itemID uuid.UUID,
	grade domain.Grade,
) (*domain.ReviewItem, error) {
	args := m.Called(ctx, ownerID, itemID, grade)
	item, _ := args.Get(0).(*domain.ReviewItem)
	return item, args.Error(1)
}

func (m *MockReviewService) Postpone(
	ctx context.Context,
	ownerID, itemID uuid.UUID,
	days int,
) (*domain.ReviewItem, error) {
	args := m.Called(ctx, ownerID, itemID, days)
	item, _ := args.Get(0).(*domain.ReviewItem)
	return item, args.Error(1)
}

func (m *MockReviewService) Stats(ctx context.Context, ownerID uuid.UUID) (review.Stats, error) {
	args := m.Called(ctx, ownerID)
	stats, _ := args.Get(0).(review.Stats)
	return stats, args.Error(1)
}

func (m *MockReviewService) ListItems(ctx context.Context, ownerID uuid.UUID) ([]*domain.ReviewItem, error) {
	args := m.Called(ctx, ownerID)
	items, _ := args.Get(0).([]*domain.ReviewItem)
	return items, args.Error(1)
}

func (m *MockReviewService) ResetForReview(ctx context.Context, ownerID uuid.UUID) (int, error) {
	args := m.Called(ctx, ownerID)
	return args.Int(0), args.Error(1)
}

func (m *MockReviewService) RetireSource(ctx context.Context, ownerID uuid.UUID, sourceRef string) (int, error) {
	args := m.Called(ctx, ownerID, sourceRef)
	return args.Int(0), args.Error(1)
}
