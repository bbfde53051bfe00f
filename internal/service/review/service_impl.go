package review

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/content"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/domain/srs"
	"github.com/phrazzld/scry-vocab/internal/platform/clock"
	"github.com/phrazzld/scry-vocab/internal/platform/logger"
	"github.com/phrazzld/scry-vocab/internal/redact"
	"github.com/phrazzld/scry-vocab/internal/store"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

// Verify interface compliance at compile time
var _ Service = (*serviceImpl)(nil)

type serviceImpl struct {
	store  store.ReviewItemStore
	engine srs.Service
	clock  clock.Clock
	config Config
	logger *slog.Logger

	// ingests collapses identical concurrent ingestion calls per owner.
	ingests singleflight.Group
}

// NewService creates the review service.
func NewService(
	reviewStore store.ReviewItemStore,
	engine srs.Service,
	clk clock.Clock,
	config Config,
	logger *slog.Logger,
) Service {
	if reviewStore == nil {
		panic("reviewStore cannot be nil")
	}
	if engine == nil {
		panic("engine cannot be nil")
	}
	if clk == nil {
		clk = clock.System()
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultBatchSize
	}
	if config.DefaultDueLimit < 0 {
		config.DefaultDueLimit = 0
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &serviceImpl{
		store:  reviewStore,
		engine: engine,
		clock:  clk,
		config: config,
		logger: logger.With(slog.String("component", "review_service")),
	}
}

// IngestFromContent implements Service.IngestFromContent
func (s *serviceImpl) IngestFromContent(
	ctx context.Context,
	ownerID uuid.UUID,
	items []content.Item,
) (int, error) {
	if ownerID == uuid.Nil {
		return 0, domain.ErrOwnerIDEmpty
	}
	if len(items) == 0 {
		return 0, nil
	}

	key, err := ingestKey(ownerID, items)
	if err != nil {
		return 0, NewServiceError("ingest", "failed to fingerprint content", err)
	}

	v, err, shared := s.ingests.Do(key, func() (any, error) {
		return s.ingest(ctx, ownerID, items)
	})
	if shared {
		logger.FromContextOrDefault(ctx, s.logger).Debug("ingestion collapsed with a concurrent identical call",
			slog.String("owner_id", ownerID.String()))
	}
	if err != nil {
		return 0, err
	}
	return v.(int), nil
}

func (s *serviceImpl) ingest(ctx context.Context, ownerID uuid.UUID, items []content.Item) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(slog.String("owner_id", ownerID.String()))

	refs, err := s.store.ListSourceRefs(ctx, ownerID)
	if err != nil {
		return 0, s.storeFailure(log, "ingest", err)
	}
	known := make(map[string]struct{}, len(refs))
	for _, ref := range refs {
		known[ref] = struct{}{}
	}

	now := s.clock.Now()
	firstReviewAt := s.engine.FirstReviewAt(now)

	pending := make([]*domain.ReviewItem, 0, len(items))
	skipped := 0
	for i := range items {
		ci := items[i]
		if err := ci.Validate(); err != nil {
			log.Warn("skipping invalid content item",
				slog.Int("index", i),
				slog.String("error", err.Error()))
			skipped++
			continue
		}
		if _, ok := known[ci.SourceRef]; ok && ci.SourceRef != "" {
			skipped++
			continue
		}

		item, err := domain.NewReviewItem(
			ownerID,
			ci.SourceRefPtr(),
			ci.Vocabulary(),
			ci.Context(),
			ci.MediaRefPtr(),
			now,
			firstReviewAt,
		)
		if err != nil {
			log.Warn("skipping content item that failed domain validation",
				slog.Int("index", i),
				slog.String("error", err.Error()))
			skipped++
			continue
		}
		pending = append(pending, item)
	}

	created := 0
	failedBatches := 0
	for start, batchIndex := 0, 0; start < len(pending); start, batchIndex = start+s.config.BatchSize, batchIndex+1 {
		end := min(start+s.config.BatchSize, len(pending))
		batch := pending[start:end]

		n, err := s.store.InsertBatch(ctx, batch)
		if err != nil {
			failedBatches++
			log.Error("ingestion batch failed",
				slog.Int("batch_index", batchIndex),
				slog.Int("batch_size", len(batch)),
				slog.String("error", redact.Error(err)))
			s.scheduleRetry(ctx, log, ownerID, batchIndex, batch, err)
			continue
		}
		created += n
	}

	log.Info("content ingested",
		slog.Int("received", len(items)),
		slog.Int("created", created),
		slog.Int("skipped", skipped),
		slog.Int("failed_batches", failedBatches))
	return created, nil
}

func (s *serviceImpl) scheduleRetry(
	ctx context.Context,
	log *slog.Logger,
	ownerID uuid.UUID,
	batchIndex int,
	batch []*domain.ReviewItem,
	cause error,
) {
	if s.config.Retry == nil || !store.IsTransientError(cause) {
		return
	}
	if err := s.config.Retry.ScheduleIngestRetry(ctx, ownerID, batchIndex, batch); err != nil {
		log.Error("failed to schedule ingestion retry",
			slog.Int("batch_index", batchIndex),
			slog.String("error", redact.Error(err)))
		return
	}
	log.Info("ingestion batch scheduled for retry", slog.Int("batch_index", batchIndex))
}

// CreateAdHoc implements Service.CreateAdHoc
func (s *serviceImpl) CreateAdHoc(
	ctx context.Context,
	ownerID uuid.UUID,
	ci content.Item,
) (*domain.ReviewItem, bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := ci.Validate(); err != nil {
		log.Warn("invalid ad hoc item", slog.String("error", err.Error()))
		return nil, false, err
	}

	now := s.clock.Now()
	item, err := domain.NewReviewItem(
		ownerID,
		ci.SourceRefPtr(),
		ci.Vocabulary(),
		ci.Context(),
		ci.MediaRefPtr(),
		now,
		s.engine.FirstReviewAt(now),
	)
	if err != nil {
		log.Warn("invalid ad hoc item", slog.String("error", err.Error()))
		return nil, false, err
	}

	stored, created, err := s.store.InsertOrGet(ctx, item)
	if err != nil {
		if errors.Is(err, store.ErrInvalidEntity) {
			return nil, false, fmt.Errorf("%w: %w", domain.ErrValidation, err)
		}
		return nil, false, s.storeFailure(log, "create_ad_hoc", err)
	}

	log.Debug("ad hoc item stored",
		slog.String("item_id", stored.ID.String()),
		slog.Bool("created", created))
	return stored, created, nil
}

// DueItems implements Service.DueItems
func (s *serviceImpl) DueItems(ctx context.Context, ownerID uuid.UUID, limit int) ([]*domain.ReviewItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if limit <= 0 {
		limit = s.config.DefaultDueLimit
	}

	items, err := s.store.ListDue(ctx, ownerID, s.clock.Now(), limit)
	if err != nil {
		return []*domain.ReviewItem{}, s.storeFailure(log, "due_items", err)
	}
	return items, nil
}

// DueCount implements Service.DueCount
func (s *serviceImpl) DueCount(ctx context.Context, ownerID uuid.UUID) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	count, err := s.store.CountDue(ctx, ownerID, s.clock.Now())
	if err != nil {
		return 0, s.storeFailure(log, "due_count", err)
	}
	return count, nil
}

// Grade implements Service.Grade
func (s *serviceImpl) Grade(
	ctx context.Context,
	ownerID, itemID uuid.UUID,
	grade domain.Grade,
) (*domain.ReviewItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("item_id", itemID.String()),
		slog.String("grade", string(grade)))

	if !grade.Valid() {
		log.Warn("invalid grade")
		return nil, ErrInvalidGrade
	}

	return s.transition(ctx, log, "grade", ownerID, itemID, func(current *domain.ReviewItem) (*domain.ReviewItem, error) {
		return s.engine.Grade(current, grade, s.clock.Now())
	})
}

// Postpone implements Service.Postpone
func (s *serviceImpl) Postpone(
	ctx context.Context,
	ownerID, itemID uuid.UUID,
	days int,
) (*domain.ReviewItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger).With(
		slog.String("item_id", itemID.String()),
		slog.Int("days", days))

	if days < 1 {
		return nil, ErrInvalidDays
	}

	return s.transition(ctx, log, "postpone", ownerID, itemID, func(current *domain.ReviewItem) (*domain.ReviewItem, error) {
		return s.engine.Postpone(current, days, s.clock.Now())
	})
}

// transition reads the item, computes its next state and writes it back only
// if nobody else has written in between.
func (s *serviceImpl) transition(
	ctx context.Context,
	log *slog.Logger,
	operation string,
	ownerID, itemID uuid.UUID,
	next func(current *domain.ReviewItem) (*domain.ReviewItem, error),
) (*domain.ReviewItem, error) {
	current, err := s.store.Get(ctx, ownerID, itemID)
	if err != nil {
		if store.IsNotFoundError(err) {
			log.Debug("review item not found")
			return nil, ErrItemNotFound
		}
		return nil, s.storeFailure(log, operation, err)
	}

	updated, err := next(current)
	if err != nil {
		return nil, NewServiceError(operation, "failed to compute next schedule", err)
	}

	if err := s.store.UpdateSchedule(ctx, updated, current.Version); err != nil {
		switch {
		case errors.Is(err, store.ErrVersionConflict):
			log.Warn("concurrent modification detected", slog.Int("expected_version", current.Version))
			return nil, ErrConcurrencyConflict
		case store.IsNotFoundError(err):
			return nil, ErrItemNotFound
		}
		return nil, s.storeFailure(log, operation, err)
	}

	log.Debug("review item transitioned",
		slog.String("operation", operation),
		slog.Int("interval_days", updated.Schedule.IntervalDays),
		slog.Float64("ease_factor", updated.Schedule.EaseFactor),
		slog.Int("repetitions", updated.Schedule.Repetitions),
		slog.String("difficulty", string(updated.Schedule.Difficulty)),
		slog.Time("next_review_at", updated.NextReviewAt))
	return updated, nil
}

// Stats implements Service.Stats
func (s *serviceImpl) Stats(ctx context.Context, ownerID uuid.UUID) (Stats, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var (
		counts map[domain.Difficulty]int
		due    int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.store.CountByDifficulty(gctx, ownerID)
		return err
	})
	g.Go(func() error {
		var err error
		due, err = s.store.CountDue(gctx, ownerID, s.clock.Now())
		return err
	})
	if err := g.Wait(); err != nil {
		return Stats{}, s.storeFailure(log, "stats", err)
	}

	stats := Stats{
		Due:      due,
		New:      counts[domain.DifficultyNew],
		Learning: counts[domain.DifficultyLearning],
		Mastered: counts[domain.DifficultyMastered],
	}
	for _, n := range counts {
		stats.Total += n
	}
	return stats, nil
}

// ListItems implements Service.ListItems
func (s *serviceImpl) ListItems(ctx context.Context, ownerID uuid.UUID) ([]*domain.ReviewItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	items, err := s.store.List(ctx, ownerID)
	if err != nil {
		return []*domain.ReviewItem{}, s.storeFailure(log, "list_items", err)
	}
	return items, nil
}

// ResetForReview implements Service.ResetForReview
func (s *serviceImpl) ResetForReview(ctx context.Context, ownerID uuid.UUID) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	n, err := s.store.ResetDue(ctx, ownerID, s.clock.Now())
	if err != nil {
		return 0, s.storeFailure(log, "reset_for_review", err)
	}
	log.Info("review items reset", slog.String("owner_id", ownerID.String()), slog.Int("count", n))
	return n, nil
}

// RetireSource implements Service.RetireSource
func (s *serviceImpl) RetireSource(ctx context.Context, ownerID uuid.UUID, sourceRef string) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	sourceRef = strings.TrimSpace(sourceRef)
	if sourceRef == "" {
		return 0, ErrEmptySourceRef
	}

	n, err := s.store.MarkDeletedBySource(ctx, ownerID, sourceRef, s.clock.Now())
	if err != nil {
		return 0, s.storeFailure(log, "retire_source", err)
	}
	return n, nil
}

// storeFailure logs a store error and wraps it for the caller, tagging
// transient failures with ErrStoreUnavailable.
func (s *serviceImpl) storeFailure(log *slog.Logger, operation string, err error) error {
	log.Error("review store operation failed",
		slog.String("operation", operation),
		slog.String("error", redact.Error(err)))
	if store.IsTransientError(err) {
		return NewServiceError(operation, "store unavailable", fmt.Errorf("%w: %w", ErrStoreUnavailable, err))
	}
	return NewServiceError(operation, "store operation failed", err)
}

// ingestKey identifies an ingestion call by owner and content.
func ingestKey(ownerID uuid.UUID, items []content.Item) (string, error) {
	raw, err := json.Marshal(items)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256(raw)
	return ownerID.String() + ":" + hex.EncodeToString(sum[:]), nil
}
