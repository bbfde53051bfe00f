package task

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/redact"
	"github.com/phrazzld/scry-vocab/internal/store"
)

// Common errors
var (
	ErrNilInserter = errors.New("batch inserter cannot be nil")
	ErrEmptyBatch  = errors.New("retry batch cannot be empty")
	ErrEmptyOwner  = errors.New("owner ID cannot be empty")
)

// BatchInserter is the store capability the retry task needs.
type BatchInserter interface {
	InsertBatch(ctx context.Context, items []*domain.ReviewItem) (int, error)
}

// RetryPolicy bounds how often a failed batch is re-attempted.
// Attempt n waits n-1 times Backoff before running.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// DefaultRetryPolicy returns three attempts five seconds apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: 5 * time.Second}
}

// ingestRetryPayload is the loggable description of the task.
type ingestRetryPayload struct {
	OwnerID     uuid.UUID   `json:"owner_id"`
	BatchIndex  int         `json:"batch_index"`
	ItemIDs     []uuid.UUID `json:"item_ids"`
	MaxAttempts int         `json:"max_attempts"`
}

// IngestRetryTask re-inserts a batch of review items. Insertion ignores
// existing keys, so running it after a partial success creates no duplicates.
type IngestRetryTask struct {
	id         uuid.UUID
	ownerID    uuid.UUID
	batchIndex int
	items      []*domain.ReviewItem
	inserter   BatchInserter
	policy     RetryPolicy
	logger     *slog.Logger

	mu       sync.Mutex
	status   TaskStatus
	attempts int
	created  int
}

var _ Task = (*IngestRetryTask)(nil)

// NewIngestRetryTask creates a retry task for one failed ingestion batch.
func NewIngestRetryTask(
	ownerID uuid.UUID,
	batchIndex int,
	items []*domain.ReviewItem,
	inserter BatchInserter,
	policy RetryPolicy,
	logger *slog.Logger,
) (*IngestRetryTask, error) {
	if inserter == nil {
		return nil, ErrNilInserter
	}
	if ownerID == uuid.Nil {
		return nil, ErrEmptyOwner
	}
	if len(items) == 0 {
		return nil, ErrEmptyBatch
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	if logger == nil {
		logger = slog.Default()
	}

	id := uuid.New()
	return &IngestRetryTask{
		id:         id,
		ownerID:    ownerID,
		batchIndex: batchIndex,
		items:      items,
		inserter:   inserter,
		policy:     policy,
		logger: logger.With(
			slog.String("task_type", TaskTypeIngestRetry),
			slog.String("task_id", id.String()),
			slog.String("owner_id", ownerID.String()),
			slog.Int("batch_index", batchIndex),
		),
		status: TaskStatusPending,
	}, nil
}

// ID returns the task's unique identifier
func (t *IngestRetryTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *IngestRetryTask) Type() string {
	return TaskTypeIngestRetry
}

// Payload returns the owner, batch position and item IDs as JSON.
func (t *IngestRetryTask) Payload() []byte {
	ids := make([]uuid.UUID, 0, len(t.items))
	for _, item := range t.items {
		ids = append(ids, item.ID)
	}
	data, err := json.Marshal(ingestRetryPayload{
		OwnerID:     t.ownerID,
		BatchIndex:  t.batchIndex,
		ItemIDs:     ids,
		MaxAttempts: t.policy.MaxAttempts,
	})
	if err != nil {
		t.logger.Error("failed to marshal task payload", slog.String("error", err.Error()))
		return []byte{}
	}
	return data
}

// Status returns the current task status
func (t *IngestRetryTask) Status() TaskStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Attempts returns how many insert attempts have run.
func (t *IngestRetryTask) Attempts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts
}

// Created returns how many items the successful attempt created.
func (t *IngestRetryTask) Created() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.created
}

// Execute retries the insert until it succeeds, fails permanently, the
// attempts run out, or ctx is cancelled. Only transient store errors are retried.
func (t *IngestRetryTask) Execute(ctx context.Context) error {
	t.setStatus(TaskStatusProcessing)

	var lastErr error
	for attempt := 1; attempt <= t.policy.MaxAttempts; attempt++ {
		if attempt > 1 {
			if err := sleep(ctx, time.Duration(attempt-1)*t.policy.Backoff); err != nil {
				t.setStatus(TaskStatusFailed)
				return fmt.Errorf("ingest retry cancelled after %d attempts: %w", attempt-1, err)
			}
		}

		t.mu.Lock()
		t.attempts = attempt
		t.mu.Unlock()

		created, err := t.inserter.InsertBatch(ctx, t.items)
		if err == nil {
			t.mu.Lock()
			t.created = created
			t.status = TaskStatusCompleted
			t.mu.Unlock()
			t.logger.Info("ingest retry succeeded",
				slog.Int("attempt", attempt),
				slog.Int("batch_size", len(t.items)),
				slog.Int("created", created))
			return nil
		}

		lastErr = err
		if !store.IsTransientError(err) {
			t.logger.Error("ingest retry failed permanently",
				slog.Int("attempt", attempt),
				slog.String("error", redact.Error(err)))
			break
		}
		t.logger.Warn("ingest retry attempt failed",
			slog.Int("attempt", attempt),
			slog.Int("max_attempts", t.policy.MaxAttempts),
			slog.String("error", redact.Error(err)))
	}

	t.setStatus(TaskStatusFailed)
	return fmt.Errorf("ingest retry for batch %d failed: %w", t.batchIndex, lastErr)
}

func (t *IngestRetryTask) setStatus(status TaskStatus) {
	t.mu.Lock()
	t.status = status
	t.mu.Unlock()
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// IngestRetryScheduler turns failed ingestion batches into queued retry tasks.
type IngestRetryScheduler struct {
	queue    TaskQueueWriter
	inserter BatchInserter
	policy   RetryPolicy
	logger   *slog.Logger
}

// NewIngestRetryScheduler creates a scheduler that enqueues onto queue.
func NewIngestRetryScheduler(
	queue TaskQueueWriter,
	inserter BatchInserter,
	policy RetryPolicy,
	logger *slog.Logger,
) *IngestRetryScheduler {
	if queue == nil {
		panic("queue cannot be nil")
	}
	if inserter == nil {
		panic("inserter cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestRetryScheduler{
		queue:    queue,
		inserter: inserter,
		policy:   policy,
		logger:   logger,
	}
}

// ScheduleIngestRetry enqueues a retry for one failed batch.
func (s *IngestRetryScheduler) ScheduleIngestRetry(
	ctx context.Context,
	ownerID uuid.UUID,
	batchIndex int,
	items []*domain.ReviewItem,
) error {
	retry, err := NewIngestRetryTask(ownerID, batchIndex, items, s.inserter, s.policy, s.logger)
	if err != nil {
		return fmt.Errorf("failed to create ingest retry task: %w", err)
	}
	if err := s.queue.Enqueue(retry); err != nil {
		return fmt.Errorf("failed to enqueue ingest retry task: %w", err)
	}
	return nil
}
