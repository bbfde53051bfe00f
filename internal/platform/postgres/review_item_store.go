package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/platform/logger"
	"github.com/phrazzld/scry-vocab/internal/redact"
	"github.com/phrazzld/scry-vocab/internal/store"
)

const reviewItemEntity = "review_item"

const reviewItemColumns = `
	id, owner_id, source_ref, base_term, target_term, phonetic,
	context_sentence, context_phonetic, example_phrases, media_ref,
	interval_days, ease_factor, repetitions, difficulty,
	created_at, last_reviewed_at, next_review_at, deleted, version, updated_at`

const insertReviewItemQuery = `
	INSERT INTO review_items (
		id, owner_id, source_ref, base_term, target_term, phonetic,
		context_sentence, context_phonetic, example_phrases, media_ref,
		interval_days, ease_factor, repetitions, difficulty,
		created_at, last_reviewed_at, next_review_at, version, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19)
	ON CONFLICT DO NOTHING`

// PostgresReviewItemStore implements the store.ReviewItemStore interface
// using a PostgreSQL database as the storage backend.
type PostgresReviewItemStore struct {
	db     store.DBTX
	logger *slog.Logger
}

// NewPostgresReviewItemStore creates a new PostgreSQL implementation of the
// ReviewItemStore interface. db may be a pool or a caller-managed transaction.
// If logger is nil, a default logger will be used.
func NewPostgresReviewItemStore(db store.DBTX, logger *slog.Logger) *PostgresReviewItemStore {
	if db == nil {
		panic("db cannot be nil")
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &PostgresReviewItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_item_store")),
	}
}

// Ensure PostgresReviewItemStore implements store.ReviewItemStore interface
var _ store.ReviewItemStore = (*PostgresReviewItemStore)(nil)

// Get implements store.ReviewItemStore.Get
func (s *PostgresReviewItemStore) Get(ctx context.Context, ownerID, id uuid.UUID) (*domain.ReviewItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + reviewItemColumns + `
		FROM review_items
		WHERE id = $1 AND owner_id = $2 AND NOT deleted`

	item, err := scanReviewItem(s.db.QueryRowContext(ctx, query, id, ownerID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			log.Debug("review item not found", slog.String("item_id", id.String()))
			return nil, store.ErrReviewItemNotFound
		}
		return nil, s.fail(log, "get", err, slog.String("item_id", id.String()))
	}
	return item, nil
}

// FindByKey implements store.ReviewItemStore.FindByKey
func (s *PostgresReviewItemStore) FindByKey(
	ctx context.Context,
	ownerID uuid.UUID,
	sourceRef *string,
	target string,
) (*domain.ReviewItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `SELECT ` + reviewItemColumns + `
		FROM review_items
		WHERE owner_id = $1 AND COALESCE(source_ref, '') = $2 AND target_term = $3 AND NOT deleted`

	item, err := scanReviewItem(s.db.QueryRowContext(ctx, query, ownerID, derefOrEmpty(sourceRef), target))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReviewItemNotFound
		}
		return nil, s.fail(log, "find_by_key", err, slog.String("owner_id", ownerID.String()))
	}
	return item, nil
}

// List implements store.ReviewItemStore.List
func (s *PostgresReviewItemStore) List(ctx context.Context, ownerID uuid.UUID) ([]*domain.ReviewItem, error) {
	query := `SELECT ` + reviewItemColumns + `
		FROM review_items
		WHERE owner_id = $1 AND NOT deleted
		ORDER BY created_at DESC, id DESC`

	return s.queryItems(ctx, "list", query, ownerID)
}

// ListDue implements store.ReviewItemStore.ListDue
func (s *PostgresReviewItemStore) ListDue(
	ctx context.Context,
	ownerID uuid.UUID,
	now time.Time,
	limit int,
) ([]*domain.ReviewItem, error) {
	query := `SELECT ` + reviewItemColumns + `
		FROM review_items
		WHERE owner_id = $1 AND NOT deleted AND next_review_at <= $2
		ORDER BY next_review_at ASC, created_at ASC, id ASC`

	args := []any{ownerID, now.UTC()}
	if limit > 0 {
		query += ` LIMIT $3`
		args = append(args, limit)
	}

	return s.queryItems(ctx, "list_due", query, args...)
}

// CountDue implements store.ReviewItemStore.CountDue
func (s *PostgresReviewItemStore) CountDue(ctx context.Context, ownerID uuid.UUID, now time.Time) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT COUNT(*)
		FROM review_items
		WHERE owner_id = $1 AND NOT deleted AND next_review_at <= $2`

	var count int
	if err := s.db.QueryRowContext(ctx, query, ownerID, now.UTC()).Scan(&count); err != nil {
		return 0, s.fail(log, "count_due", err, slog.String("owner_id", ownerID.String()))
	}
	return count, nil
}

// CountByDifficulty implements store.ReviewItemStore.CountByDifficulty
func (s *PostgresReviewItemStore) CountByDifficulty(
	ctx context.Context,
	ownerID uuid.UUID,
) (map[domain.Difficulty]int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT difficulty, COUNT(*)
		FROM review_items
		WHERE owner_id = $1 AND NOT deleted
		GROUP BY difficulty`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, s.fail(log, "count_by_difficulty", err, slog.String("owner_id", ownerID.String()))
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[domain.Difficulty]int)
	for rows.Next() {
		var difficulty string
		var count int
		if err := rows.Scan(&difficulty, &count); err != nil {
			return nil, s.fail(log, "count_by_difficulty", err)
		}
		counts[domain.Difficulty(difficulty)] = count
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(log, "count_by_difficulty", err)
	}
	return counts, nil
}

// ListSourceRefs implements store.ReviewItemStore.ListSourceRefs
func (s *PostgresReviewItemStore) ListSourceRefs(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		SELECT DISTINCT source_ref
		FROM review_items
		WHERE owner_id = $1 AND NOT deleted AND source_ref IS NOT NULL
		ORDER BY source_ref`

	rows, err := s.db.QueryContext(ctx, query, ownerID)
	if err != nil {
		return nil, s.fail(log, "list_source_refs", err, slog.String("owner_id", ownerID.String()))
	}
	defer func() { _ = rows.Close() }()

	refs := []string{}
	for rows.Next() {
		var ref string
		if err := rows.Scan(&ref); err != nil {
			return nil, s.fail(log, "list_source_refs", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(log, "list_source_refs", err)
	}
	return refs, nil
}

// InsertOrGet implements store.ReviewItemStore.InsertOrGet
func (s *PostgresReviewItemStore) InsertOrGet(
	ctx context.Context,
	item *domain.ReviewItem,
) (*domain.ReviewItem, bool, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := item.Validate(); err != nil {
		log.Warn("review item validation failed during insert",
			slog.String("error", redact.Error(err)),
			slog.String("item_id", item.ID.String()))
		return nil, false, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	args, err := insertArgs(item)
	if err != nil {
		return nil, false, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	result, err := s.db.ExecContext(ctx, insertReviewItemQuery, args...)
	if err != nil {
		return nil, false, s.fail(log, "insert", err, slog.String("item_id", item.ID.String()))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, s.fail(log, "insert", err)
	}
	if affected == 1 {
		log.Debug("review item created",
			slog.String("item_id", item.ID.String()),
			slog.String("owner_id", item.OwnerID.String()))
		return item.Clone(), true, nil
	}

	existing, err := s.FindByKey(ctx, item.OwnerID, item.SourceRef, item.Vocabulary.Target)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// The conflicting row vanished between the insert and the lookup.
			return nil, false, store.NewStoreError(reviewItemEntity, "insert", "conflicting item not found", store.ErrReviewItemExists)
		}
		return nil, false, err
	}
	log.Debug("review item already exists",
		slog.String("item_id", existing.ID.String()),
		slog.String("owner_id", item.OwnerID.String()))
	return existing, false, nil
}

// InsertBatch implements store.ReviewItemStore.InsertBatch
func (s *PostgresReviewItemStore) InsertBatch(ctx context.Context, items []*domain.ReviewItem) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if len(items) == 0 {
		return 0, nil
	}

	batchArgs := make([][]any, 0, len(items))
	for _, item := range items {
		if err := item.Validate(); err != nil {
			log.Warn("review item validation failed during batch insert",
				slog.String("error", redact.Error(err)),
				slog.String("item_id", item.ID.String()))
			return 0, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
		args, err := insertArgs(item)
		if err != nil {
			return 0, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
		}
		batchArgs = append(batchArgs, args)
	}

	created := 0
	err := s.withTx(ctx, func(ctx context.Context, db store.DBTX) error {
		stmt, err := db.PrepareContext(ctx, insertReviewItemQuery)
		if err != nil {
			return err
		}
		defer func() { _ = stmt.Close() }()

		for _, args := range batchArgs {
			result, err := stmt.ExecContext(ctx, args...)
			if err != nil {
				return err
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return err
			}
			created += int(affected)
		}
		return nil
	})
	if err != nil {
		return 0, s.fail(log, "insert_batch", err, slog.Int("batch_size", len(items)))
	}

	log.Debug("review item batch inserted",
		slog.Int("batch_size", len(items)),
		slog.Int("created", created))
	return created, nil
}

// UpdateSchedule implements store.ReviewItemStore.UpdateSchedule
func (s *PostgresReviewItemStore) UpdateSchedule(
	ctx context.Context,
	item *domain.ReviewItem,
	expectedVersion int,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := item.Schedule.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	query := `
		UPDATE review_items
		SET interval_days = $1, ease_factor = $2, repetitions = $3, difficulty = $4,
			last_reviewed_at = $5, next_review_at = $6, updated_at = $7, version = version + 1
		WHERE id = $8 AND owner_id = $9 AND version = $10 AND NOT deleted`

	result, err := s.db.ExecContext(ctx, query,
		item.Schedule.IntervalDays,
		item.Schedule.EaseFactor,
		item.Schedule.Repetitions,
		string(item.Schedule.Difficulty),
		utcPtr(item.LastReviewedAt),
		item.NextReviewAt.UTC(),
		item.UpdatedAt.UTC(),
		item.ID,
		item.OwnerID,
		expectedVersion,
	)
	if err != nil {
		return s.fail(log, "update_schedule", err, slog.String("item_id", item.ID.String()))
	}

	if err := CheckRowsAffected(result, "review item"); err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			return s.fail(log, "update_schedule", err)
		}
		return s.classifyMissedUpdate(ctx, item, expectedVersion)
	}

	item.Version = expectedVersion + 1
	log.Debug("review item schedule updated",
		slog.String("item_id", item.ID.String()),
		slog.Int("version", item.Version))
	return nil
}

// classifyMissedUpdate distinguishes a vanished item from a stale version
// after a conditional update touched no rows.
func (s *PostgresReviewItemStore) classifyMissedUpdate(
	ctx context.Context,
	item *domain.ReviewItem,
	expectedVersion int,
) error {
	log := logger.FromContextOrDefault(ctx, s.logger)

	var current int
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM review_items WHERE id = $1 AND owner_id = $2 AND NOT deleted`,
		item.ID, item.OwnerID,
	).Scan(&current)
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrReviewItemNotFound
	}
	if err != nil {
		return s.fail(log, "update_schedule", err)
	}

	log.Warn("review item version conflict",
		slog.String("item_id", item.ID.String()),
		slog.Int("expected_version", expectedVersion),
		slog.Int("current_version", current))
	return fmt.Errorf("%w: expected version %d, found %d", store.ErrVersionConflict, expectedVersion, current)
}

// ResetDue implements store.ReviewItemStore.ResetDue
func (s *PostgresReviewItemStore) ResetDue(ctx context.Context, ownerID uuid.UUID, now time.Time) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE review_items
		SET next_review_at = $2, updated_at = $2, version = version + 1
		WHERE owner_id = $1 AND NOT deleted AND (source_ref IS NOT NULL OR media_ref IS NOT NULL)`

	result, err := s.db.ExecContext(ctx, query, ownerID, now.UTC())
	if err != nil {
		return 0, s.fail(log, "reset_due", err, slog.String("owner_id", ownerID.String()))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, s.fail(log, "reset_due", err)
	}
	return int(affected), nil
}

// MarkDeletedBySource implements store.ReviewItemStore.MarkDeletedBySource
func (s *PostgresReviewItemStore) MarkDeletedBySource(
	ctx context.Context,
	ownerID uuid.UUID,
	sourceRef string,
	now time.Time,
) (int, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	query := `
		UPDATE review_items
		SET deleted = TRUE, deleted_at = $3, updated_at = $3, version = version + 1
		WHERE owner_id = $1 AND source_ref = $2 AND NOT deleted`

	result, err := s.db.ExecContext(ctx, query, ownerID, sourceRef, now.UTC())
	if err != nil {
		return 0, s.fail(log, "mark_deleted_by_source", err, slog.String("owner_id", ownerID.String()))
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, s.fail(log, "mark_deleted_by_source", err)
	}
	log.Info("review items tombstoned",
		slog.String("owner_id", ownerID.String()),
		slog.String("source_ref", sourceRef),
		slog.Int64("count", affected))
	return int(affected), nil
}

func (s *PostgresReviewItemStore) queryItems(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]*domain.ReviewItem, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.fail(log, operation, err)
	}
	defer func() { _ = rows.Close() }()

	items := []*domain.ReviewItem{}
	for rows.Next() {
		item, err := scanReviewItem(rows)
		if err != nil {
			return nil, s.fail(log, operation, err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, s.fail(log, operation, err)
	}
	return items, nil
}

// withTx runs fn in a new transaction when the store holds a pool, or directly
// on the caller's transaction otherwise.
func (s *PostgresReviewItemStore) withTx(ctx context.Context, fn func(ctx context.Context, db store.DBTX) error) error {
	db, ok := s.db.(*sql.DB)
	if !ok {
		return fn(ctx, s.db)
	}
	return store.RunInTransaction(ctx, db, func(ctx context.Context, tx *sql.Tx) error {
		return fn(ctx, tx)
	})
}

func (s *PostgresReviewItemStore) fail(log *slog.Logger, operation string, err error, attrs ...any) error {
	mapped := MapError(err)
	log.Error("review item store operation failed",
		append([]any{slog.String("operation", operation), slog.String("error", redact.Error(err))}, attrs...)...)
	return store.NewStoreError(reviewItemEntity, operation, "database error", mapped)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReviewItem(row rowScanner) (*domain.ReviewItem, error) {
	var (
		item                                  domain.ReviewItem
		sourceRef, phonetic, sentence, sentPh sql.NullString
		mediaRef                              sql.NullString
		examples                              []byte
		difficulty                            string
		lastReviewedAt                        sql.NullTime
	)

	err := row.Scan(
		&item.ID,
		&item.OwnerID,
		&sourceRef,
		&item.Vocabulary.Base,
		&item.Vocabulary.Target,
		&phonetic,
		&sentence,
		&sentPh,
		&examples,
		&mediaRef,
		&item.Schedule.IntervalDays,
		&item.Schedule.EaseFactor,
		&item.Schedule.Repetitions,
		&difficulty,
		&item.CreatedAt,
		&lastReviewedAt,
		&item.NextReviewAt,
		&item.Deleted,
		&item.Version,
		&item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	item.SourceRef = nullStringPtr(sourceRef)
	item.MediaRef = nullStringPtr(mediaRef)
	item.Vocabulary.Phonetic = phonetic.String
	item.Context.Sentence = sentence.String
	item.Context.SentencePhonetic = sentPh.String
	item.Schedule.Difficulty = domain.Difficulty(difficulty)
	if lastReviewedAt.Valid {
		t := lastReviewedAt.Time
		item.LastReviewedAt = &t
	}
	if len(examples) > 0 {
		if err := json.Unmarshal(examples, &item.Context.Examples); err != nil {
			return nil, fmt.Errorf("failed to decode example phrases: %w", err)
		}
	}

	return &item, nil
}

func insertArgs(item *domain.ReviewItem) ([]any, error) {
	var examples any
	if len(item.Context.Examples) > 0 {
		raw, err := json.Marshal(item.Context.Examples)
		if err != nil {
			return nil, fmt.Errorf("failed to encode example phrases: %w", err)
		}
		examples = string(raw)
	}

	return []any{
		item.ID,
		item.OwnerID,
		item.SourceRef,
		item.Vocabulary.Base,
		item.Vocabulary.Target,
		emptyToNil(item.Vocabulary.Phonetic),
		emptyToNil(item.Context.Sentence),
		emptyToNil(item.Context.SentencePhonetic),
		examples,
		item.MediaRef,
		item.Schedule.IntervalDays,
		item.Schedule.EaseFactor,
		item.Schedule.Repetitions,
		string(item.Schedule.Difficulty),
		item.CreatedAt.UTC(),
		utcPtr(item.LastReviewedAt),
		item.NextReviewAt.UTC(),
		item.Version,
		item.UpdatedAt.UTC(),
	}, nil
}

func nullStringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}

func emptyToNil(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func derefOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func utcPtr(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}
