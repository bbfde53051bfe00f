package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/platform/logger"
	"github.com/phrazzld/scry-vocab/internal/redact"
	"github.com/phrazzld/scry-vocab/internal/store"
)

const reviewItemEntity = "review_item"

const selectReviewItems = `
	SELECT id, owner_id, source_ref, base_term, target_term, phonetic,
		context_sentence, context_phonetic, example_phrases, media_ref,
		interval_days, ease_factor, repetitions, difficulty,
		created_at, last_reviewed_at, next_review_at, deleted, version, updated_at
	FROM review_items`

const insertReviewItem = `
	INSERT INTO review_items (
		id, owner_id, source_ref, base_term, target_term, phonetic,
		context_sentence, context_phonetic, example_phrases, media_ref,
		interval_days, ease_factor, repetitions, difficulty,
		created_at, last_reviewed_at, next_review_at, deleted, version, updated_at
	) VALUES (
		:id, :owner_id, :source_ref, :base_term, :target_term, :phonetic,
		:context_sentence, :context_phonetic, :example_phrases, :media_ref,
		:interval_days, :ease_factor, :repetitions, :difficulty,
		:created_at, :last_reviewed_at, :next_review_at, :deleted, :version, :updated_at
	)
	ON CONFLICT DO NOTHING`

// reviewItemRow is the column mapping of review_items.
type reviewItemRow struct {
	ID              uuid.UUID      `db:"id"`
	OwnerID         uuid.UUID      `db:"owner_id"`
	SourceRef       sql.NullString `db:"source_ref"`
	Base            string         `db:"base_term"`
	Target          string         `db:"target_term"`
	Phonetic        sql.NullString `db:"phonetic"`
	ContextSentence sql.NullString `db:"context_sentence"`
	ContextPhonetic sql.NullString `db:"context_phonetic"`
	ExamplePhrases  sql.NullString `db:"example_phrases"`
	MediaRef        sql.NullString `db:"media_ref"`
	IntervalDays    int            `db:"interval_days"`
	EaseFactor      float64        `db:"ease_factor"`
	Repetitions     int            `db:"repetitions"`
	Difficulty      string         `db:"difficulty"`
	CreatedAt       time.Time      `db:"created_at"`
	LastReviewedAt  sql.NullTime   `db:"last_reviewed_at"`
	NextReviewAt    time.Time      `db:"next_review_at"`
	Deleted         bool           `db:"deleted"`
	Version         int            `db:"version"`
	UpdatedAt       time.Time      `db:"updated_at"`
}

// SQLiteReviewItemStore implements store.ReviewItemStore on an embedded
// SQLite database.
type SQLiteReviewItemStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewSQLiteReviewItemStore creates a store over db, which must already be
// migrated. If logger is nil, a default logger will be used.
func NewSQLiteReviewItemStore(db *sqlx.DB, logger *slog.Logger) *SQLiteReviewItemStore {
	if db == nil {
		panic("db cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &SQLiteReviewItemStore{
		db:     db,
		logger: logger.With(slog.String("component", "review_item_store")),
	}
}

var _ store.ReviewItemStore = (*SQLiteReviewItemStore)(nil)

// Get implements store.ReviewItemStore.Get
func (s *SQLiteReviewItemStore) Get(ctx context.Context, ownerID, id uuid.UUID) (*domain.ReviewItem, error) {
	var row reviewItemRow
	err := s.db.GetContext(ctx, &row,
		selectReviewItems+` WHERE id = ? AND owner_id = ? AND deleted = 0`, id, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReviewItemNotFound
		}
		return nil, s.fail(ctx, "get", err)
	}
	return row.toDomain()
}

// FindByKey implements store.ReviewItemStore.FindByKey
func (s *SQLiteReviewItemStore) FindByKey(
	ctx context.Context,
	ownerID uuid.UUID,
	sourceRef *string,
	target string,
) (*domain.ReviewItem, error) {
	ref := ""
	if sourceRef != nil {
		ref = *sourceRef
	}

	var row reviewItemRow
	err := s.db.GetContext(ctx, &row,
		selectReviewItems+` WHERE owner_id = ? AND COALESCE(source_ref, '') = ? AND target_term = ? AND deleted = 0`,
		ownerID, ref, target)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrReviewItemNotFound
		}
		return nil, s.fail(ctx, "find_by_key", err)
	}
	return row.toDomain()
}

// List implements store.ReviewItemStore.List
func (s *SQLiteReviewItemStore) List(ctx context.Context, ownerID uuid.UUID) ([]*domain.ReviewItem, error) {
	return s.selectItems(ctx, "list",
		selectReviewItems+` WHERE owner_id = ? AND deleted = 0 ORDER BY created_at DESC, id DESC`,
		ownerID)
}

// ListDue implements store.ReviewItemStore.ListDue
func (s *SQLiteReviewItemStore) ListDue(
	ctx context.Context,
	ownerID uuid.UUID,
	now time.Time,
	limit int,
) ([]*domain.ReviewItem, error) {
	query := selectReviewItems + `
		WHERE owner_id = ? AND deleted = 0 AND next_review_at <= ?
		ORDER BY next_review_at ASC, created_at ASC, id ASC`
	args := []any{ownerID, now.UTC()}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.selectItems(ctx, "list_due", query, args...)
}

// CountDue implements store.ReviewItemStore.CountDue
func (s *SQLiteReviewItemStore) CountDue(ctx context.Context, ownerID uuid.UUID, now time.Time) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		`SELECT COUNT(*) FROM review_items WHERE owner_id = ? AND deleted = 0 AND next_review_at <= ?`,
		ownerID, now.UTC())
	if err != nil {
		return 0, s.fail(ctx, "count_due", err)
	}
	return count, nil
}

// CountByDifficulty implements store.ReviewItemStore.CountByDifficulty
func (s *SQLiteReviewItemStore) CountByDifficulty(
	ctx context.Context,
	ownerID uuid.UUID,
) (map[domain.Difficulty]int, error) {
	var rows []struct {
		Difficulty string `db:"difficulty"`
		Count      int    `db:"count"`
	}
	err := s.db.SelectContext(ctx, &rows,
		`SELECT difficulty, COUNT(*) AS count FROM review_items
		WHERE owner_id = ? AND deleted = 0 GROUP BY difficulty`,
		ownerID)
	if err != nil {
		return nil, s.fail(ctx, "count_by_difficulty", err)
	}

	counts := make(map[domain.Difficulty]int, len(rows))
	for _, r := range rows {
		counts[domain.Difficulty(r.Difficulty)] = r.Count
	}
	return counts, nil
}

// ListSourceRefs implements store.ReviewItemStore.ListSourceRefs
func (s *SQLiteReviewItemStore) ListSourceRefs(ctx context.Context, ownerID uuid.UUID) ([]string, error) {
	refs := []string{}
	err := s.db.SelectContext(ctx, &refs,
		`SELECT DISTINCT source_ref FROM review_items
		WHERE owner_id = ? AND deleted = 0 AND source_ref IS NOT NULL
		ORDER BY source_ref`,
		ownerID)
	if err != nil {
		return nil, s.fail(ctx, "list_source_refs", err)
	}
	return refs, nil
}

// InsertOrGet implements store.ReviewItemStore.InsertOrGet
func (s *SQLiteReviewItemStore) InsertOrGet(
	ctx context.Context,
	item *domain.ReviewItem,
) (*domain.ReviewItem, bool, error) {
	row, err := s.validRow(ctx, item)
	if err != nil {
		return nil, false, err
	}

	result, err := s.db.NamedExecContext(ctx, insertReviewItem, row)
	if err != nil {
		return nil, false, s.fail(ctx, "insert", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return nil, false, s.fail(ctx, "insert", err)
	}
	if affected == 1 {
		return item.Clone(), true, nil
	}

	existing, err := s.FindByKey(ctx, item.OwnerID, item.SourceRef, item.Vocabulary.Target)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, store.NewStoreError(reviewItemEntity, "insert", "conflicting item not found", store.ErrReviewItemExists)
		}
		return nil, false, err
	}
	return existing, false, nil
}

// InsertBatch implements store.ReviewItemStore.InsertBatch
func (s *SQLiteReviewItemStore) InsertBatch(ctx context.Context, items []*domain.ReviewItem) (int, error) {
	if len(items) == 0 {
		return 0, nil
	}

	rows := make([]*reviewItemRow, 0, len(items))
	for _, item := range items {
		row, err := s.validRow(ctx, item)
		if err != nil {
			return 0, err
		}
		rows = append(rows, row)
	}

	created, err := s.insertRows(ctx, rows)
	if err != nil {
		return 0, s.fail(ctx, "insert_batch", err)
	}
	return created, nil
}

// insertRows writes every row through one prepared named statement inside a
// single transaction. Conflicting rows are skipped and not counted.
func (s *SQLiteReviewItemStore) insertRows(ctx context.Context, rows []*reviewItemRow) (int, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx, insertReviewItem)
	if err != nil {
		return 0, err
	}
	defer func() { _ = stmt.Close() }()

	created := 0
	for _, row := range rows {
		result, err := stmt.ExecContext(ctx, row)
		if err != nil {
			return 0, err
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return 0, err
		}
		created += int(affected)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return created, nil
}

// UpdateSchedule implements store.ReviewItemStore.UpdateSchedule
func (s *SQLiteReviewItemStore) UpdateSchedule(
	ctx context.Context,
	item *domain.ReviewItem,
	expectedVersion int,
) error {
	if err := item.Schedule.Validate(); err != nil {
		return fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}

	var lastReviewedAt any
	if item.LastReviewedAt != nil {
		lastReviewedAt = item.LastReviewedAt.UTC()
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE review_items
		SET interval_days = ?, ease_factor = ?, repetitions = ?, difficulty = ?,
			last_reviewed_at = ?, next_review_at = ?, updated_at = ?, version = version + 1
		WHERE id = ? AND owner_id = ? AND version = ? AND deleted = 0`,
		item.Schedule.IntervalDays,
		item.Schedule.EaseFactor,
		item.Schedule.Repetitions,
		string(item.Schedule.Difficulty),
		lastReviewedAt,
		item.NextReviewAt.UTC(),
		item.UpdatedAt.UTC(),
		item.ID,
		item.OwnerID,
		expectedVersion,
	)
	if err != nil {
		return s.fail(ctx, "update_schedule", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return s.fail(ctx, "update_schedule", err)
	}

	if affected == 0 {
		var current int
		err := s.db.GetContext(ctx, &current,
			`SELECT version FROM review_items WHERE id = ? AND owner_id = ? AND deleted = 0`,
			item.ID, item.OwnerID)
		if errors.Is(err, sql.ErrNoRows) {
			return store.ErrReviewItemNotFound
		}
		if err != nil {
			return s.fail(ctx, "update_schedule", err)
		}
		return fmt.Errorf("%w: expected version %d, found %d", store.ErrVersionConflict, expectedVersion, current)
	}

	item.Version = expectedVersion + 1
	return nil
}

// ResetDue implements store.ReviewItemStore.ResetDue
func (s *SQLiteReviewItemStore) ResetDue(ctx context.Context, ownerID uuid.UUID, now time.Time) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE review_items
		SET next_review_at = ?, updated_at = ?, version = version + 1
		WHERE owner_id = ? AND deleted = 0 AND (source_ref IS NOT NULL OR media_ref IS NOT NULL)`,
		now.UTC(), now.UTC(), ownerID)
	if err != nil {
		return 0, s.fail(ctx, "reset_due", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, s.fail(ctx, "reset_due", err)
	}
	return int(affected), nil
}

// MarkDeletedBySource implements store.ReviewItemStore.MarkDeletedBySource
func (s *SQLiteReviewItemStore) MarkDeletedBySource(
	ctx context.Context,
	ownerID uuid.UUID,
	sourceRef string,
	now time.Time,
) (int, error) {
	result, err := s.db.ExecContext(ctx, `
		UPDATE review_items
		SET deleted = 1, deleted_at = ?, updated_at = ?, version = version + 1
		WHERE owner_id = ? AND source_ref = ? AND deleted = 0`,
		now.UTC(), now.UTC(), ownerID, sourceRef)
	if err != nil {
		return 0, s.fail(ctx, "mark_deleted_by_source", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, s.fail(ctx, "mark_deleted_by_source", err)
	}
	return int(affected), nil
}

func (s *SQLiteReviewItemStore) selectItems(
	ctx context.Context,
	operation string,
	query string,
	args ...any,
) ([]*domain.ReviewItem, error) {
	var rows []reviewItemRow
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, s.fail(ctx, operation, err)
	}

	items := make([]*domain.ReviewItem, 0, len(rows))
	for i := range rows {
		item, err := rows[i].toDomain()
		if err != nil {
			return nil, s.fail(ctx, operation, err)
		}
		items = append(items, item)
	}
	return items, nil
}

func (s *SQLiteReviewItemStore) validRow(ctx context.Context, item *domain.ReviewItem) (*reviewItemRow, error) {
	if err := item.Validate(); err != nil {
		logger.FromContextOrDefault(ctx, s.logger).Warn("review item validation failed during insert",
			slog.String("error", redact.Error(err)),
			slog.String("item_id", item.ID.String()))
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	row, err := fromDomain(item)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", store.ErrInvalidEntity, err)
	}
	return row, nil
}

func (s *SQLiteReviewItemStore) fail(ctx context.Context, operation string, err error) error {
	logger.FromContextOrDefault(ctx, s.logger).Error("review item store operation failed",
		slog.String("operation", operation),
		slog.String("error", redact.Error(err)))
	return store.NewStoreError(reviewItemEntity, operation, "database error", MapError(err))
}

func fromDomain(item *domain.ReviewItem) (*reviewItemRow, error) {
	row := &reviewItemRow{
		ID:              item.ID,
		OwnerID:         item.OwnerID,
		SourceRef:       nullString(item.SourceRef),
		Base:            item.Vocabulary.Base,
		Target:          item.Vocabulary.Target,
		Phonetic:        nullIfEmpty(item.Vocabulary.Phonetic),
		ContextSentence: nullIfEmpty(item.Context.Sentence),
		ContextPhonetic: nullIfEmpty(item.Context.SentencePhonetic),
		MediaRef:        nullString(item.MediaRef),
		IntervalDays:    item.Schedule.IntervalDays,
		EaseFactor:      item.Schedule.EaseFactor,
		Repetitions:     item.Schedule.Repetitions,
		Difficulty:      string(item.Schedule.Difficulty),
		CreatedAt:       item.CreatedAt.UTC(),
		NextReviewAt:    item.NextReviewAt.UTC(),
		Deleted:         item.Deleted,
		Version:         item.Version,
		UpdatedAt:       item.UpdatedAt.UTC(),
	}
	if item.LastReviewedAt != nil {
		row.LastReviewedAt = sql.NullTime{Time: item.LastReviewedAt.UTC(), Valid: true}
	}
	if len(item.Context.Examples) > 0 {
		raw, err := json.Marshal(item.Context.Examples)
		if err != nil {
			return nil, fmt.Errorf("failed to encode example phrases: %w", err)
		}
		row.ExamplePhrases = sql.NullString{String: string(raw), Valid: true}
	}
	return row, nil
}

func (r *reviewItemRow) toDomain() (*domain.ReviewItem, error) {
	item := &domain.ReviewItem{
		ID:        r.ID,
		OwnerID:   r.OwnerID,
		SourceRef: stringPtr(r.SourceRef),
		Vocabulary: domain.Vocabulary{
			Base:     r.Base,
			Target:   r.Target,
			Phonetic: r.Phonetic.String,
		},
		Context: domain.ItemContext{
			Sentence:         r.ContextSentence.String,
			SentencePhonetic: r.ContextPhonetic.String,
		},
		MediaRef: stringPtr(r.MediaRef),
		Schedule: domain.Schedule{
			IntervalDays: r.IntervalDays,
			EaseFactor:   r.EaseFactor,
			Repetitions:  r.Repetitions,
			Difficulty:   domain.Difficulty(r.Difficulty),
		},
		CreatedAt:    r.CreatedAt,
		NextReviewAt: r.NextReviewAt,
		Deleted:      r.Deleted,
		Version:      r.Version,
		UpdatedAt:    r.UpdatedAt,
	}
	if r.LastReviewedAt.Valid {
		t := r.LastReviewedAt.Time
		item.LastReviewedAt = &t
	}
	if r.ExamplePhrases.Valid && r.ExamplePhrases.String != "" {
		if err := json.Unmarshal([]byte(r.ExamplePhrases.String), &item.Context.Examples); err != nil {
			return nil, fmt.Errorf("failed to decode example phrases: %w", err)
		}
	}
	return item, nil
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func nullIfEmpty(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	v := ns.String
	return &v
}
