// Package storetest holds the behavioral test suite every store.ReviewItemStore
// implementation must pass.
package storetest

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/phrazzld/scry-vocab/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Factory returns an empty, migrated store for one test.
type Factory func(t *testing.T) store.ReviewItemStore

// baseTime is whole-second UTC so every backend round-trips it exactly.
var baseTime = time.Date(2026, time.March, 2, 9, 0, 0, 0, time.UTC)

// NewItem builds a valid item for owner due at due. sourceRef may be empty for
// an ad-hoc item.
func NewItem(t *testing.T, owner uuid.UUID, sourceRef, target string, due time.Time) *domain.ReviewItem {
	t.Helper()

	var ref *string
	if sourceRef != "" {
		ref = &sourceRef
	}
	item, err := domain.NewReviewItem(
		owner,
		ref,
		domain.Vocabulary{Base: "base " + target, Target: target},
		domain.ItemContext{},
		nil,
		baseTime,
		due,
	)
	require.NoError(t, err)
	return item
}

// RunReviewItemStoreContract runs the shared suite against stores built by newStore.
func RunReviewItemStoreContract(t *testing.T, newStore Factory) {
	t.Run("insert_or_get", func(t *testing.T) { testInsertOrGet(t, newStore(t)) })
	t.Run("round_trip", func(t *testing.T) { testRoundTrip(t, newStore(t)) })
	t.Run("owner_scoping", func(t *testing.T) { testOwnerScoping(t, newStore(t)) })
	t.Run("list_due", func(t *testing.T) { testListDue(t, newStore(t)) })
	t.Run("insert_batch", func(t *testing.T) { testInsertBatch(t, newStore(t)) })
	t.Run("update_schedule", func(t *testing.T) { testUpdateSchedule(t, newStore(t)) })
	t.Run("count_by_difficulty", func(t *testing.T) { testCountByDifficulty(t, newStore(t)) })
	t.Run("reset_due", func(t *testing.T) { testResetDue(t, newStore(t)) })
	t.Run("mark_deleted_by_source", func(t *testing.T) { testMarkDeletedBySource(t, newStore(t)) })
}

func testInsertOrGet(t *testing.T, s store.ReviewItemStore) {
	ctx := context.Background()
	owner := uuid.New()

	first := NewItem(t, owner, "post-1", "猫", baseTime)
	stored, created, err := s.InsertOrGet(ctx, first)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, first.ID, stored.ID)

	dup := NewItem(t, owner, "post-1", "猫", baseTime)
	stored, created, err = s.InsertOrGet(ctx, dup)
	require.NoError(t, err, "a key conflict is a normal result")
	assert.False(t, created)
	assert.Equal(t, first.ID, stored.ID, "the existing item is returned")

	// Same target from another source, and as an ad-hoc item, are distinct keys.
	_, created, err = s.InsertOrGet(ctx, NewItem(t, owner, "post-2", "猫", baseTime))
	require.NoError(t, err)
	assert.True(t, created)

	adHoc := NewItem(t, owner, "", "猫", baseTime)
	_, created, err = s.InsertOrGet(ctx, adHoc)
	require.NoError(t, err)
	assert.True(t, created)

	_, created, err = s.InsertOrGet(ctx, NewItem(t, owner, "", "猫", baseTime))
	require.NoError(t, err)
	assert.False(t, created, "ad-hoc items dedupe on target alone")

	found, err := s.FindByKey(ctx, owner, nil, "猫")
	require.NoError(t, err)
	assert.Equal(t, adHoc.ID, found.ID)

	invalid := NewItem(t, owner, "post-3", "狗", baseTime)
	invalid.Vocabulary.Target = " "
	_, _, err = s.InsertOrGet(ctx, invalid)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func testRoundTrip(t *testing.T, s store.ReviewItemStore) {
	ctx := context.Background()
	owner := uuid.New()

	media := "https://example.com/cat.jpg"
	item := NewItem(t, owner, "post-1", "猫", baseTime)
	item.Vocabulary.Phonetic = "māo"
	item.MediaRef = &media
	item.Context = domain.ItemContext{
		Sentence:         "我有一只猫",
		SentencePhonetic: "wǒ yǒu yī zhī māo",
		Examples: []domain.ExamplePhrase{
			{Base: "black cat", Target: "黑猫", Phonetic: "hēi māo"},
		},
	}
	_, _, err := s.InsertOrGet(ctx, item)
	require.NoError(t, err)

	got, err := s.Get(ctx, owner, item.ID)
	require.NoError(t, err)
	assert.Equal(t, item.Vocabulary, got.Vocabulary)
	assert.Equal(t, item.Context, got.Context)
	require.NotNil(t, got.SourceRef)
	assert.Equal(t, "post-1", *got.SourceRef)
	require.NotNil(t, got.MediaRef)
	assert.Equal(t, media, *got.MediaRef)
	assert.Equal(t, item.Schedule, got.Schedule)
	assert.True(t, item.NextReviewAt.Equal(got.NextReviewAt))
	assert.True(t, item.CreatedAt.Equal(got.CreatedAt))
	assert.Nil(t, got.LastReviewedAt)
	assert.Equal(t, 1, got.Version)

	plain := NewItem(t, owner, "", "狗", baseTime)
	_, _, err = s.InsertOrGet(ctx, plain)
	require.NoError(t, err)

	got, err = s.Get(ctx, owner, plain.ID)
	require.NoError(t, err)
	assert.Nil(t, got.SourceRef)
	assert.Nil(t, got.MediaRef)
	assert.Nil(t, got.Context.Examples)
}

func testOwnerScoping(t *testing.T, s store.ReviewItemStore) {
	ctx := context.Background()
	owner, other := uuid.New(), uuid.New()

	item := NewItem(t, owner, "post-1", "猫", baseTime)
	_, _, err := s.InsertOrGet(ctx, item)
	require.NoError(t, err)

	_, err = s.Get(ctx, other, item.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.Get(ctx, owner, uuid.New())
	assert.ErrorIs(t, err, store.ErrReviewItemNotFound)

	// Another owner may hold the same key.
	_, created, err := s.InsertOrGet(ctx, NewItem(t, other, "post-1", "猫", baseTime))
	require.NoError(t, err)
	assert.True(t, created)

	items, err := s.List(ctx, other)
	require.NoError(t, err)
	assert.Len(t, items, 1)

	count, err := s.CountDue(ctx, owner, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func testListDue(t *testing.T, s store.ReviewItemStore) {
	ctx := context.Background()
	owner := uuid.New()

	later := NewItem(t, owner, "post-1", "b", baseTime.Add(-1*time.Hour))
	earliest := NewItem(t, owner, "post-1", "a", baseTime.Add(-2*time.Hour))
	exact := NewItem(t, owner, "post-1", "c", baseTime)
	future := NewItem(t, owner, "post-1", "d", baseTime.Add(time.Hour))
	for _, item := range []*domain.ReviewItem{later, earliest, exact, future} {
		_, _, err := s.InsertOrGet(ctx, item)
		require.NoError(t, err)
	}

	due, err := s.ListDue(ctx, owner, baseTime, 0)
	require.NoError(t, err)
	require.Len(t, due, 3, "items due exactly now are included")
	assert.Equal(t, earliest.ID, due[0].ID)
	assert.Equal(t, later.ID, due[1].ID)
	assert.Equal(t, exact.ID, due[2].ID)

	limited, err := s.ListDue(ctx, owner, baseTime, 2)
	require.NoError(t, err)
	require.Len(t, limited, 2)
	assert.Equal(t, earliest.ID, limited[0].ID)

	count, err := s.CountDue(ctx, owner, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 3, count)

	none, err := s.ListDue(ctx, uuid.New(), baseTime, 0)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testInsertBatch(t *testing.T, s store.ReviewItemStore) {
	ctx := context.Background()
	owner := uuid.New()

	created, err := s.InsertBatch(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, created)

	batch := []*domain.ReviewItem{
		NewItem(t, owner, "post-1", "一", baseTime),
		NewItem(t, owner, "post-1", "二", baseTime),
		NewItem(t, owner, "post-2", "三", baseTime),
	}
	created, err = s.InsertBatch(ctx, batch)
	require.NoError(t, err)
	assert.Equal(t, 3, created)

	again := []*domain.ReviewItem{
		NewItem(t, owner, "post-1", "一", baseTime),
		NewItem(t, owner, "post-3", "四", baseTime),
	}
	created, err = s.InsertBatch(ctx, again)
	require.NoError(t, err)
	assert.Equal(t, 1, created, "existing keys are skipped")

	twice := []*domain.ReviewItem{
		NewItem(t, owner, "post-5", "七", baseTime),
		NewItem(t, owner, "post-5", "七", baseTime),
	}
	created, err = s.InsertBatch(ctx, twice)
	require.NoError(t, err)
	assert.Equal(t, 1, created, "duplicates within one batch are written once")

	refs, err := s.ListSourceRefs(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"post-1", "post-2", "post-3", "post-5"}, refs)

	bad := NewItem(t, owner, "post-4", "五", baseTime)
	bad.Schedule.EaseFactor = 1.0
	_, err = s.InsertBatch(ctx, []*domain.ReviewItem{NewItem(t, owner, "post-4", "六", baseTime), bad})
	assert.ErrorIs(t, err, store.ErrInvalidEntity)

	items, err := s.List(ctx, owner)
	require.NoError(t, err)
	assert.Len(t, items, 5, "a rejected batch writes nothing")
}

func testUpdateSchedule(t *testing.T, s store.ReviewItemStore) {
	ctx := context.Background()
	owner := uuid.New()

	item := NewItem(t, owner, "post-1", "猫", baseTime)
	_, _, err := s.InsertOrGet(ctx, item)
	require.NoError(t, err)

	reviewedAt := baseTime.Add(time.Minute)
	next := item.Clone()
	next.Schedule = domain.Schedule{
		IntervalDays: 3,
		EaseFactor:   2.5,
		Repetitions:  2,
		Difficulty:   domain.DifficultyLearning,
	}
	next.LastReviewedAt = &reviewedAt
	next.NextReviewAt = baseTime.AddDate(0, 0, 3)
	next.UpdatedAt = reviewedAt

	require.NoError(t, s.UpdateSchedule(ctx, next, 1))
	assert.Equal(t, 2, next.Version)

	got, err := s.Get(ctx, owner, item.ID)
	require.NoError(t, err)
	assert.Equal(t, next.Schedule, got.Schedule)
	assert.Equal(t, 2, got.Version)
	require.NotNil(t, got.LastReviewedAt)
	assert.True(t, reviewedAt.Equal(*got.LastReviewedAt))
	assert.True(t, next.NextReviewAt.Equal(got.NextReviewAt))

	stale := item.Clone()
	err = s.UpdateSchedule(ctx, stale, 1)
	assert.ErrorIs(t, err, store.ErrVersionConflict)

	missing := NewItem(t, owner, "post-1", "狗", baseTime)
	err = s.UpdateSchedule(ctx, missing, 1)
	assert.ErrorIs(t, err, store.ErrNotFound)

	invalid := got.Clone()
	invalid.Schedule.Difficulty = domain.DifficultyMastered
	err = s.UpdateSchedule(ctx, invalid, got.Version)
	assert.ErrorIs(t, err, store.ErrInvalidEntity)
}

func testCountByDifficulty(t *testing.T, s store.ReviewItemStore) {
	ctx := context.Background()
	owner := uuid.New()

	counts, err := s.CountByDifficulty(ctx, owner)
	require.NoError(t, err)
	assert.Empty(t, counts)

	schedules := []domain.Schedule{
		domain.InitialSchedule(),
		domain.InitialSchedule(),
		{IntervalDays: 3, EaseFactor: 2.5, Repetitions: 2, Difficulty: domain.DifficultyLearning},
		{IntervalDays: 10, EaseFactor: 2.6, Repetitions: 4, Difficulty: domain.DifficultyMastered},
	}
	for i, schedule := range schedules {
		item := NewItem(t, owner, "post-1", string(rune('a'+i)), baseTime)
		item.Schedule = schedule
		_, _, err := s.InsertOrGet(ctx, item)
		require.NoError(t, err)
	}

	counts, err = s.CountByDifficulty(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, map[domain.Difficulty]int{
		domain.DifficultyNew:      2,
		domain.DifficultyLearning: 1,
		domain.DifficultyMastered: 1,
	}, counts)
}

func testResetDue(t *testing.T, s store.ReviewItemStore) {
	ctx := context.Background()
	owner := uuid.New()
	future := baseTime.AddDate(0, 0, 5)

	sourced := NewItem(t, owner, "post-1", "猫", future)
	adHoc := NewItem(t, owner, "", "狗", future)
	media := "https://example.com/fish.jpg"
	withMedia := NewItem(t, owner, "", "鱼", future)
	withMedia.MediaRef = &media
	for _, item := range []*domain.ReviewItem{sourced, adHoc, withMedia} {
		_, _, err := s.InsertOrGet(ctx, item)
		require.NoError(t, err)
	}

	changed, err := s.ResetDue(ctx, owner, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 2, changed)

	due, err := s.ListDue(ctx, owner, baseTime, 0)
	require.NoError(t, err)
	ids := []uuid.UUID{}
	for _, item := range due {
		ids = append(ids, item.ID)
		assert.Equal(t, domain.InitialSchedule(), item.Schedule, "schedules are untouched")
	}
	assert.ElementsMatch(t, []uuid.UUID{sourced.ID, withMedia.ID}, ids)
}

func testMarkDeletedBySource(t *testing.T, s store.ReviewItemStore) {
	ctx := context.Background()
	owner := uuid.New()

	for _, target := range []string{"一", "二"} {
		_, _, err := s.InsertOrGet(ctx, NewItem(t, owner, "post-1", target, baseTime))
		require.NoError(t, err)
	}
	kept := NewItem(t, owner, "post-2", "三", baseTime)
	_, _, err := s.InsertOrGet(ctx, kept)
	require.NoError(t, err)

	n, err := s.MarkDeletedBySource(ctx, owner, "post-1", baseTime)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = s.MarkDeletedBySource(ctx, owner, "post-1", baseTime)
	require.NoError(t, err)
	assert.Zero(t, n)

	items, err := s.List(ctx, owner)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, kept.ID, items[0].ID)

	count, err := s.CountDue(ctx, owner, baseTime)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	refs, err := s.ListSourceRefs(ctx, owner)
	require.NoError(t, err)
	assert.Equal(t, []string{"post-2"}, refs)

	// A tombstone frees its key.
	_, created, err := s.InsertOrGet(ctx, NewItem(t, owner, "post-1", "一", baseTime))
	require.NoError(t, err)
	assert.True(t, created)
}
