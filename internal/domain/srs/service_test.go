package srs

import (
	"math/rand"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/scry-vocab/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() Service {
	params := NewDefaultParams()
	params.Location = time.UTC
	return NewServiceWithParams(params)
}

func newTestItem(t *testing.T, now time.Time) *domain.ReviewItem {
	t.Helper()
	ref := "photo-1"
	item, err := domain.NewReviewItem(
		uuid.New(),
		&ref,
		domain.Vocabulary{Base: "cat", Target: "猫"},
		domain.ItemContext{},
		nil,
		now,
		now,
	)
	require.NoError(t, err)
	return item
}

func TestNewDefaultService(t *testing.T) {
	t.Parallel()

	service := NewDefaultService()
	require.NotNil(t, service)

	ds, ok := service.(*defaultService)
	require.True(t, ok)
	assert.NotNil(t, ds.params)

	ds, ok = NewServiceWithParams(nil).(*defaultService)
	require.True(t, ok)
	assert.NotNil(t, ds.params, "nil params fall back to defaults")
}

func TestGradeProgressionToMastery(t *testing.T) {
	t.Parallel()
	service := newTestService()
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	item := newTestItem(t, now)

	steps := []struct {
		interval   int
		ease       float64
		reps       int
		difficulty domain.Difficulty
		due        time.Time
	}{
		{1, 2.5, 1, domain.DifficultyLearning, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC)},
		{3, 2.5, 2, domain.DifficultyLearning, time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC)},
		{8, 2.5, 3, domain.DifficultyMastered, time.Date(2026, 2, 9, 0, 0, 0, 0, time.UTC)},
	}

	for i, step := range steps {
		next, err := service.Grade(item, domain.GradeGood, now)
		require.NoError(t, err, "step %d", i)

		assert.Equal(t, step.interval, next.Schedule.IntervalDays, "step %d interval", i)
		assert.InDelta(t, step.ease, next.Schedule.EaseFactor, 1e-9, "step %d ease", i)
		assert.Equal(t, step.reps, next.Schedule.Repetitions, "step %d repetitions", i)
		assert.Equal(t, step.difficulty, next.Schedule.Difficulty, "step %d difficulty", i)
		assert.True(t, step.due.Equal(next.NextReviewAt), "step %d due: %v", i, next.NextReviewAt)
		require.NotNil(t, next.LastReviewedAt)
		assert.True(t, now.Equal(*next.LastReviewedAt))

		item = next
	}
}

func TestGradeRelapseFromMastered(t *testing.T) {
	t.Parallel()
	service := newTestService()
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	item := newTestItem(t, now)
	item.Schedule = domain.Schedule{
		IntervalDays: 8,
		EaseFactor:   2.5,
		Repetitions:  3,
		Difficulty:   domain.DifficultyMastered,
	}

	next, err := service.Grade(item, domain.GradeAgain, now)
	require.NoError(t, err)

	assert.Equal(t, 0, next.Schedule.IntervalDays)
	assert.InDelta(t, 2.3, next.Schedule.EaseFactor, 1e-9)
	assert.Equal(t, 0, next.Schedule.Repetitions)
	assert.Equal(t, domain.DifficultyNew, next.Schedule.Difficulty)
	assert.True(t, now.Add(10*time.Minute).Equal(next.NextReviewAt))
}

func TestGradeEasyPath(t *testing.T) {
	t.Parallel()
	service := newTestService()
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	item := newTestItem(t, now)

	next, err := service.Grade(item, domain.GradeEasy, now)
	require.NoError(t, err)

	assert.Equal(t, 2, next.Schedule.IntervalDays)
	assert.InDelta(t, 2.65, next.Schedule.EaseFactor, 1e-9)
	assert.Equal(t, 1, next.Schedule.Repetitions)
	assert.Equal(t, domain.DifficultyLearning, next.Schedule.Difficulty)
	assert.True(t, time.Date(2026, 2, 3, 0, 0, 0, 0, time.UTC).Equal(next.NextReviewAt))
}

func TestGradeHardPenalty(t *testing.T) {
	t.Parallel()
	service := newTestService()
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	item := newTestItem(t, now)
	item.Schedule = domain.Schedule{IntervalDays: 20, EaseFactor: 2.5, Repetitions: 4, Difficulty: domain.DifficultyMastered}

	next, err := service.Grade(item, domain.GradeHard, now)
	require.NoError(t, err)

	assert.Equal(t, 1, next.Schedule.IntervalDays)
	assert.InDelta(t, 2.35, next.Schedule.EaseFactor, 1e-9)
	assert.Equal(t, 3, next.Schedule.Repetitions)
	assert.Equal(t, domain.DifficultyLearning, next.Schedule.Difficulty)
	assert.True(t, time.Date(2026, 2, 2, 0, 0, 0, 0, time.UTC).Equal(next.NextReviewAt))
}

func TestGradeRejectsInvalidInput(t *testing.T) {
	t.Parallel()
	service := newTestService()
	now := time.Now()
	item := newTestItem(t, now)

	_, err := service.Grade(item, domain.Grade("perfect"), now)
	assert.ErrorIs(t, err, domain.ErrInvalidGrade)

	_, err = service.Grade(nil, domain.GradeGood, now)
	assert.ErrorIs(t, err, ErrNilItem)
}

// Random grade sequences must never break the schedule invariants.
func TestGradeInvariantsHoldForRandomSequences(t *testing.T) {
	t.Parallel()
	service := newTestService()
	grades := []domain.Grade{domain.GradeAgain, domain.GradeHard, domain.GradeGood, domain.GradeEasy}
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		now := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
		item := newTestItem(t, now)

		for step := 0; step < 40; step++ {
			next, err := service.Grade(item, grades[rng.Intn(len(grades))], now)
			require.NoError(t, err)

			s := next.Schedule
			require.GreaterOrEqual(t, s.EaseFactor, domain.MinEaseFactor)
			require.GreaterOrEqual(t, s.Repetitions, 0)
			require.GreaterOrEqual(t, s.IntervalDays, 0)
			require.Equal(t, domain.Classify(s.Repetitions, s.IntervalDays), s.Difficulty)
			require.NoError(t, s.Validate())
			require.True(t, next.NextReviewAt.After(now))

			item = next
			now = next.NextReviewAt
		}
	}
}

func TestFirstReviewAt(t *testing.T) {
	t.Parallel()
	service := newTestService()

	now := time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)
	assert.True(t, time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC).Equal(service.FirstReviewAt(now)))
}

func TestPostpone(t *testing.T) {
	t.Parallel()
	service := newTestService()
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	item := newTestItem(t, now)
	item.NextReviewAt = now.Add(48 * time.Hour)

	next, err := service.Postpone(item, 3, now)
	require.NoError(t, err)
	assert.True(t, item.NextReviewAt.AddDate(0, 0, 3).Equal(next.NextReviewAt))
	assert.Equal(t, item.Schedule, next.Schedule, "postpone leaves the schedule untouched")

	overdue := newTestItem(t, now)
	overdue.NextReviewAt = now.Add(-72 * time.Hour)
	next, err = service.Postpone(overdue, 1, now)
	require.NoError(t, err)
	assert.True(t, now.AddDate(0, 0, 1).Equal(next.NextReviewAt), "overdue items count from now")

	_, err = service.Postpone(item, 0, now)
	assert.ErrorIs(t, err, ErrInvalidDays)

	_, err = service.Postpone(nil, 1, now)
	assert.ErrorIs(t, err, ErrNilItem)
}

func TestGradeGoodRepeatedlyStaysBounded(t *testing.T) {
	t.Parallel()
	service := newTestService()
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)
	item := newTestItem(t, now)

	for i := 0; i < 40; i++ {
		next, err := service.Grade(item, domain.GradeGood, now)
		require.NoError(t, err)
		item = next
	}

	assert.Equal(t, DefaultMaxIntervalDays, item.Schedule.IntervalDays)
	assert.False(t, item.NextReviewAt.After(now.AddDate(0, 0, DefaultMaxIntervalDays)))
}

func TestPostponeIsCapped(t *testing.T) {
	t.Parallel()
	params := NewDefaultParams()
	params.Location = time.UTC
	params.MaxIntervalDays = 30
	service := NewServiceWithParams(params)
	now := time.Date(2026, 2, 1, 9, 30, 0, 0, time.UTC)

	item := newTestItem(t, now)
	item.NextReviewAt = now.AddDate(0, 0, 25)

	next, err := service.Postpone(item, 10, now)
	require.NoError(t, err)
	assert.True(t, now.AddDate(0, 0, 30).Equal(next.NextReviewAt))
}
