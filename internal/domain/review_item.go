package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Scheduling constants shared by the engine and the stores.
const (
	// MinEaseFactor is the floor every transition enforces.
	MinEaseFactor = 1.3

	// DefaultEaseFactor is the ease factor of a freshly created item.
	DefaultEaseFactor = 2.5

	// DefaultIntervalDays is the interval of a freshly created item.
	DefaultIntervalDays = 1

	// MasteredMinIntervalDays and MasteredMinRepetitions bound the mastered label.
	MasteredMinIntervalDays = 7
	MasteredMinRepetitions  = 3
)

// Grade is the learner's self-reported recall quality for one review.
type Grade string

// Possible grade values
const (
	GradeAgain Grade = "again"
	GradeHard  Grade = "hard"
	GradeGood  Grade = "good"
	GradeEasy  Grade = "easy"
)

// Valid reports whether g is one of the four defined grades.
func (g Grade) Valid() bool {
	switch g {
	case GradeAgain, GradeHard, GradeGood, GradeEasy:
		return true
	default:
		return false
	}
}

// ParseGrade converts a raw grade string, ignoring case and surrounding space.
func ParseGrade(s string) (Grade, error) {
	g := Grade(strings.ToLower(strings.TrimSpace(s)))
	if !g.Valid() {
		return "", ErrInvalidGrade
	}
	return g, nil
}

// Difficulty is a label derived from the schedule, stored for query convenience.
type Difficulty string

// Possible difficulty values
const (
	DifficultyNew      Difficulty = "new"
	DifficultyLearning Difficulty = "learning"
	DifficultyMastered Difficulty = "mastered"
)

// Classify derives the difficulty label from repetitions and interval.
// Mastery is not sticky: any transition that resets repetitions yields new.
func Classify(repetitions, intervalDays int) Difficulty {
	switch {
	case repetitions == 0:
		return DifficultyNew
	case intervalDays >= MasteredMinIntervalDays && repetitions >= MasteredMinRepetitions:
		return DifficultyMastered
	default:
		return DifficultyLearning
	}
}

// Vocabulary is the term pair being learned.
type Vocabulary struct {
	Base     string `json:"base"`
	Target   string `json:"target"`
	Phonetic string `json:"phonetic,omitempty"`
}

// ExamplePhrase is one example usage pair attached to an item.
type ExamplePhrase struct {
	Base     string `json:"base"`
	Target   string `json:"target"`
	Phonetic string `json:"phonetic,omitempty"`
}

// ItemContext holds the optional example sentence and phrases for an item.
type ItemContext struct {
	Sentence         string          `json:"sentence,omitempty"`
	SentencePhonetic string          `json:"sentence_phonetic,omitempty"`
	Examples         []ExamplePhrase `json:"examples,omitempty"`
}

// Schedule is the spaced-repetition state of an item.
type Schedule struct {
	IntervalDays int        `json:"interval_days"`
	EaseFactor   float64    `json:"ease_factor"`
	Repetitions  int        `json:"repetitions"`
	Difficulty   Difficulty `json:"difficulty"`
}

// InitialSchedule is the schedule every item is created with.
func InitialSchedule() Schedule {
	return Schedule{
		IntervalDays: DefaultIntervalDays,
		EaseFactor:   DefaultEaseFactor,
		Repetitions:  0,
		Difficulty:   DifficultyNew,
	}
}

// Validate checks the schedule invariants.
func (s Schedule) Validate() error {
	if s.IntervalDays < 0 {
		return ErrInvalidInterval
	}
	if s.EaseFactor < MinEaseFactor {
		return ErrInvalidEaseFactor
	}
	if s.Repetitions < 0 {
		return ErrInvalidRepetitions
	}
	if s.Difficulty != Classify(s.Repetitions, s.IntervalDays) {
		return ErrDifficultyMismatch
	}
	return nil
}

// ReviewItem is one vocabulary unit a learner is scheduled to review.
// SourceRef and MediaRef are nil for ad-hoc items and items without an image.
type ReviewItem struct {
	ID             uuid.UUID   `json:"id"`
	OwnerID        uuid.UUID   `json:"owner_id"`
	SourceRef      *string     `json:"source_ref"`
	Vocabulary     Vocabulary  `json:"vocabulary"`
	Context        ItemContext `json:"context"`
	MediaRef       *string     `json:"media_ref"`
	Schedule       Schedule    `json:"schedule"`
	CreatedAt      time.Time   `json:"created_at"`
	LastReviewedAt *time.Time  `json:"last_reviewed_at"`
	NextReviewAt   time.Time   `json:"next_review_at"`
	Deleted        bool        `json:"-"`

	// Version increments on every persisted mutation and backs optimistic concurrency.
	Version   int       `json:"version"`
	UpdatedAt time.Time `json:"updated_at"`
}

// NewReviewItem creates an item with the initial schedule, due at firstReviewAt.
// Returns an error if validation fails.
func NewReviewItem(
	ownerID uuid.UUID,
	sourceRef *string,
	vocab Vocabulary,
	itemContext ItemContext,
	mediaRef *string,
	now time.Time,
	firstReviewAt time.Time,
) (*ReviewItem, error) {
	item := &ReviewItem{
		ID:           uuid.New(),
		OwnerID:      ownerID,
		SourceRef:    normalizeRef(sourceRef),
		Vocabulary:   vocab,
		Context:      itemContext,
		MediaRef:     normalizeRef(mediaRef),
		Schedule:     InitialSchedule(),
		CreatedAt:    now,
		NextReviewAt: firstReviewAt,
		Version:      1,
		UpdatedAt:    now,
	}

	if err := item.Validate(); err != nil {
		return nil, err
	}

	return item, nil
}

// Validate checks if the ReviewItem has valid data.
func (i *ReviewItem) Validate() error {
	if i.ID == uuid.Nil {
		return ErrItemIDEmpty
	}
	if i.OwnerID == uuid.Nil {
		return ErrOwnerIDEmpty
	}
	if strings.TrimSpace(i.Vocabulary.Base) == "" {
		return ErrVocabularyBaseEmpty
	}
	if strings.TrimSpace(i.Vocabulary.Target) == "" {
		return ErrVocabularyTargetEmpty
	}
	return i.Schedule.Validate()
}

// SourceKey returns the source reference or "" for ad-hoc items.
func (i *ReviewItem) SourceKey() string {
	if i.SourceRef == nil {
		return ""
	}
	return *i.SourceRef
}

// IsDue reports whether the item should be presented at now.
func (i *ReviewItem) IsDue(now time.Time) bool {
	return !i.Deleted && !i.NextReviewAt.After(now)
}

// Clone returns a deep copy so transitions never alias the caller's item.
func (i *ReviewItem) Clone() *ReviewItem {
	c := *i
	c.SourceRef = cloneString(i.SourceRef)
	c.MediaRef = cloneString(i.MediaRef)
	if i.LastReviewedAt != nil {
		t := *i.LastReviewedAt
		c.LastReviewedAt = &t
	}
	if i.Context.Examples != nil {
		c.Context.Examples = make([]ExamplePhrase, len(i.Context.Examples))
		copy(c.Context.Examples, i.Context.Examples)
	}
	return &c
}

func normalizeRef(ref *string) *string {
	if ref == nil {
		return nil
	}
	v := strings.TrimSpace(*ref)
	if v == "" {
		return nil
	}
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
