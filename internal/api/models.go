package api

import (
	"encoding/json"
	"time"

	"github.com/phrazzld/scry-vocab/internal/domain"
)

// IngestRequest carries a batch of content payloads. Each entry may use the
// canonical or the legacy capture schema.
type IngestRequest struct {
	Items json.RawMessage `json:"items" validate:"required"`
}

// IngestResponse reports how many review items were created. Rejected counts
// payloads that failed to decode or validate.
type IngestResponse struct {
	Created  int `json:"created"`
	Rejected int `json:"rejected"`
}

// GradeRequest is the body of a grade submission.
type GradeRequest struct {
	Grade string `json:"grade" validate:"required"`
}

// PostponeRequest is the body of a postpone request.
type PostponeRequest struct {
	Days int `json:"days" validate:"required,gte=1,lte=365"`
}

// CountResponse wraps a single count.
type CountResponse struct {
	Count int `json:"count"`
}

// ExampleResponse is one example phrase in a review item response.
type ExampleResponse struct {
	Base     string `json:"base"`
	Target   string `json:"target"`
	Phonetic string `json:"phonetic,omitempty"`
}

// ReviewItemResponse is the wire form of a review item.
type ReviewItemResponse struct {
	ID              string            `json:"id"`
	SourceRef       *string           `json:"source_ref"`
	Base            string            `json:"base"`
	Target          string            `json:"target"`
	Phonetic        string            `json:"phonetic,omitempty"`
	ContextSentence string            `json:"context_sentence,omitempty"`
	ContextPhonetic string            `json:"context_phonetic,omitempty"`
	Examples        []ExampleResponse `json:"examples,omitempty"`
	MediaRef        *string           `json:"media_ref"`
	IntervalDays    int               `json:"interval_days"`
	EaseFactor      float64           `json:"ease_factor"`
	Repetitions     int               `json:"repetitions"`
	Difficulty      string            `json:"difficulty"`
	CreatedAt       time.Time         `json:"created_at"`
	LastReviewedAt  *time.Time        `json:"last_reviewed_at"`
	NextReviewAt    time.Time         `json:"next_review_at"`
	Version         int               `json:"version"`
}

func itemToResponse(item *domain.ReviewItem) ReviewItemResponse {
	resp := ReviewItemResponse{
		ID:              item.ID.String(),
		SourceRef:       item.SourceRef,
		Base:            item.Vocabulary.Base,
		Target:          item.Vocabulary.Target,
		Phonetic:        item.Vocabulary.Phonetic,
		ContextSentence: item.Context.Sentence,
		ContextPhonetic: item.Context.SentencePhonetic,
		MediaRef:        item.MediaRef,
		IntervalDays:    item.Schedule.IntervalDays,
		EaseFactor:      item.Schedule.EaseFactor,
		Repetitions:     item.Schedule.Repetitions,
		Difficulty:      string(item.Schedule.Difficulty),
		CreatedAt:       item.CreatedAt,
		LastReviewedAt:  item.LastReviewedAt,
		NextReviewAt:    item.NextReviewAt,
		Version:         item.Version,
	}
	for _, ex := range item.Context.Examples {
		resp.Examples = append(resp.Examples, ExampleResponse(ex))
	}
	return resp
}

func itemsToResponse(items []*domain.ReviewItem) []ReviewItemResponse {
	out := make([]ReviewItemResponse, 0, len(items))
	for _, item := range items {
		out = append(out, itemToResponse(item))
	}
	return out
}
