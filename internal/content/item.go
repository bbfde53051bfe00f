// Package content defines the single versioned schema for externally supplied
// vocabulary and normalizes older capture payloads into it at the boundary.
package content

import (
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/phrazzld/scry-vocab/internal/domain"
)

// Schema versions understood by Decode.
const (
	SchemaVersionLegacy    = 1
	SchemaVersionCanonical = 2
)

var validate = validator.New()

// Example is one example phrase pair in canonical form.
type Example struct {
	Base     string `json:"base" validate:"required"`
	Target   string `json:"target" validate:"required"`
	Phonetic string `json:"phonetic,omitempty"`
}

// Item is a canonical content tuple ready for ingestion.
type Item struct {
	Version         int       `json:"schema_version"`
	SourceRef       string    `json:"source_ref,omitempty" validate:"max=512"`
	Base            string    `json:"base" validate:"required,max=512"`
	Target          string    `json:"target" validate:"required,max=512"`
	Phonetic        string    `json:"phonetic,omitempty" validate:"max=512"`
	ContextSentence string    `json:"context_sentence,omitempty" validate:"max=4096"`
	ContextPhonetic string    `json:"context_phonetic,omitempty" validate:"max=4096"`
	Examples        []Example `json:"examples,omitempty" validate:"dive"`
	MediaRef        string    `json:"media_ref,omitempty" validate:"max=2048"`
}

// Validate trims the item in place and checks the required vocabulary fields.
// Missing base or target map to the matching domain validation errors.
func (it *Item) Validate() error {
	it.trim()

	err := validate.Struct(it)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		first := verrs[0]
		switch {
		case first.Namespace() == "Item.Base" && first.Tag() == "required":
			return domain.ErrVocabularyBaseEmpty
		case first.Namespace() == "Item.Target" && first.Tag() == "required":
			return domain.ErrVocabularyTargetEmpty
		}
		return fmt.Errorf("%w: %s failed on %s", domain.ErrValidation, first.Namespace(), first.Tag())
	}

	return fmt.Errorf("%w: %v", domain.ErrValidation, err)
}

// Vocabulary returns the domain vocabulary of the item.
func (it *Item) Vocabulary() domain.Vocabulary {
	return domain.Vocabulary{Base: it.Base, Target: it.Target, Phonetic: it.Phonetic}
}

// Context returns the domain context of the item. Examples is nil when empty.
func (it *Item) Context() domain.ItemContext {
	c := domain.ItemContext{
		Sentence:         it.ContextSentence,
		SentencePhonetic: it.ContextPhonetic,
	}
	for _, ex := range it.Examples {
		c.Examples = append(c.Examples, domain.ExamplePhrase{
			Base:     ex.Base,
			Target:   ex.Target,
			Phonetic: ex.Phonetic,
		})
	}
	return c
}

// SourceRefPtr returns the source reference, or nil for ad-hoc content.
func (it *Item) SourceRefPtr() *string {
	return optional(it.SourceRef)
}

// MediaRefPtr returns the media reference, or nil when there is none.
func (it *Item) MediaRefPtr() *string {
	return optional(it.MediaRef)
}

func (it *Item) trim() {
	it.SourceRef = strings.TrimSpace(it.SourceRef)
	it.Base = strings.TrimSpace(it.Base)
	it.Target = strings.TrimSpace(it.Target)
	it.Phonetic = strings.TrimSpace(it.Phonetic)
	it.ContextSentence = strings.TrimSpace(it.ContextSentence)
	it.ContextPhonetic = strings.TrimSpace(it.ContextPhonetic)
	it.MediaRef = strings.TrimSpace(it.MediaRef)
	if it.Examples == nil {
		return
	}
	// Examples may share a backing array with the caller's copy of the item.
	examples := make([]Example, len(it.Examples))
	for i, ex := range it.Examples {
		examples[i] = Example{
			Base:     strings.TrimSpace(ex.Base),
			Target:   strings.TrimSpace(ex.Target),
			Phonetic: strings.TrimSpace(ex.Phonetic),
		}
	}
	it.Examples = examples
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
