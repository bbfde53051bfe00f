package content

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/phrazzld/scry-vocab/internal/domain"
)

// Legacy key chains, most preferred first.
var (
	legacyBaseKeys            = []string{"detectedObjectBase", "detected_object_base", "base"}
	legacyTargetKeys          = []string{"detectedObjectTarget", "detected_object_target", "target"}
	legacyPhoneticKeys        = []string{"detectedObjectTargetPinyin", "detected_object_target_pinyin", "pinyin"}
	legacySentenceKeys        = []string{"contextSentence", "context_sentence"}
	legacySentencePhonKeys    = []string{"contextSentencePinyin", "context_sentence_pinyin"}
	legacyExamplesKeys        = []string{"examplePhrases", "example_phrases"}
	legacySourceRefKeys       = []string{"id", "post_id", "postId"}
	legacyMediaRefKeys        = []string{"url", "image_url", "imageUrl"}
	legacyExamplePhoneticKeys = []string{"targetPinyin", "target_pinyin", "phonetic"}
)

// Decode parses one content payload and normalizes it to the canonical schema.
// The returned item is validated.
func Decode(raw []byte) (Item, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Item{}, fmt.Errorf("%w: content payload is not a JSON object: %v", domain.ErrValidation, err)
	}

	version, err := schemaVersion(fields)
	if err != nil {
		return Item{}, err
	}

	var item Item
	switch version {
	case SchemaVersionCanonical:
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&item); err != nil {
			return Item{}, fmt.Errorf("%w: invalid content payload: %v", domain.ErrValidation, err)
		}
	case SchemaVersionLegacy:
		item, err = migrateLegacy(fields)
		if err != nil {
			return Item{}, err
		}
	default:
		return Item{}, fmt.Errorf("%w: unsupported content schema version %d", domain.ErrValidation, version)
	}

	item.Version = SchemaVersionCanonical
	if err := item.Validate(); err != nil {
		return Item{}, err
	}
	return item, nil
}

// DecodeBatch decodes a JSON array of payloads. Invalid entries are reported by
// index in errs and omitted from items.
func DecodeBatch(raw []byte) (items []Item, errs map[int]error, err error) {
	var payloads []json.RawMessage
	if err := json.Unmarshal(raw, &payloads); err != nil {
		return nil, nil, fmt.Errorf("%w: content batch is not a JSON array: %v", domain.ErrValidation, err)
	}

	items = make([]Item, 0, len(payloads))
	for i, p := range payloads {
		item, decodeErr := Decode(p)
		if decodeErr != nil {
			if errs == nil {
				errs = make(map[int]error)
			}
			errs[i] = decodeErr
			continue
		}
		items = append(items, item)
	}
	return items, errs, nil
}

func schemaVersion(fields map[string]json.RawMessage) (int, error) {
	raw, ok := fields["schema_version"]
	if !ok {
		return SchemaVersionLegacy, nil
	}
	var v int
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, fmt.Errorf("%w: schema_version must be an integer", domain.ErrValidation)
	}
	return v, nil
}

// migrateLegacy maps a v1 capture payload onto the canonical schema. Vocabulary
// fields may live at the top level or inside an "ai_data" object; identity fields
// always come from the top level.
func migrateLegacy(top map[string]json.RawMessage) (Item, error) {
	vocab := top
	if nested, ok := top["ai_data"]; ok {
		var ai map[string]json.RawMessage
		if err := json.Unmarshal(nested, &ai); err != nil {
			return Item{}, fmt.Errorf("%w: ai_data must be an object", domain.ErrValidation)
		}
		vocab = ai
	}

	item := Item{
		SourceRef:       firstString(top, legacySourceRefKeys...),
		Base:            firstString(vocab, legacyBaseKeys...),
		Target:          firstString(vocab, legacyTargetKeys...),
		Phonetic:        firstString(vocab, legacyPhoneticKeys...),
		ContextSentence: firstString(vocab, legacySentenceKeys...),
		ContextPhonetic: firstString(vocab, legacySentencePhonKeys...),
		MediaRef:        firstString(top, legacyMediaRefKeys...),
	}

	for _, key := range legacyExamplesKeys {
		raw, ok := vocab[key]
		if !ok || isNull(raw) {
			continue
		}
		var examples []map[string]json.RawMessage
		if err := json.Unmarshal(raw, &examples); err != nil {
			return Item{}, fmt.Errorf("%w: %s must be an array of objects", domain.ErrValidation, key)
		}
		for _, ex := range examples {
			item.Examples = append(item.Examples, Example{
				Base:     firstString(ex, "base"),
				Target:   firstString(ex, "target"),
				Phonetic: firstString(ex, legacyExamplePhoneticKeys...),
			})
		}
		break
	}

	return item, nil
}

// firstString returns the first non-empty string (or number) found under keys.
func firstString(m map[string]json.RawMessage, keys ...string) string {
	for _, key := range keys {
		raw, ok := m[key]
		if !ok || isNull(raw) {
			continue
		}
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			if s != "" {
				return s
			}
			continue
		}
		var n json.Number
		if err := json.Unmarshal(raw, &n); err == nil && n != "" {
			return n.String()
		}
	}
	return ""
}

func isNull(raw json.RawMessage) bool {
	return len(bytes.TrimSpace(raw)) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
