package pragma

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrEmptyResponse is returned when a model replies with no text.
	ErrEmptyResponse = errors.New("empty response")
	// ErrNoArray is returned when no JSON array can be found in a response.
	ErrNoArray = errors.New("no JSON array found")
)

// A Tag is one label parsed from a classifier response. Keyed tags carry the
// sentence index the model echoed; plain string entries are matched to
// sentences by position and leave Index at zero.
type Tag struct {
	Index int
	Keyed bool
	Label string
}

// ParseTags extracts the first JSON array from a loosely formatted model
// response. Code fences and surrounding prose are ignored.
//
// Entries may be strings (positional) or objects carrying an "index" and a
// "tag", "label" or "category" (keyed). Labels are upper-cased.
func ParseTags(raw string) ([]Tag, error) {
	items, err := FirstArray(raw)
	if err != nil {
		return nil, err
	}

	tags := make([]Tag, 0, len(items))
	for i, item := range items {
		tag, err := decodeTag(item)
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", i, err)
		}
		tags = append(tags, tag)
	}
	return tags, nil
}

// FirstArray returns the elements of the first well-formed JSON array in raw.
func FirstArray(raw string) ([]json.RawMessage, error) {
	text := stripCodeFence(strings.TrimSpace(raw))
	if text == "" {
		return nil, ErrEmptyResponse
	}

	for i := 0; i < len(text); i++ {
		if text[i] != '[' {
			continue
		}
		var items []json.RawMessage
		dec := json.NewDecoder(strings.NewReader(text[i:]))
		if err := dec.Decode(&items); err == nil {
			return items, nil
		}
	}
	return nil, ErrNoArray
}

func decodeTag(item json.RawMessage) (Tag, error) {
	var s string
	if err := json.Unmarshal(item, &s); err == nil {
		return Tag{Label: normalizeLabel(s)}, nil
	}

	var obj struct {
		Index    *int   `json:"index"`
		Tag      string `json:"tag"`
		Label    string `json:"label"`
		Category string `json:"category"`
	}
	if err := json.Unmarshal(item, &obj); err != nil {
		return Tag{}, fmt.Errorf("unsupported entry %s", item)
	}
	label := firstNonEmpty(obj.Tag, obj.Label, obj.Category)
	if label == "" {
		return Tag{}, fmt.Errorf("entry has no label: %s", item)
	}
	tag := Tag{Label: normalizeLabel(label)}
	if obj.Index != nil {
		if *obj.Index < 0 {
			return Tag{}, fmt.Errorf("negative index %d", *obj.Index)
		}
		tag.Index, tag.Keyed = *obj.Index, true
	}
	return tag, nil
}

// stripCodeFence removes markdown code block wrappers (```json ... ```).
func stripCodeFence(s string) string {
	if !strings.HasPrefix(s, "```") {
		return s
	}
	lines := strings.Split(s, "\n")
	lines = lines[1:]
	if n := len(lines); n > 0 && strings.HasPrefix(strings.TrimSpace(lines[n-1]), "```") {
		lines = lines[:n-1]
	}
	return strings.Join(lines, "\n")
}

func normalizeLabel(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
