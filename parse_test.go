package pragma

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func labels(tags []Tag) []string {
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.Label
	}
	return out
}

func TestParseTags(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{"clean", `["LITERAL", "IDIOMATIC"]`, []string{"LITERAL", "IDIOMATIC"}},
		{"lower case", `["literal", " Idiomatic "]`, []string{"LITERAL", "IDIOMATIC"}},
		{"surrounding text", "Sure! Here are the tags:\n[\"LITERAL\", \"LITERAL\"]\nLet me know.", []string{"LITERAL", "LITERAL"}},
		{"code fence", "```json\n[\"IDIOMATIC\"]\n```", []string{"IDIOMATIC"}},
		{"bracketed prose first", `Tags [see below]: ["LITERAL"]`, []string{"LITERAL"}},
		{"keyed objects", `[{"index": 0, "tag": "literal"}, {"index": 1, "label": "idiomatic"}]`, []string{"LITERAL", "IDIOMATIC"}},
		{"empty array", `[]`, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tags, err := ParseTags(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, labels(tags))
		})
	}
}

func TestParseTagsIndices(t *testing.T) {
	tags, err := ParseTags(`[{"index": 1, "category": "LITERAL"}, "IDIOMATIC"]`)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Index: 1, Keyed: true, Label: "LITERAL"}, {Label: "IDIOMATIC"}}, tags)

	tags, err = ParseTags(`[{"index": 0, "tag": "LITERAL"}]`)
	require.NoError(t, err)
	assert.Equal(t, []Tag{{Index: 0, Keyed: true, Label: "LITERAL"}}, tags)
}

func TestParseTagsErrors(t *testing.T) {
	_, err := ParseTags("   ")
	assert.ErrorIs(t, err, ErrEmptyResponse)

	_, err = ParseTags("I cannot classify these sentences.")
	assert.ErrorIs(t, err, ErrNoArray)

	_, err = ParseTags(`["LITERAL", "IDIOMATIC"`)
	assert.ErrorIs(t, err, ErrNoArray)

	_, err = ParseTags(`[1, 2]`)
	assert.Error(t, err)

	_, err = ParseTags(`[{"index": 0}]`)
	assert.Error(t, err)

	_, err = ParseTags(`[{"index": -5, "tag": "literal"}, {"index": -7, "tag": "idiomatic"}]`)
	assert.ErrorContains(t, err, "negative index -5")
}

func TestStripCodeFence(t *testing.T) {
	assert.Equal(t, `["A"]`, stripCodeFence("```\n[\"A\"]\n```"))
	assert.Equal(t, `["A"]`, stripCodeFence(`["A"]`))
}
