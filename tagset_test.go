package pragma

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeTag(t *testing.T) {
	tests := []struct {
		tag  string
		want Category
	}{
		{"JJ", Adjective},
		{"JJR", Adjective},
		{"VB", Verb},
		{"VBD", Verb},
		{"VBZ", Verb},
		{"NN", Noun},
		{"NNPS", Noun},
		{"RB", Adverb},
		{"RBS", Adverb},
		{"DT", None},
		{"PRP", None},
		{".", None},
		{"", None},
		{"vb", None},
	}

	for _, tt := range tests {
		t.Run(tt.tag, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTag(tt.tag))
		})
	}
}

func TestIsVerbTag(t *testing.T) {
	assert.True(t, IsVerbTag("VBG"))
	assert.True(t, IsVerbTag("V"))
	assert.False(t, IsVerbTag("NN"))
	assert.False(t, IsVerbTag(""))
}

func TestCategoryString(t *testing.T) {
	assert.Equal(t, "VERB", Verb.String())
	assert.Equal(t, "NONE", Category(42).String())
}
