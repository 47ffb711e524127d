package store

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/pragma"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "nested", "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func sampleRecords() []pragma.FilteredRecord {
	return []pragma.FilteredRecord{
		{
			Index:       2,
			Register:    pragma.RegisterLow,
			Mood:        "Statement",
			Sentence:    "We'll keep in touch.",
			TargetLemma: "keep",
			Source:      "Synthetic (test)",
			CEFRLevel:   "B1",
			Analysis: pragma.AnalysisResult{
				Tokens:           []string{"We", "'ll", "keep", "in", "touch", "."},
				Tagged:           []pragma.TaggedToken{{Text: "keep", Tag: "VB"}},
				Lemmatized:       []pragma.LemmatizedToken{{Text: "keep", Tag: "VB", Lemma: "keep"}},
				IsValidVerbUsage: true,
				MatchIndex:       2,
				ContextWindow:    []string{"in", "touch", "."},
				ContractionCount: 1,
				TokenCount:       6,
			},
		},
		{
			Index:       1,
			Register:    pragma.RegisterHigh,
			Mood:        "Question",
			Sentence:    "Could you run it?",
			TargetLemma: "run",
			Source:      pragma.NotAvailable,
			CEFRLevel:   pragma.NotAvailable,
			Analysis:    pragma.AnalysisResult{ContextWindow: []string{"it", "?"}, TokenCount: 5},
		},
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	require.NoError(t, s.Close())
}

func TestCreateRun(t *testing.T) {
	s := openTestStore(t)

	run, err := s.CreateRun("annotate", "corpus.json")
	require.NoError(t, err)
	assert.Len(t, run.ID, 36)
	assert.NotEmpty(t, run.CreatedAt)

	other, err := s.CreateRun("classify", "filtered.json")
	require.NoError(t, err)
	assert.NotEqual(t, run.ID, other.ID)
}

func TestAnnotationsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	run, err := s.CreateRun("annotate", "corpus.json")
	require.NoError(t, err)

	records := sampleRecords()
	require.NoError(t, s.SaveAnnotations(run.ID, records))

	got, err := s.Annotations(run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[1].Sentence, got[0].Sentence, "ordered by record index")
	assert.Equal(t, records[0], got[1])

	empty, err := s.Annotations("nope")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestSaveRequiresRun(t *testing.T) {
	s := openTestStore(t)
	assert.ErrorIs(t, s.SaveAnnotations("missing", sampleRecords()), ErrUnknownRun)
	assert.ErrorIs(t, s.SaveUsage("missing", nil), ErrUnknownRun)
}

func TestUsageCounts(t *testing.T) {
	s := openTestStore(t)
	run, err := s.CreateRun("classify", "filtered.json")
	require.NoError(t, err)

	rows := []pragma.UsageRow{
		{Lemma: "run", Register: pragma.RegisterHigh, Mood: "Question", UsageCategory: pragma.UsageLiteral, FullSentence: "a"},
		{Lemma: "run", Register: pragma.RegisterHigh, Mood: "Question", UsageCategory: pragma.UsageLiteral, FullSentence: "b"},
		{Lemma: "keep", Register: pragma.RegisterLow, Mood: "Statement", UsageCategory: pragma.UsageIdiomatic, FullSentence: "c"},
		{Lemma: "keep", Register: pragma.RegisterLow, Mood: "Statement", UsageCategory: pragma.UsageError, FullSentence: "d"},
	}
	require.NoError(t, s.SaveUsage(run.ID, rows))

	counts, err := s.UsageCounts(run.ID)
	require.NoError(t, err)
	assert.Equal(t, map[pragma.Register]map[string]int{
		pragma.RegisterHigh: {pragma.UsageLiteral: 2},
		pragma.RegisterLow:  {pragma.UsageIdiomatic: 1, pragma.UsageError: 1},
	}, counts)
}

func TestRuns(t *testing.T) {
	s := openTestStore(t)
	first, err := s.CreateRun("annotate", "a.json")
	require.NoError(t, err)
	second, err := s.CreateRun("classify", "b.json")
	require.NoError(t, err)

	require.NoError(t, s.SaveAnnotations(first.ID, sampleRecords()))
	require.NoError(t, s.SaveUsage(second.ID, []pragma.UsageRow{{Lemma: "run", Register: "HIGH", Mood: "Q", UsageCategory: "LITERAL", FullSentence: "x"}}))

	runs, err := s.Runs(0)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, second.ID, runs[0].ID)
	assert.Equal(t, 1, runs[0].UsageRows)
	assert.Equal(t, first.ID, runs[1].ID)
	assert.Equal(t, 2, runs[1].Annotations)

	limited, err := s.Runs(1)
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}
