package pragma

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// echoClassifier tags every sentence with the same label.
func echoClassifier(label string, calls *[]ClassificationRequest) Classifier {
	return classifierFunc(func(_ context.Context, req ClassificationRequest) (string, error) {
		*calls = append(*calls, req)
		return tagArray(repeat(label, len(req.Sentences))...), nil
	})
}

func TestUsageRunnerRun(t *testing.T) {
	records := []SentenceRecord{
		{Sentence: "He runs every morning.", Lemma: "run", Register: RegisterLow, Mood: "Statement"},
		{Sentence: "Keep the change.", Lemma: "keep", Register: RegisterNeutral, Mood: "Imperative"},
		{Sentence: "", Lemma: "run"},
		{Sentence: "Could you run the report?", Lemma: "run", Register: RegisterHigh, Mood: "Question"},
		{Sentence: "Run!", Lemma: "run"},
	}

	var calls []ClassificationRequest
	cfg := DefaultBatchConfig()
	cfg.ChunkSize = 2
	v, slept := newTestValidator(echoClassifier("literal", &calls), cfg)

	rows, report, err := NewUsageRunner(v).Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, UsageReport{Lemmas: 2, Chunks: 3, Skipped: 1}, report)
	assert.Len(t, *slept, 3)
	for _, d := range *slept {
		assert.Equal(t, cfg.CallDelay, d)
	}

	require.Len(t, calls, 3)
	assert.Equal(t, "keep", calls[0].Lemma)
	assert.Equal(t, []string{"He runs every morning.", "Could you run the report?"}, calls[1].Sentences)
	assert.Equal(t, []string{"Run!"}, calls[2].Sentences)

	require.Len(t, rows, 4)
	assert.Equal(t, UsageRow{
		Lemma:         "keep",
		Register:      RegisterNeutral,
		Mood:          "Imperative",
		UsageCategory: UsageLiteral,
		FullSentence:  "Keep the change.",
	}, rows[0])
	assert.Equal(t, Register(NotAvailable), rows[3].Register)
	assert.Equal(t, NotAvailable, rows[3].Mood)
}

func TestUsageRunnerDegradedChunks(t *testing.T) {
	c := &scriptedClassifier{replies: []reply{{text: `["LITERAL"]`}}}
	v, _ := newTestValidator(c, DefaultBatchConfig())

	records := []SentenceRecord{
		{Sentence: "I ran.", Lemma: "run"},
		{Sentence: "We ran.", Lemma: "run"},
	}
	rows, report, err := NewUsageRunner(v).Run(context.Background(), records)
	require.NoError(t, err)

	assert.Equal(t, 1, report.Degraded)
	assert.Equal(t, 1, report.Retried)
	require.Len(t, rows, 2)
	assert.Equal(t, UsageError, rows[0].UsageCategory)
	assert.Equal(t, UsageError, rows[1].UsageCategory)
}

func TestUsageRunnerCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls []ClassificationRequest
	v, _ := newTestValidator(echoClassifier("IDIOMATIC", &calls), DefaultBatchConfig())
	v.sleep = func(context.Context, time.Duration) error {
		cancel()
		return context.Canceled
	}

	records := []SentenceRecord{
		{Sentence: "Break a leg.", Lemma: "break"},
		{Sentence: "Take a seat.", Lemma: "take"},
	}
	rows, _, err := NewUsageRunner(v).Run(ctx, records)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Len(t, calls, 1)
	require.Len(t, rows, 1)
	assert.Equal(t, "break", rows[0].Lemma)
}

func TestFilteredRecordRecord(t *testing.T) {
	f := FilteredRecord{
		Index:       3,
		Register:    RegisterHigh,
		Mood:        "Question",
		Sentence:    "May I run this by you?",
		TargetLemma: "run",
		Source:      "Synthetic (Claude)",
		CEFRLevel:   "B1",
	}
	assert.Equal(t, SentenceRecord{
		Sentence:  "May I run this by you?",
		Lemma:     "run",
		Register:  RegisterHigh,
		Mood:      "Question",
		Source:    "Synthetic (Claude)",
		CEFRLevel: "B1",
	}, f.Record())
}

func TestSummarizeUsage(t *testing.T) {
	rows := []UsageRow{
		{Lemma: "run", Register: "low", UsageCategory: UsageIdiomatic},
		{Lemma: "run", Register: RegisterLow, UsageCategory: UsageLiteral},
		{Lemma: "run", Register: RegisterHigh, UsageCategory: UsageLiteral},
		{Lemma: "keep", Register: RegisterNeutral, UsageCategory: UsageIdiomatic},
		{Lemma: "keep", Register: RegisterNeutral, UsageCategory: UsageError},
		{Lemma: "keep", Register: "N/A", UsageCategory: UsageLiteral},
	}

	s := SummarizeUsage(rows)

	assert.Equal(t, []Register{RegisterHigh, RegisterNeutral, RegisterLow, "N/A"}, s.Registers)
	assert.Equal(t, []string{UsageError, UsageIdiomatic, UsageLiteral}, s.Categories)
	assert.Equal(t, map[string]int{UsageError: 1, UsageIdiomatic: 2, UsageLiteral: 3}, s.CategoryCounts)

	assert.Equal(t, 1, s.Counts[RegisterLow][UsageIdiomatic])
	assert.Equal(t, 1, s.Counts[RegisterLow][UsageLiteral])
	assert.InDelta(t, 0.5, s.Proportions[RegisterLow][UsageIdiomatic], 1e-9)
	assert.InDelta(t, 1.0, s.Proportions[RegisterHigh][UsageLiteral], 1e-9)
	assert.InDelta(t, 0.0, s.Proportions[RegisterHigh][UsageIdiomatic], 1e-9)

	assert.InDelta(t, 0.5, s.IdiomaticRatio["run"][RegisterLow], 1e-9)
	assert.InDelta(t, 0.0, s.IdiomaticRatio["run"][RegisterHigh], 1e-9)
	assert.InDelta(t, 0.5, s.IdiomaticRatio["keep"][RegisterNeutral], 1e-9)
}

func TestSummarizeUsageEmpty(t *testing.T) {
	s := SummarizeUsage(nil)
	assert.Empty(t, s.Registers)
	assert.Empty(t, s.Categories)
	assert.Empty(t, s.IdiomaticRatio)
}
