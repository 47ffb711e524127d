package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tsawler/pragma"
	"github.com/tsawler/pragma/internal/config"
	"github.com/tsawler/pragma/internal/export"
	"github.com/tsawler/pragma/internal/store"
)

type stubCompleter func(system, prompt string) (string, error)

func (f stubCompleter) Complete(_ context.Context, system, prompt string) (string, error) {
	return f(system, prompt)
}

var tagCount = regexp.MustCompile(`Return exactly (\d+) tags`)

// literalCompleter answers every classification prompt with LITERAL tags.
func literalCompleter(_, prompt string) (string, error) {
	m := tagCount.FindStringSubmatch(prompt)
	if m == nil {
		return "", fmt.Errorf("unexpected prompt %q", prompt)
	}
	n, _ := strconv.Atoi(m[1])
	tags := make([]string, n)
	for i := range tags {
		tags[i] = `"LITERAL"`
	}
	return "[" + strings.Join(tags, ", ") + "]", nil
}

type env struct {
	dir    string
	config string
	store  string
}

// newEnv isolates HOME and writes a config with no delays, the rule tagger and
// a temp run archive.
func newEnv(t *testing.T, completer stubCompleter) env {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("HOME", dir)
	for _, k := range []string{
		"PRAGMA_PROVIDER", "PRAGMA_MODEL", "PRAGMA_BASE_URL", "PRAGMA_API_KEY",
		"PRAGMA_TAGGER", "PRAGMA_CHUNK_SIZE", "PRAGMA_STORE_PATH", "PRAGMA_LOG_LEVEL",
		"ANTHROPIC_API_KEY", "OPENAI_API_KEY", "GOOGLE_API_KEY",
	} {
		t.Setenv(k, "")
	}

	e := env{
		dir:    dir,
		config: filepath.Join(dir, "config.yaml"),
		store:  filepath.Join(dir, "runs.db"),
	}
	body := fmt.Sprintf(`provider:
  apiKey: test-key
analysis:
  tagger: rule
batch:
  callDelay: 0s
  retryDelay: 0s
generate:
  delay: 0s
store:
  path: %s
log:
  level: error
  format: json
`, e.store)
	require.NoError(t, os.WriteFile(e.config, []byte(body), 0o644))

	prev := newCompleter
	newCompleter = func(config.ProviderConfig) (pragma.Completer, error) { return completer, nil }
	t.Cleanup(func() { newCompleter = prev })
	return e
}

func (e env) path(name string) string { return filepath.Join(e.dir, name) }

func (e env) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	configFlag, logLevelFlag, noStoreFlag = "", "", false

	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(append([]string{"--config", e.config}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func (e env) writeRecords(t *testing.T, name string, records []pragma.SentenceRecord) string {
	t.Helper()
	path := e.path(name)
	require.NoError(t, export.WriteJSON(path, records))
	return path
}

var corpus = []pragma.SentenceRecord{
	{Sentence: "I ran to the store yesterday.", Lemma: "run", Register: pragma.RegisterLow, Mood: "Statement", Source: "Synthetic", CEFRLevel: "B1"},
	{Sentence: "I had a good run this morning.", Lemma: "run", Register: pragma.RegisterHigh, Mood: "Statement"},
	{Sentence: "", Lemma: "run"},
}

func TestAnnotateClassifyStats(t *testing.T) {
	e := newEnv(t, literalCompleter)
	in := e.writeRecords(t, "intermediate.json", corpus)
	filteredPath := e.path("out/filtered.json")
	statsPath := e.path("out/stats.json")
	usagePath := e.path("out/usage.csv")

	out, err := e.run(t, "annotate", "--in", in, "--out", filteredPath, "--stats", statsPath)
	require.NoError(t, err)
	assert.Contains(t, out, "1 of 3 sentences use their target as a verb (1 rejected, 1 skipped, 0 failed)")
	assert.Contains(t, out, "Sentences: 1")

	filtered, err := export.ReadFiltered(filteredPath)
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, 1, filtered[0].Index)
	assert.Equal(t, "run", filtered[0].TargetLemma)
	assert.True(t, filtered[0].Analysis.IsValidVerbUsage)

	var stats pragma.CorpusStatistics
	require.NoError(t, export.ReadJSON(statsPath, &stats))
	assert.Equal(t, 7, stats.TotalTokens)

	out, err = e.run(t, "classify", "--in", filteredPath, "--out", usagePath, "--raw=false")
	require.NoError(t, err)
	assert.Contains(t, out, "1 sentences classified for 1 lemmas in 1 chunks (0 retried, 0 marked ERROR)")
	assert.Contains(t, out, "LITERAL")

	f, err := os.Open(usagePath)
	require.NoError(t, err)
	rows, err := export.ReadUsageCSV(f)
	f.Close()
	require.NoError(t, err)
	assert.Equal(t, []pragma.UsageRow{{
		Lemma:         "run",
		Register:      pragma.RegisterLow,
		Mood:          "Statement",
		UsageCategory: pragma.UsageLiteral,
		FullSentence:  "I ran to the store yesterday.",
	}}, rows)

	out, err = e.run(t, "stats", "--in", filteredPath, "--usage", usagePath)
	require.NoError(t, err)
	assert.Contains(t, out, "Tokens: 7")
	assert.Contains(t, out, "Register: LOW=1")
	assert.Contains(t, out, "1 (100%)")
}

func TestArchivedRuns(t *testing.T) {
	e := newEnv(t, literalCompleter)
	in := e.writeRecords(t, "intermediate.json", corpus)

	_, err := e.run(t, "annotate", "--in", in, "--out", e.path("filtered.json"), "--stats", "")
	require.NoError(t, err)

	st, err := store.Open(e.store)
	require.NoError(t, err)
	runs, err := st.Runs(10)
	require.NoError(t, err)
	require.NoError(t, st.Close())
	require.Len(t, runs, 1)
	assert.Equal(t, "annotate", runs[0].Command)
	assert.Equal(t, 1, runs[0].Annotations)

	out, err := e.run(t, "runs", "--limit", "5")
	require.NoError(t, err)
	assert.Contains(t, out, runs[0].ID)

	out, err = e.run(t, "occurrences", "run", "--run", runs[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, `1 sentences contain "run"`)
	assert.Contains(t, out, "ran")
	assert.Contains(t, out, "VBD")

	out, err = e.run(t, "occurrences", "run", "--run", "missing")
	require.NoError(t, err)
	assert.Contains(t, out, `0 sentences contain "run"`)
}

func TestNoStore(t *testing.T) {
	e := newEnv(t, literalCompleter)
	in := e.writeRecords(t, "intermediate.json", corpus)

	_, err := e.run(t, "--no-store", "annotate", "--in", in, "--out", e.path("filtered.json"), "--stats", "")
	require.NoError(t, err)
	assert.NoFileExists(t, e.store)
}

func TestOccurrencesFromFile(t *testing.T) {
	e := newEnv(t, literalCompleter)
	in := e.writeRecords(t, "intermediate.json", corpus)
	filteredPath := e.path("filtered.json")

	_, err := e.run(t, "--no-store", "annotate", "--in", in, "--out", filteredPath, "--stats", "")
	require.NoError(t, err)

	out, err := e.run(t, "occurrences", "store", "--in", filteredPath, "--run", "")
	require.NoError(t, err)
	assert.Contains(t, out, `1 sentences contain "store"`)
	assert.Contains(t, out, "NN")
}

func TestGenerate(t *testing.T) {
	reply := `[
  {"register": "HIGH", "mood": "Question", "sentence": "Could you run the report?"},
  {"register": "low", "mood": "Statement", "sentence": "I'm gonna run home."},
  {"register": "NEUTRAL", "mood": "Imperative", "sentence": "Run the tests first."}
]`
	var system string
	e := newEnv(t, func(s, _ string) (string, error) {
		system = s
		return reply, nil
	})
	words := e.path("words.txt")
	require.NoError(t, os.WriteFile(words, []byte("run\nkeep\n"), 0o644))
	outPath := e.path("generated.json")

	out, err := e.run(t, "generate", "--words", words, "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "6 sentences generated (2/2 words successful)")
	assert.Contains(t, system, "CEFR B1 learner")

	records, err := export.ReadRecords(outPath)
	require.NoError(t, err)
	require.Len(t, records, 6)
	assert.Equal(t, "keep", records[3].Lemma)
	assert.Equal(t, pragma.RegisterLow, records[1].Register)
	assert.Equal(t, "Synthetic ("+config.DefaultModel+")", records[0].Source)
}

func TestGenerateWritesEmptyOutput(t *testing.T) {
	e := newEnv(t, func(string, string) (string, error) {
		return "I can't help with that.", nil
	})
	words := e.path("words.txt")
	require.NoError(t, os.WriteFile(words, []byte("run\n"), 0o644))
	outPath := e.path("generated.json")

	out, err := e.run(t, "generate", "--words", words, "--out", outPath)
	require.NoError(t, err)
	assert.Contains(t, out, "0 sentences generated (0/1 words successful), saved to "+outPath)

	records, err := export.ReadRecords(outPath)
	require.NoError(t, err)
	assert.Empty(t, records)
	data, err := os.ReadFile(outPath)
	require.NoError(t, err)
	assert.Equal(t, "[]", strings.TrimSpace(string(data)))
}

func TestGenerateEmptyWordList(t *testing.T) {
	e := newEnv(t, literalCompleter)
	words := e.path("words.txt")
	require.NoError(t, os.WriteFile(words, []byte("\n\n"), 0o644))

	_, err := e.run(t, "generate", "--words", words, "--out", e.path("generated.json"))
	assert.ErrorContains(t, err, "is empty")
}

func TestClassifyNeedsAPIKey(t *testing.T) {
	e := newEnv(t, literalCompleter)
	require.NoError(t, os.WriteFile(e.config, []byte("log:\n  level: error\n"), 0o644))
	in := e.writeRecords(t, "records.json", corpus)

	_, err := e.run(t, "classify", "--raw", "--in", in, "--out", e.path("usage.csv"))
	assert.ErrorIs(t, err, config.ErrMissingAPIKey)
}

func TestInvalidConfig(t *testing.T) {
	e := newEnv(t, literalCompleter)
	_, err := e.run(t, "--log-level", "loud", "stats", "--in", e.path("missing.json"), "--usage", "")
	assert.Error(t, err)
}
