package pragma

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// A Completer sends one system and user prompt to a generative model and
// returns the text of its reply.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (string, error)
}

// A Condition is one register, mood and situation a sentence is generated for.
type Condition struct {
	Register Register
	Mood     string
	Context  string
}

// DefaultConditions asks for a formal question, a casual statement and a
// neutral instruction.
var DefaultConditions = []Condition{
	{Register: RegisterHigh, Mood: "Question", Context: "Workplace/Request"},
	{Register: RegisterLow, Mood: "Statement", Context: "Friends/Weekend Plans"},
	{Register: RegisterNeutral, Mood: "Imperative/Command", Context: "Directions/Instructions"},
}

// GeneratorConfig controls sentence generation.
type GeneratorConfig struct {
	Conditions []Condition
	Source     string // Stamped on every record.
	CEFRLevel  string
	Delay      time.Duration // Pause after every word.
}

// DefaultGeneratorConfig returns the three default conditions at B1 with a
// 1.5s pause between words.
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Conditions: DefaultConditions,
		Source:     "Synthetic",
		CEFRLevel:  "B1",
		Delay:      1500 * time.Millisecond,
	}
}

const generatorSystemPrompt = `You are a linguistic expert specializing in pragmatics.
Generate distinct example sentences for the target word.
Each sentence must strictly satisfy the corresponding register, mood, and context requirements.
The sentences must be appropriate for a CEFR %s learner.

Output ONLY a strict JSON array of objects. Do not include any explanations or markdown.`

// GenerateReport counts the outcome of a generation run.
type GenerateReport struct {
	Words     int
	Succeeded int
	Failed    int
	Records   int
}

// Generator produces SentenceRecords for target words.
type Generator struct {
	completer Completer
	cfg       GeneratorConfig
	logger    zerolog.Logger
	sleep     SleepFunc
}

// NewGenerator returns a Generator over c.
func NewGenerator(c Completer, cfg GeneratorConfig, logger zerolog.Logger) *Generator {
	if len(cfg.Conditions) == 0 {
		cfg.Conditions = DefaultConditions
	}
	return &Generator{completer: c, cfg: cfg, logger: logger, sleep: sleepContext}
}

// Prompt returns the user prompt for word.
func (g *Generator) Prompt(word string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Target Word: %s\n\n", word)
	fmt.Fprintf(&b, "Generate %d sentences with these characteristics:\n", len(g.cfg.Conditions))
	for i, c := range g.cfg.Conditions {
		fmt.Fprintf(&b, "%d. Register: %s, Mood: %s, Context: %s.\n", i+1, c.Register, c.Mood, c.Context)
	}
	b.WriteString("\nOutput the result as a JSON array with keys: 'register', 'mood', 'sentence'.")
	return b.String()
}

// GenerateWord asks the model for the sentences of one word and stamps each
// with the word, source and CEFR level.
func (g *Generator) GenerateWord(ctx context.Context, word string) ([]SentenceRecord, error) {
	raw, err := g.completer.Complete(ctx, fmt.Sprintf(generatorSystemPrompt, g.cfg.CEFRLevel), g.Prompt(word))
	if err != nil {
		return nil, fmt.Errorf("generate %q: %w", word, err)
	}
	items, err := FirstArray(raw)
	if err != nil {
		return nil, fmt.Errorf("generate %q: %w", word, err)
	}

	records := make([]SentenceRecord, 0, len(items))
	for i, item := range items {
		var rec SentenceRecord
		if err := json.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("generate %q: entry %d: %w", word, i, err)
		}
		if strings.TrimSpace(rec.Sentence) == "" {
			continue
		}
		rec.Lemma = word
		rec.Source = g.cfg.Source
		rec.CEFRLevel = g.cfg.CEFRLevel
		records = append(records, rec)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("generate %q: %w", word, ErrEmptyResponse)
	}
	return records, nil
}

// Generate runs GenerateWord for each word in order, pausing after each.
// Failed words are logged and skipped; only a cancelled ctx ends the run.
func (g *Generator) Generate(ctx context.Context, words []string) ([]SentenceRecord, GenerateReport, error) {
	report := GenerateReport{Words: len(words)}
	var all []SentenceRecord

	for i, word := range words {
		if err := ctx.Err(); err != nil {
			return all, report, err
		}
		g.logger.Info().Int("word", i+1).Int("words", len(words)).Str("lemma", word).Msg("generating")

		records, err := g.GenerateWord(ctx, word)
		if err != nil {
			report.Failed++
			g.logger.Warn().Err(err).Str("lemma", word).Msg("word skipped")
		} else {
			report.Succeeded++
			report.Records += len(records)
			all = append(all, records...)
		}

		if err := g.sleep(ctx, g.cfg.Delay); err != nil {
			return all, report, err
		}
	}
	return all, report, nil
}

// ReadTargetWords reads one word per line, ignoring blank lines.
func ReadTargetWords(r io.Reader) ([]string, error) {
	var words []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if w := strings.TrimSpace(scanner.Text()); w != "" {
			words = append(words, w)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read target words: %w", err)
	}
	return words, nil
}
