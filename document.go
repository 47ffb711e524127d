package pragma

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
)

// An AnalyzerOpt represents a setting that changes how sentences are analyzed.
//
// For example, it might swap the tagger for the rule-based one:
//
//	a := pragma.NewAnalyzer(pragma.UsingTagger(pragma.NewRuleTagger(nil, nil)))
type AnalyzerOpt func(a *Analyzer)

// UsingTagger specifies the Tagger to use.
func UsingTagger(t Tagger) AnalyzerOpt {
	return func(a *Analyzer) {
		a.tagger = t
	}
}

// UsingLemmatizer specifies the Lemmatizer to use.
func UsingLemmatizer(l Lemmatizer) AnalyzerOpt {
	return func(a *Analyzer) {
		a.lemmatizer = l
	}
}

// WithWindowSize sets how many tokens after a match are kept.
func WithWindowSize(n int) AnalyzerOpt {
	return func(a *Analyzer) {
		if n >= 0 {
			a.window = n
		}
	}
}

// WithLogger sets the logger used for per-record diagnostics.
func WithLogger(l zerolog.Logger) AnalyzerOpt {
	return func(a *Analyzer) {
		a.logger = l
	}
}

// WithProgressCallback sets a progress reporting callback, called with the
// fraction of records processed.
func WithProgressCallback(callback func(float64)) AnalyzerOpt {
	return func(a *Analyzer) {
		a.progress = callback
	}
}

// An Analyzer runs the tag, lemmatize and match pipeline over sentences.
// It holds no per-sentence state and is safe to reuse.
type Analyzer struct {
	tagger     Tagger
	lemmatizer Lemmatizer
	window     int
	logger     zerolog.Logger
	progress   func(float64)
}

// NewAnalyzer creates an Analyzer according to the user-specified options.
// Without options it uses the perceptron tagger and the morphological
// lemmatizer over the default model.
func NewAnalyzer(opts ...AnalyzerOpt) *Analyzer {
	a := &Analyzer{
		window: DefaultWindowSize,
		logger: zerolog.Nop(),
	}
	for _, applyOpt := range opts {
		applyOpt(a)
	}
	if a.tagger == nil {
		a.tagger = NewPerceptronTagger()
	}
	if a.lemmatizer == nil {
		a.lemmatizer = NewMorphLemmatizer()
	}
	return a
}

// Analyze tags and lemmatizes sentence and looks for target in verb use.
//
// Every token is lemmatized; the scan for the target stops at the first
// qualifying token.
func (a *Analyzer) Analyze(ctx context.Context, sentence, target string) (*AnalysisResult, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	tagged, err := a.tagger.Tag(sentence)
	if err != nil {
		return nil, fmt.Errorf("analyze %q: %w", target, err)
	}

	res := &AnalysisResult{
		Tokens:     make([]string, 0, len(tagged)),
		Tagged:     tagged,
		Lemmatized: make([]LemmatizedToken, 0, len(tagged)),
		TokenCount: len(tagged),
	}
	for _, tok := range tagged {
		res.Tokens = append(res.Tokens, tok.Text)
		res.Lemmatized = append(res.Lemmatized, LemmatizedToken{
			Text:  tok.Text,
			Tag:   tok.Tag,
			Lemma: a.lemmatizer.Lemmatize(strings.ToLower(tok.Text), NormalizeTag(tok.Tag)),
		})
		if strings.Contains(tok.Text, "'") {
			res.ContractionCount++
		}
	}

	m := MatchTarget(res.Lemmatized, target, a.window)
	res.IsValidVerbUsage = m.Found
	res.MatchIndex = m.Index
	res.ContextWindow = m.Window
	return res, nil
}

func (a *Analyzer) reportProgress(done, total int) {
	if a.progress != nil && total > 0 {
		a.progress(float64(done) / float64(total))
	}
}
