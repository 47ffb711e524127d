package pragma

import (
	"context"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/text/unicode/norm"
)

// UnknownSource labels extracted rows whose entry named no source.
const UnknownSource = "Unknown"

// An ExtractedRow is one textbook sentence that uses its target verb.
type ExtractedRow struct {
	TargetLemma    string   `json:"Target_Lemma"`
	Sentence       string   `json:"Extracted_Sentence"`
	ContextPattern string   `json:"Context_Pattern"`
	Source         string   `json:"Original_Source"`
	Register       Register `json:"Register"`
}

// CleanText normalizes raw textbook text: NFKC, doubled single quotes
// collapsed to one, runs of whitespace collapsed to a single space.
func CleanText(text string) string {
	text = norm.NFKC.String(text)
	text = strings.ReplaceAll(text, "''", "'")
	return strings.Join(strings.Fields(text), " ")
}

// An ExtractorOpt configures an Extractor.
type ExtractorOpt func(*Extractor)

// WithMinTokens sets the token count a sentence must exceed to be kept.
func WithMinTokens(n int) ExtractorOpt {
	return func(e *Extractor) { e.minTokens = n }
}

// WithExtractorWindow sets how many tokens after the verb form the pattern.
func WithExtractorWindow(n int) ExtractorOpt {
	return func(e *Extractor) {
		if n >= 0 {
			e.window = n
		}
	}
}

// WithExtractorLogger sets the logger for skipped sentences.
func WithExtractorLogger(l zerolog.Logger) ExtractorOpt {
	return func(e *Extractor) { e.logger = l }
}

// Extractor pulls sentences that use a target verb out of textbook chunks.
//
// Unlike Analyzer it matches the surface form, not the lemma: a chunk about
// "keep" yields "We keep in touch" but not "She kept quiet".
type Extractor struct {
	segmenter Segmenter
	tagger    Tagger
	window    int
	minTokens int
	logger    zerolog.Logger
}

// NewExtractor returns an Extractor keeping sentences of more than three
// tokens with a five token context pattern.
func NewExtractor(segmenter Segmenter, tagger Tagger, opts ...ExtractorOpt) *Extractor {
	e := &Extractor{
		segmenter: segmenter,
		tagger:    tagger,
		window:    DefaultWindowSize,
		minTokens: 3,
		logger:    zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract cleans and segments each entry's text and returns the sentences in
// which the entry's lemma appears as a verb, in input order.
func (e *Extractor) Extract(ctx context.Context, entries []SentenceRecord) ([]ExtractedRow, error) {
	var rows []ExtractedRow
	for i, entry := range entries {
		if err := ctx.Err(); err != nil {
			return rows, err
		}
		target := strings.ToLower(strings.TrimSpace(entry.Lemma))
		text := CleanText(entry.Sentence)
		if target == "" || text == "" {
			continue
		}

		for _, sent := range e.segmenter.Segment(text) {
			tagged, err := e.tagger.Tag(sent.Text)
			if err != nil {
				e.logger.Warn().Err(err).Int("index", i+1).Str("lemma", target).Msg("sentence skipped")
				continue
			}
			if len(tagged) <= e.minTokens {
				continue
			}
			window, ok := surfaceMatch(tagged, target, e.window)
			if !ok {
				continue
			}
			rows = append(rows, ExtractedRow{
				TargetLemma:    target,
				Sentence:       sent.Text,
				ContextPattern: target + " + " + strings.Join(window, " "),
				Source:         orDefault(entry.Source, UnknownSource),
				Register:       Register(orNotAvailable(string(entry.Register))),
			})
		}
	}
	e.logger.Info().Int("entries", len(entries)).Int("sentences", len(rows)).Msg("extraction done")
	return rows, nil
}

// surfaceMatch finds the first verb-tagged token spelled like target and
// returns up to window following tokens.
func surfaceMatch(tagged []TaggedToken, target string, window int) ([]string, bool) {
	for i, tok := range tagged {
		if strings.ToLower(tok.Text) != target || !IsVerbTag(tok.Tag) {
			continue
		}
		end := min(i+1+window, len(tagged))
		out := make([]string, 0, end-i-1)
		for _, next := range tagged[i+1 : end] {
			out = append(out, next.Text)
		}
		return out, true
	}
	return nil, false
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
