package pragma

import (
	"fmt"
	"strings"

	"gopkg.in/neurosnap/sentences.v1"
	"gopkg.in/neurosnap/sentences.v1/english"
)

// A Segmenter splits a chunk of running text into sentences.
type Segmenter interface {
	Segment(text string) []Sentence
}

// PunktSegmenter is an unsupervised sentence boundary detector trained on
// English text.
type PunktSegmenter struct {
	tokenizer *sentences.DefaultSentenceTokenizer
}

// NewPunktSegmenter loads the English punkt parameters.
func NewPunktSegmenter() (*PunktSegmenter, error) {
	t, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load punkt model: %w", err)
	}
	return &PunktSegmenter{tokenizer: t}, nil
}

// Segment implements Segmenter. Sentences are trimmed; Start and End are
// byte offsets of the trimmed text in the input.
func (p *PunktSegmenter) Segment(text string) []Sentence {
	var out []Sentence
	cursor := 0
	for _, s := range p.tokenizer.Tokenize(text) {
		trimmed := strings.TrimSpace(s.Text)
		if trimmed == "" {
			continue
		}
		start := cursor
		if i := strings.Index(text[cursor:], trimmed); i >= 0 {
			start = cursor + i
			cursor = start + len(trimmed)
		}
		out = append(out, Sentence{Text: trimmed, Start: start, End: start + len(trimmed)})
	}
	return out
}
