package pragma

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// DefaultChunkSize is the number of sentences sent per classification call.
const DefaultChunkSize = 20

// A ClassificationRequest asks for one usage label per sentence, all about
// the same target lemma.
type ClassificationRequest struct {
	Lemma     string
	Sentences []string
	Labels    []string
}

// A Classifier labels a batch of sentences. The reply is loosely formatted
// text expected to contain a JSON array with one entry per sentence.
type Classifier interface {
	Classify(ctx context.Context, req ClassificationRequest) (string, error)
}

// BatchConfig controls chunking and pacing of classification calls.
type BatchConfig struct {
	ChunkSize  int
	Labels     []string
	CallDelay  time.Duration // Pause after every chunk.
	RetryDelay time.Duration // Pause before the single retry.
}

// DefaultBatchConfig returns a config with 20-sentence chunks, the
// LITERAL/IDIOMATIC label set, a 500ms call delay and a 1s retry delay.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		ChunkSize:  DefaultChunkSize,
		Labels:     DefaultLabels,
		CallDelay:  500 * time.Millisecond,
		RetryDelay: time.Second,
	}
}

// A BatchTagResult pairs a chunk's sentences with their tags. Tags always
// has one entry per sentence; Degraded chunks carry "ERROR" throughout.
type BatchTagResult struct {
	Sentences []string
	Tags      []string
	Attempts  int
	Degraded  bool
	Err       error // Last failure when Degraded.
}

// CountMismatchError reports a response with the wrong number of tags.
type CountMismatchError struct {
	Want, Got int
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("expected %d tags, got %d", e.Want, e.Got)
}

// SleepFunc pauses for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Chunk splits items into ordered runs of at most size elements. A size
// below one selects DefaultChunkSize.
func Chunk[T any](items []T, size int) [][]T {
	if size < 1 {
		size = DefaultChunkSize
	}
	chunks := make([][]T, 0, (len(items)+size-1)/size)
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		chunks = append(chunks, items[start:end])
	}
	return chunks
}

// BatchValidator sends chunks to a Classifier and guarantees one tag per
// sentence.
type BatchValidator struct {
	classifier Classifier
	cfg        BatchConfig
	labels     map[string]bool
	logger     zerolog.Logger
	sleep      SleepFunc
}

// NewBatchValidator returns a validator over c.
func NewBatchValidator(c Classifier, cfg BatchConfig, logger zerolog.Logger) *BatchValidator {
	if cfg.ChunkSize < 1 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if len(cfg.Labels) == 0 {
		cfg.Labels = DefaultLabels
	}
	v := &BatchValidator{
		classifier: c,
		cfg:        cfg,
		labels:     make(map[string]bool, len(cfg.Labels)),
		logger:     logger,
		sleep:      sleepContext,
	}
	for _, l := range cfg.Labels {
		v.labels[normalizeLabel(l)] = true
	}
	return v
}

// TagChunk classifies one chunk of sentences about lemma.
//
// A failed call, an unparsable reply or a tag count that differs from the
// sentence count is retried exactly once after RetryDelay. If the retry fails
// too, every sentence gets "ERROR". Tags are upper-cased; labels outside the
// configured set become "ERROR" individually.
func (v *BatchValidator) TagChunk(ctx context.Context, lemma string, sentences []string) BatchTagResult {
	res := BatchTagResult{Sentences: sentences}
	if len(sentences) == 0 {
		res.Tags = []string{}
		return res
	}

	for attempt := 1; attempt <= 2; attempt++ {
		if attempt > 1 {
			if err := v.sleep(ctx, v.cfg.RetryDelay); err != nil {
				res.Err = err
				break
			}
		}
		res.Attempts = attempt

		tags, err := v.try(ctx, lemma, sentences)
		if err == nil {
			res.Tags = tags
			res.Err = nil
			return res
		}
		res.Err = err
		v.logger.Warn().Err(err).
			Str("lemma", lemma).
			Int("sentences", len(sentences)).
			Int("attempt", attempt).
			Msg("chunk rejected")
		if ctx.Err() != nil {
			break
		}
	}

	res.Degraded = true
	res.Tags = make([]string, len(sentences))
	for i := range res.Tags {
		res.Tags[i] = UsageError
	}
	v.logger.Error().Err(res.Err).
		Str("lemma", lemma).
		Int("sentences", len(sentences)).
		Msg("chunk marked ERROR")
	return res
}

func (v *BatchValidator) try(ctx context.Context, lemma string, sentences []string) ([]string, error) {
	raw, err := v.classifier.Classify(ctx, ClassificationRequest{
		Lemma:     lemma,
		Sentences: sentences,
		Labels:    v.cfg.Labels,
	})
	if err != nil {
		return nil, fmt.Errorf("classify: %w", err)
	}
	tags, err := ParseTags(raw)
	if err != nil {
		return nil, fmt.Errorf("parse response: %w", err)
	}
	return v.align(tags, len(sentences))
}

// align orders tags by sentence. Keyed tags are placed by index (0- or
// 1-based, each sentence exactly once); plain tags are taken in order.
func (v *BatchValidator) align(tags []Tag, n int) ([]string, error) {
	if len(tags) != n {
		return nil, &CountMismatchError{Want: n, Got: len(tags)}
	}

	out := make([]string, n)
	if !tags[0].Keyed {
		for i, t := range tags {
			if t.Keyed {
				return nil, fmt.Errorf("entry %d: mixed keyed and positional tags", i)
			}
			out[i] = v.checkLabel(t.Label)
		}
		return out, nil
	}

	base := n
	for _, t := range tags {
		if !t.Keyed {
			return nil, fmt.Errorf("mixed keyed and positional tags")
		}
		base = min(base, t.Index)
	}
	if base > 1 {
		return nil, fmt.Errorf("indices start at %d", base)
	}

	seen := make([]bool, n)
	for _, t := range tags {
		i := t.Index - base
		if i >= n || seen[i] {
			return nil, fmt.Errorf("index %d out of range or repeated", t.Index)
		}
		seen[i] = true
		out[i] = v.checkLabel(t.Label)
	}
	return out, nil
}

func (v *BatchValidator) checkLabel(label string) string {
	if label == UsageError || v.labels[label] {
		return label
	}
	v.logger.Debug().Str("label", label).Msg("unknown label replaced by ERROR")
	return UsageError
}
