package pragma

import (
	"context"
	"strings"
)

// FilterReport counts what happened to each input record.
type FilterReport struct {
	Total    int // Records seen.
	Skipped  int // Missing sentence or lemma.
	Failed   int // Tagging failed.
	Rejected int // Target never used as a verb.
	Retained int
}

// Filter analyzes every record and keeps those whose target lemma occurs in
// verb use, in input order.
//
// Records without a sentence or lemma are skipped silently. A record whose
// analysis fails is logged and skipped; only a cancelled ctx stops the pass.
func (a *Analyzer) Filter(ctx context.Context, records []SentenceRecord) ([]FilteredRecord, FilterReport, error) {
	report := FilterReport{Total: len(records)}
	kept := make([]FilteredRecord, 0, len(records))

	for i, rec := range records {
		if err := ctx.Err(); err != nil {
			report.Retained = len(kept)
			return kept, report, err
		}
		a.reportProgress(i, len(records))

		if !rec.Complete() {
			report.Skipped++
			continue
		}

		res, err := a.Analyze(ctx, rec.Sentence, rec.Lemma)
		if err != nil {
			if ctx.Err() != nil {
				report.Retained = len(kept)
				return kept, report, ctx.Err()
			}
			report.Failed++
			a.logger.Warn().Err(err).
				Int("index", i+1).
				Str("lemma", rec.Lemma).
				Msg("analysis failed, record skipped")
			continue
		}
		if !res.IsValidVerbUsage {
			report.Rejected++
			continue
		}
		kept = append(kept, newFilteredRecord(i+1, rec, res))
	}
	a.reportProgress(len(records), len(records))

	report.Retained = len(kept)
	a.logger.Info().
		Int("total", report.Total).
		Int("retained", report.Retained).
		Int("rejected", report.Rejected).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Msg("corpus filtered")
	return kept, report, nil
}

func newFilteredRecord(index int, rec SentenceRecord, res *AnalysisResult) FilteredRecord {
	return FilteredRecord{
		Index:       index,
		Register:    Register(orNotAvailable(string(rec.Register))),
		Mood:        orNotAvailable(rec.Mood),
		Sentence:    rec.Sentence,
		TargetLemma: rec.Lemma,
		Source:      orNotAvailable(rec.Source),
		CEFRLevel:   orNotAvailable(rec.CEFRLevel),
		Analysis:    *res,
	}
}

// An Occurrence is a token of a retained sentence whose lemma matched a query.
type Occurrence struct {
	Index     int      `json:"index"`
	Sentence  string   `json:"sentence"`
	Register  Register `json:"register"`
	Mood      string   `json:"mood"`
	CEFRLevel string   `json:"cefr_level"`
	Token     string   `json:"token"`
	Tag       string   `json:"pos_tag"`
}

// LemmaOccurrences returns, for each record, the first token whose lemma
// equals lemma (case-insensitively), whatever its tag.
func LemmaOccurrences(records []FilteredRecord, lemma string) []Occurrence {
	want := strings.ToLower(strings.TrimSpace(lemma))
	var out []Occurrence
	for _, rec := range records {
		for _, tok := range rec.Analysis.Lemmatized {
			if strings.ToLower(tok.Lemma) != want {
				continue
			}
			out = append(out, Occurrence{
				Index:     rec.Index,
				Sentence:  rec.Sentence,
				Register:  rec.Register,
				Mood:      rec.Mood,
				CEFRLevel: rec.CEFRLevel,
				Token:     tok.Text,
				Tag:       tok.Tag,
			})
			break
		}
	}
	return out
}
