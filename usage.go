package pragma

import (
	"context"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// Record returns the input record a FilteredRecord was built from.
func (f FilteredRecord) Record() SentenceRecord {
	return SentenceRecord{
		Sentence:  f.Sentence,
		Lemma:     f.TargetLemma,
		Register:  f.Register,
		Mood:      f.Mood,
		Source:    f.Source,
		CEFRLevel: f.CEFRLevel,
	}
}

// UsageReport counts the work done by a UsageRunner.
type UsageReport struct {
	Lemmas   int
	Chunks   int
	Retried  int // Chunks that needed the second attempt.
	Degraded int // Chunks marked ERROR.
	Skipped  int // Records without sentence or lemma.
}

// A UsageRunner classifies a corpus lemma by lemma in fixed-size chunks.
type UsageRunner struct {
	validator *BatchValidator
}

// NewUsageRunner returns a runner over v; chunk size and call delay come
// from v's config.
func NewUsageRunner(v *BatchValidator) *UsageRunner {
	return &UsageRunner{validator: v}
}

// Run groups records by lemma (lemmas in sorted order, records in input
// order), tags each chunk and returns one row per record. The call delay is
// observed after every chunk. Failed chunks yield ERROR rows; only a
// cancelled ctx ends the run early.
func (r *UsageRunner) Run(ctx context.Context, records []SentenceRecord) ([]UsageRow, UsageReport, error) {
	v := r.validator
	var report UsageReport

	groups := make(map[string][]SentenceRecord)
	for _, rec := range records {
		if !rec.Complete() {
			report.Skipped++
			continue
		}
		groups[rec.Lemma] = append(groups[rec.Lemma], rec)
	}
	lemmas := make([]string, 0, len(groups))
	for l := range groups {
		lemmas = append(lemmas, l)
	}
	sort.Strings(lemmas)
	report.Lemmas = len(lemmas)

	rows := make([]UsageRow, 0, len(records))
	for i, lemma := range lemmas {
		group := groups[lemma]
		v.logger.Info().
			Int("word", i+1).
			Int("words", len(lemmas)).
			Str("lemma", lemma).
			Int("sentences", len(group)).
			Msg("classifying")

		for _, chunk := range Chunk(group, v.cfg.ChunkSize) {
			if err := ctx.Err(); err != nil {
				return rows, report, err
			}

			sentences := make([]string, len(chunk))
			for j, rec := range chunk {
				sentences[j] = rec.Sentence
			}
			res := v.TagChunk(ctx, lemma, sentences)
			report.Chunks++
			if res.Attempts > 1 {
				report.Retried++
			}
			if res.Degraded {
				report.Degraded++
			}

			for j, rec := range chunk {
				rows = append(rows, UsageRow{
					Lemma:         rec.Lemma,
					Register:      Register(orNotAvailable(string(rec.Register))),
					Mood:          orNotAvailable(rec.Mood),
					UsageCategory: res.Tags[j],
					FullSentence:  rec.Sentence,
				})
			}

			if err := v.sleep(ctx, v.cfg.CallDelay); err != nil {
				return rows, report, err
			}
		}
	}
	return rows, report, nil
}

// UsageSummary is a Register by Usage_Category cross-tabulation of
// classified rows.
type UsageSummary struct {
	Registers      []Register                      `json:"registers"`
	Categories     []string                        `json:"categories"`
	Counts         map[Register]map[string]int     `json:"counts"`
	Proportions    map[Register]map[string]float64 `json:"proportions"`
	CategoryCounts map[string]int                  `json:"category_counts"`
	// IdiomaticRatio is the share of IDIOMATIC rows per lemma and register.
	IdiomaticRatio map[string]map[Register]float64 `json:"idiomatic_ratio"`
}

// SummarizeUsage cross-tabulates rows. Registers are listed HIGH, NEUTRAL,
// LOW, followed by any others in sorted order; only registers present in
// rows appear.
func SummarizeUsage(rows []UsageRow) UsageSummary {
	s := UsageSummary{
		Counts:         make(map[Register]map[string]int),
		Proportions:    make(map[Register]map[string]float64),
		CategoryCounts: make(map[string]int),
		IdiomaticRatio: make(map[string]map[Register]float64),
	}

	type cell struct {
		lemma string
		reg   Register
	}
	perLemma := make(map[cell][2]int) // idiomatic, total

	for _, row := range rows {
		reg := ParseRegister(string(row.Register))
		if s.Counts[reg] == nil {
			s.Counts[reg] = make(map[string]int)
		}
		s.Counts[reg][row.UsageCategory]++
		s.CategoryCounts[row.UsageCategory]++

		c := cell{row.Lemma, reg}
		n := perLemma[c]
		if row.UsageCategory == UsageIdiomatic {
			n[0]++
		}
		n[1]++
		perLemma[c] = n
	}

	for cat := range s.CategoryCounts {
		s.Categories = append(s.Categories, cat)
	}
	sort.Strings(s.Categories)
	s.Registers = orderRegisters(s.Counts)

	for _, reg := range s.Registers {
		row := make([]float64, len(s.Categories))
		for i, cat := range s.Categories {
			row[i] = float64(s.Counts[reg][cat])
		}
		if total := floats.Sum(row); total > 0 {
			floats.Scale(1/total, row)
		}
		s.Proportions[reg] = make(map[string]float64, len(row))
		for i, cat := range s.Categories {
			s.Proportions[reg][cat] = row[i]
		}
	}

	for c, n := range perLemma {
		if s.IdiomaticRatio[c.lemma] == nil {
			s.IdiomaticRatio[c.lemma] = make(map[Register]float64)
		}
		s.IdiomaticRatio[c.lemma][c.reg] = float64(n[0]) / float64(n[1])
	}
	return s
}

func orderRegisters(counts map[Register]map[string]int) []Register {
	var out []Register
	known := make(map[Register]bool, len(RegisterOrder))
	for _, reg := range RegisterOrder {
		known[reg] = true
		if _, ok := counts[reg]; ok {
			out = append(out, reg)
		}
	}
	var rest []Register
	for reg := range counts {
		if !known[reg] {
			rest = append(rest, reg)
		}
	}
	sort.Slice(rest, func(i, j int) bool { return rest[i] < rest[j] })
	return append(out, rest...)
}
