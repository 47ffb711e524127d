package pragma

import (
	"sort"
	"strings"
	"unicode"

	"github.com/bbalet/stopwords"
	"gonum.org/v1/gonum/stat"
)

// A TagCount is one row of the tag frequency table.
type TagCount struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// CorpusStatistics summarizes a set of retained records. It is always
// derived from the records and never stored on its own.
type CorpusStatistics struct {
	TotalSentences       int            `json:"total_sentences"`
	TotalTokens          int            `json:"total_tokens"`
	AvgTokensPerSentence float64        `json:"avg_tokens_per_sentence"`
	StdDevTokens         float64        `json:"stddev_tokens_per_sentence"`
	UniqueTags           int            `json:"unique_pos_tags"`
	TagFrequency         map[string]int `json:"pos_tag_distribution"`
	TopTags              []TagCount     `json:"top_pos_tags"`
	RegisterFrequency    map[string]int `json:"register_distribution"`
	MoodFrequency        map[string]int `json:"mood_distribution"`
	CEFRFrequency        map[string]int `json:"cefr_distribution"`
	TotalContractions    int            `json:"total_contractions"`
	ContentTokenRatio    float64        `json:"content_token_ratio"`
}

// ComputeStatistics derives CorpusStatistics from records.
//
// Tags are counted once per token across all records, so the tag counts sum
// to TotalTokens. Register, mood and CEFR level are counted once per record.
// Averages are zero for an empty set.
func ComputeStatistics(records []FilteredRecord) CorpusStatistics {
	s := CorpusStatistics{
		TotalSentences:    len(records),
		TagFrequency:      make(map[string]int),
		RegisterFrequency: make(map[string]int),
		MoodFrequency:     make(map[string]int),
		CEFRFrequency:     make(map[string]int),
		TopTags:           []TagCount{},
	}
	if len(records) == 0 {
		return s
	}

	lengths := make([]float64, 0, len(records))
	words, content := 0, 0
	for _, rec := range records {
		for _, tok := range rec.Analysis.Tagged {
			s.TagFrequency[tok.Tag]++
			s.TotalTokens++
			if isWord(tok.Text) {
				words++
				if !isStopword(tok.Text) {
					content++
				}
			}
		}
		lengths = append(lengths, float64(len(rec.Analysis.Tagged)))
		s.TotalContractions += rec.Analysis.ContractionCount

		s.RegisterFrequency[string(rec.Register)]++
		s.MoodFrequency[rec.Mood]++
		s.CEFRFrequency[rec.CEFRLevel]++
	}

	s.AvgTokensPerSentence = float64(s.TotalTokens) / float64(len(records))
	if len(lengths) > 1 {
		_, s.StdDevTokens = stat.MeanStdDev(lengths, nil)
	}
	if words > 0 {
		s.ContentTokenRatio = float64(content) / float64(words)
	}

	s.UniqueTags = len(s.TagFrequency)
	for tag, n := range s.TagFrequency {
		s.TopTags = append(s.TopTags, TagCount{Tag: tag, Count: n})
	}
	sort.Slice(s.TopTags, func(i, j int) bool {
		if s.TopTags[i].Count != s.TopTags[j].Count {
			return s.TopTags[i].Count > s.TopTags[j].Count
		}
		return s.TopTags[i].Tag < s.TopTags[j].Tag
	})
	return s
}

func isWord(tok string) bool {
	for _, r := range tok {
		if unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

func isStopword(word string) bool {
	return strings.TrimSpace(stopwords.CleanString(strings.ToLower(word), "en", false)) == ""
}
