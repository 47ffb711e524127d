package pragma

import (
	"encoding/json"
	"strings"
	"sync"
)

// A Token represents an individual token of text such as a word or punctuation
// symbol.
type Token struct {
	Tag   string // The token's part-of-speech tag.
	Text  string // The token's actual content.
	Start int    // Start position in original text
	End   int    // End position in original text
}

// A Sentence represents a segmented portion of text.
type Sentence struct {
	Text  string // The sentence's text.
	Start int    // Start position in original text
	End   int    // End position in original text
}

// String returns the text content of the sentence
func (s Sentence) String() string {
	return s.Text
}

// TokenPool manages a pool of Token objects to reduce GC pressure
type TokenPool struct {
	pool sync.Pool
}

// NewTokenPool creates a new token pool
func NewTokenPool() *TokenPool {
	return &TokenPool{
		pool: sync.Pool{
			New: func() interface{} {
				return &Token{}
			},
		},
	}
}

// Get retrieves a token from the pool
func (tp *TokenPool) Get() *Token {
	return tp.pool.Get().(*Token)
}

// Put returns a token to the pool
func (tp *TokenPool) Put(token *Token) {
	*token = Token{}
	tp.pool.Put(token)
}

// NotAvailable fills optional metadata that the input record did not carry.
const NotAvailable = "N/A"

// Register is the social register a sentence was written for.
type Register string

const (
	RegisterHigh    Register = "HIGH"    // Formal, polite
	RegisterNeutral Register = "NEUTRAL" // Instructions, directions
	RegisterLow     Register = "LOW"     // Informal, casual
)

// RegisterOrder is the order registers are reported in, from formal to casual.
var RegisterOrder = []Register{RegisterHigh, RegisterNeutral, RegisterLow}

// ParseRegister upper-cases and trims s. Unknown registers are kept as given.
func ParseRegister(s string) Register {
	return Register(strings.ToUpper(strings.TrimSpace(s)))
}

// UnmarshalJSON normalizes the register on decode.
func (r *Register) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	*r = ParseRegister(s)
	return nil
}

// A SentenceRecord is one input unit produced by the generation stage.
type SentenceRecord struct {
	Sentence  string   `json:"sentence"`
	Lemma     string   `json:"lemma"`
	Register  Register `json:"register,omitempty"`
	Mood      string   `json:"mood,omitempty"`
	Source    string   `json:"Source,omitempty"`
	CEFRLevel string   `json:"CEFR_Target,omitempty"`
}

// Complete reports whether the record carries both a sentence and a target lemma.
func (r SentenceRecord) Complete() bool {
	return strings.TrimSpace(r.Sentence) != "" && strings.TrimSpace(r.Lemma) != ""
}

// A TaggedToken is a surface form with its part-of-speech tag.
type TaggedToken struct {
	Text string `json:"token"`
	Tag  string `json:"pos"`
}

// A LemmatizedToken extends a TaggedToken with its base form.
type LemmatizedToken struct {
	Text  string `json:"token"`
	Tag   string `json:"pos"`
	Lemma string `json:"lemma"`
}

// AnalysisResult is the per-sentence outcome of tagging, lemmatizing and
// matching a target lemma.
//
// IsValidVerbUsage is true iff some token's lemma equals the target lemma and
// that token carries a verb tag. ContextWindow is only populated when it is.
type AnalysisResult struct {
	Tokens           []string          `json:"tokens"`
	Tagged           []TaggedToken     `json:"pos_tags"`
	Lemmatized       []LemmatizedToken `json:"lemmatized"`
	IsValidVerbUsage bool              `json:"is_valid_verb"`
	MatchIndex       int               `json:"match_index"`
	ContextWindow    []string          `json:"context_window"`
	ContractionCount int               `json:"num_contractions"`
	TokenCount       int               `json:"token_count"`
}

// A FilteredRecord is an input record whose target lemma was found in verb
// use, joined with its analysis. Index is the 1-based position of the record
// in the input collection.
type FilteredRecord struct {
	Index       int            `json:"index"`
	Register    Register       `json:"register"`
	Mood        string         `json:"mood"`
	Sentence    string         `json:"sentence"`
	TargetLemma string         `json:"target_lemma"`
	Source      string         `json:"source"`
	CEFRLevel   string         `json:"cefr_level"`
	Analysis    AnalysisResult `json:"analysis"`
}

// A UsageRow is one classified sentence in the tabular export.
type UsageRow struct {
	Lemma         string
	Register      Register
	Mood          string
	UsageCategory string
	FullSentence  string
}

// Usage categories assigned by the classification pass.
const (
	UsageLiteral   = "LITERAL"
	UsageIdiomatic = "IDIOMATIC"
	UsageError     = "ERROR"
)

// DefaultLabels are the categories a classifier may return.
var DefaultLabels = []string{UsageLiteral, UsageIdiomatic}

func orNotAvailable(s string) string {
	if strings.TrimSpace(s) == "" {
		return NotAvailable
	}
	return s
}
