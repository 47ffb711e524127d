package pragma

import (
	"fmt"
	"strings"
	"unicode"

	prose "github.com/jdkato/prose/v2"
)

// A Tagger splits a sentence into tokens and assigns each a Penn Treebank
// part-of-speech tag.
//
// Implementations must be deterministic for a given input, keep token order,
// emit punctuation as separate tokens and split contractions into
// apostrophe-bearing fragments ("do", "n't"). They must not call the network.
type Tagger interface {
	Tag(sentence string) ([]TaggedToken, error)
}

// PerceptronTagger tags with prose's averaged perceptron model.
type PerceptronTagger struct {
	model *prose.Model
}

// NewPerceptronTagger loads the perceptron model once for reuse across sentences.
func NewPerceptronTagger() *PerceptronTagger {
	return &PerceptronTagger{model: prose.ModelFromData("pragma")}
}

// Tag implements Tagger.
func (p *PerceptronTagger) Tag(sentence string) ([]TaggedToken, error) {
	doc, err := prose.NewDocument(sentence,
		prose.WithSegmentation(false),
		prose.WithExtraction(false),
		prose.UsingModel(p.model))
	if err != nil {
		return nil, fmt.Errorf("tag sentence: %w", err)
	}

	toks := doc.Tokens()
	out := make([]TaggedToken, 0, len(toks))
	for _, tok := range toks {
		out = append(out, TaggedToken{Text: tok.Text, Tag: tok.Tag})
	}
	return out, nil
}

// RuleTagger assigns tags from a closed-class word list, the model's
// irregular verb forms, left-context rules and suffix heuristics. It is
// fully deterministic and needs no trained weights.
type RuleTagger struct {
	tokenizer Tokenizer
	pool      *TokenPool // Set when the tagger owns its tokenizer.
	irregular map[string]string
	bases     map[string]struct{}
}

// NewRuleTagger returns a RuleTagger over tokenizer and model. Nil arguments
// select the defaults; the default tokenizer draws its tokens from a pool the
// tagger refills after every sentence.
func NewRuleTagger(tokenizer Tokenizer, model *Model) *RuleTagger {
	var pool *TokenPool
	if tokenizer == nil {
		pool = NewTokenPool()
		tokenizer = NewIterTokenizer(UsingTokenPool(pool))
	}
	if model == nil {
		model = DefaultModel()
	}
	r := &RuleTagger{
		tokenizer: tokenizer,
		pool:      pool,
		irregular: model.IrregularVerbs(),
		bases:     make(map[string]struct{}),
	}
	for _, base := range r.irregular {
		r.bases[base] = struct{}{}
	}
	return r
}

// Tag implements Tagger.
func (r *RuleTagger) Tag(sentence string) ([]TaggedToken, error) {
	toks := r.tokenizer.Tokenize(sentence)
	out := make([]TaggedToken, 0, len(toks))

	var prev TaggedToken
	for i, tok := range toks {
		tagged := TaggedToken{Text: tok.Text, Tag: r.tagWord(tok.Text, prev, i == 0)}
		out = append(out, tagged)
		prev = tagged
	}
	if r.pool != nil {
		for _, tok := range toks {
			r.pool.Put(tok)
		}
	}
	return out, nil
}

func (r *RuleTagger) tagWord(word string, prev TaggedToken, first bool) string {
	if tag, ok := punctTag(word); ok {
		return tag
	}
	lower := strings.ToLower(word)
	prevWord := strings.ToLower(prev.Text)

	if lower == "'s" {
		if strings.HasPrefix(prev.Tag, "NN") {
			return "POS"
		}
		return "VBZ"
	}
	if tag, ok := closedClass[lower]; ok {
		return tag
	}
	if isNumber(word) {
		return "CD"
	}
	if _, ok := r.bases[lower]; ok && first {
		// Sentence-initial base verb: an imperative.
		return "VB"
	}
	if !first && unicode.IsUpper([]rune(word)[0]) {
		return "NNP"
	}

	nominal := nominalContext[prev.Tag]
	_, irregular := r.irregular[lower]
	_, adjective := commonAdjectives[lower]
	_, isBase := r.bases[lower]

	switch {
	case adjective && !verbContext[prev.Tag]:
		return "JJ"
	case auxiliaries[prevWord] && strings.HasSuffix(lower, "ing"):
		return "VBG"
	case auxiliaries[prevWord] && (irregular || isBase || hasAnySuffix(lower, participleSuffixes)):
		return "VBN"
	case irregular && nominal:
		return "NN"
	case irregular:
		return "VBD"
	case verbContext[prev.Tag] || prevWord == "n't" || prevWord == "not":
		return "VB"
	case nominal:
		return pluralize(lower)
	case subjectContext[prev.Tag]:
		switch {
		case strings.HasSuffix(lower, "ed"):
			return "VBD"
		case strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss"):
			return "VBZ"
		}
		return "VBP"
	}
	return suffixTag(lower)
}

func suffixTag(lower string) string {
	switch {
	case strings.HasSuffix(lower, "ing"):
		return "VBG"
	case strings.HasSuffix(lower, "ed"):
		return "VBD"
	case strings.HasSuffix(lower, "ly"):
		return "RB"
	case hasAnySuffix(lower, adjectiveSuffixes):
		return "JJ"
	}
	return pluralize(lower)
}

func pluralize(lower string) string {
	if strings.HasSuffix(lower, "s") && !strings.HasSuffix(lower, "ss") && len(lower) > 3 {
		return "NNS"
	}
	return "NN"
}

func punctTag(word string) (string, bool) {
	switch word {
	case ".", "!", "?":
		return ".", true
	case ",", ":", ";", "(", ")", "$", "#":
		return word, true
	case `"`, "``":
		return "``", true
	case "'", "''":
		return "''", true
	case "-", "--", "...":
		return ":", true
	}
	for _, r := range word {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return "", false
		}
	}
	return "SYM", true
}

func isNumber(word string) bool {
	digits := 0
	for _, r := range word {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '.' || r == ',':
		default:
			return false
		}
	}
	return digits > 0
}

var participleSuffixes = []string{"ed", "en"}

var adjectiveSuffixes = []string{"ous", "ful", "able", "ible", "ive", "less", "ical", "ish"}

// Tags after which an open-class word is read as a noun.
var nominalContext = map[string]bool{"DT": true, "JJ": true, "JJR": true, "JJS": true, "PRP$": true, "POS": true, "CD": true, "IN": true}

// Tags after which an open-class word is read as a base verb.
var verbContext = map[string]bool{"TO": true, "MD": true}

// Tags after which an open-class word is read as a finite verb.
var subjectContext = map[string]bool{"PRP": true, "WP": true, "NNP": true}

// Auxiliaries followed by a participle.
var auxiliaries = map[string]bool{
	"has": true, "have": true, "had": true, "'ve": true, "having": true,
	"is": true, "are": true, "was": true, "were": true, "be": true, "been": true,
	"being": true, "am": true, "'m": true, "'re": true,
}

var commonAdjectives = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`bad big black blue bright busy cheap clean clear cold cool dark dead
		deep dry early easy empty fast fat fine free fresh full funny good great green happy hard heavy
		high hot huge important large late lazy little long loud low new nice old other poor quick quiet
		ready real red rich right sad safe short sick simple slow small soft strong sure sweet tall thin
		tired true warm weak wet white wide wild wise wrong young better best worse worst`) {
		commonAdjectives[w] = struct{}{}
	}
}

var closedClass = map[string]string{
	"a": "DT", "an": "DT", "the": "DT", "this": "DT", "that": "DT", "these": "DT", "those": "DT",
	"every": "DT", "each": "DT", "some": "DT", "any": "DT", "no": "DT", "all": "DT", "another": "DT",
	"my": "PRP$", "your": "PRP$", "his": "PRP$", "her": "PRP$", "its": "PRP$", "our": "PRP$", "their": "PRP$",
	"i": "PRP", "you": "PRP", "he": "PRP", "she": "PRP", "it": "PRP", "we": "PRP", "they": "PRP",
	"me": "PRP", "him": "PRP", "us": "PRP", "them": "PRP",
	"who": "WP", "what": "WP", "which": "WDT", "where": "WRB", "when": "WRB", "why": "WRB", "how": "WRB",
	"and": "CC", "or": "CC", "but": "CC", "nor": "CC",
	"to": "TO",
	"in": "IN", "on": "IN", "at": "IN", "of": "IN", "for": "IN", "with": "IN", "from": "IN", "by": "IN",
	"about": "IN", "into": "IN", "over": "IN", "after": "IN", "before": "IN", "under": "IN", "during": "IN",
	"through": "IN", "if": "IN", "because": "IN", "while": "IN", "than": "IN", "around": "IN",
	"can": "MD", "could": "MD", "will": "MD", "would": "MD", "shall": "MD", "should": "MD",
	"may": "MD", "might": "MD", "must": "MD", "ca": "MD", "wo": "MD", "'ll": "MD", "'d": "MD",
	"not": "RB", "n't": "RB", "very": "RB", "too": "RB", "also": "RB", "never": "RB", "always": "RB",
	"often": "RB", "now": "RB", "then": "RB", "here": "RB", "there": "RB", "soon": "RB", "again": "RB",
	"just": "RB", "still": "RB", "yesterday": "NN", "today": "NN", "tomorrow": "NN", "please": "UH",
	"yes": "UH", "hello": "UH", "oh": "UH",
	"is": "VBZ", "are": "VBP", "am": "VBP", "'m": "VBP", "'re": "VBP", "was": "VBD", "were": "VBD",
	"be": "VB", "been": "VBN", "being": "VBG",
	"has": "VBZ", "have": "VBP", "'ve": "VBP", "had": "VBD",
	"does": "VBZ", "do": "VBP", "did": "VBD",
}
