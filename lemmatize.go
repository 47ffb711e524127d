package pragma

import (
	"strings"
	"unicode/utf8"
)

// A Lemmatizer reduces a surface token to its dictionary base form. The
// category is a hint; None falls back to the noun paradigm, which may leave
// verb forms unreduced.
type Lemmatizer interface {
	Lemmatize(word string, cat Category) string
}

type detachment struct {
	suffix, replacement string
}

var detachments = map[Category][]detachment{
	Noun: {
		{"s", ""}, {"ses", "s"}, {"xes", "x"}, {"zes", "z"},
		{"ches", "ch"}, {"shes", "sh"}, {"men", "man"}, {"ies", "y"},
	},
	Verb: {
		{"s", ""}, {"ies", "y"}, {"es", "e"}, {"es", ""},
		{"ed", "e"}, {"ed", ""}, {"ing", "e"}, {"ing", ""},
	},
	Adjective: {
		{"er", ""}, {"est", ""}, {"er", "e"}, {"est", "e"},
	},
}

// MorphLemmatizer lemmatizes with exception tables, suffix detachment and a
// lexicon of base forms, in the manner of WordNet's morphy.
//
// Candidates are tried in order: the category's exception entries, the word
// itself, then each detachment rule (with doubled final consonants undone,
// e.g. running -> run). The first candidate the lexicon accepts for the
// category wins; exception entries are always accepted. Verbs and adjectives
// the rules cannot reduce are looked up in the lexicon's Resolver, if any.
// With no accepted candidate the lower-cased word is returned unchanged.
type MorphLemmatizer struct {
	model   *Model
	lexicon Lexicon
}

// LemmatizerOpt configures a MorphLemmatizer.
type LemmatizerOpt func(*MorphLemmatizer)

// UsingModel sets the exception tables (and, unless overridden, the word
// list joined to the English dictionary).
func UsingModel(m *Model) LemmatizerOpt {
	return func(l *MorphLemmatizer) {
		l.model = m
	}
}

// UsingLexicon replaces the lexicon consulted for candidates.
func UsingLexicon(lex Lexicon) LemmatizerOpt {
	return func(l *MorphLemmatizer) {
		l.lexicon = lex
	}
}

// NewMorphLemmatizer returns a lemmatizer over the default model and the
// English dictionary.
func NewMorphLemmatizer(opts ...LemmatizerOpt) *MorphLemmatizer {
	l := new(MorphLemmatizer)
	for _, applyOpt := range opts {
		applyOpt(l)
	}
	if l.model == nil {
		l.model = DefaultModel()
	}
	if l.lexicon == nil {
		l.lexicon = DefaultLexicon(l.model)
	}
	return l
}

// Lemmatize implements Lemmatizer.
func (l *MorphLemmatizer) Lemmatize(word string, cat Category) string {
	w := strings.ToLower(strings.TrimSpace(word))
	if w == "" {
		return w
	}
	if cat == None {
		cat = Noun
	}

	if bases := l.model.Exceptions(w, cat); len(bases) > 0 {
		return bases[0]
	}
	if l.lexicon.IsLemma(w, cat) {
		return w
	}
	for _, c := range candidates(w, cat) {
		if l.lexicon.IsLemma(c, cat) {
			return c
		}
	}

	if r, ok := l.lexicon.(Resolver); ok && (cat == Verb || cat == Adjective) {
		for _, b := range r.Bases(w) {
			if b != w && l.lexicon.IsLemma(b, cat) {
				return b
			}
		}
	}
	return w
}

// candidates applies every detachment rule for cat to w, in rule order. A
// silent e is restored first only after a consonant-vowel-consonant stem
// (hoping -> hope); otherwise the bare stem goes first (singing -> sing,
// not singe).
func candidates(w string, cat Category) []string {
	var out, late []string
	for _, d := range detachments[cat] {
		if !strings.HasSuffix(w, d.suffix) {
			continue
		}
		stem := w[:len(w)-len(d.suffix)]
		c := stem + d.replacement
		if utf8.RuneCountInString(c) < 2 || c == w {
			continue
		}
		if d.replacement == "e" && undoubles(d.suffix) && !endsCVC(stem) {
			late = append(late, c)
			continue
		}
		out = append(out, c)
		if d.replacement == "" && undoubles(d.suffix) {
			if u, ok := undouble(stem); ok {
				out = append(out, u)
			}
		}
	}
	return append(out, late...)
}

func isVowel(b byte) bool {
	return strings.IndexByte("aeiou", b) >= 0
}

// endsCVC reports a final consonant-vowel-consonant, as in hop or celebrat.
// Final w, x and y do not count.
func endsCVC(stem string) bool {
	n := len(stem)
	if n < 3 {
		return false
	}
	last := stem[n-1]
	return !isVowel(stem[n-3]) && isVowel(stem[n-2]) && !isVowel(last) && strings.IndexByte("wxy", last) < 0
}

func undoubles(suffix string) bool {
	switch suffix {
	case "ing", "ed", "er", "est":
		return true
	}
	return false
}

// undouble drops a doubled final consonant: stopp -> stop, bigg -> big.
func undouble(stem string) (string, bool) {
	n := len(stem)
	if n < 3 {
		return "", false
	}
	last := stem[n-1]
	if last != stem[n-2] || strings.IndexByte("aeiouy", last) >= 0 {
		return "", false
	}
	return stem[:n-1], true
}
