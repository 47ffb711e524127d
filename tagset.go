package pragma

import "strings"

// A Category is the coarse lexical class used to pick an inflectional
// paradigm when lemmatizing.
type Category int

const (
	None Category = iota
	Adjective
	Verb
	Noun
	Adverb
)

var categoryNames = [...]string{"NONE", "ADJECTIVE", "VERB", "NOUN", "ADVERB"}

func (c Category) String() string {
	if c < None || int(c) >= len(categoryNames) {
		return categoryNames[None]
	}
	return categoryNames[c]
}

// NormalizeTag maps a Penn Treebank tag to its coarse category by its first
// character: J adjective, V verb, N noun, R adverb. Anything else is None.
func NormalizeTag(tag string) Category {
	if tag == "" {
		return None
	}
	switch tag[0] {
	case 'J':
		return Adjective
	case 'V':
		return Verb
	case 'N':
		return Noun
	case 'R':
		return Adverb
	}
	return None
}

// IsVerbTag reports whether tag denotes verb usage (VB, VBD, VBG, VBN, VBP, VBZ).
func IsVerbTag(tag string) bool {
	return strings.HasPrefix(tag, "V")
}
