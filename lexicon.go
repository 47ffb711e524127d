package pragma

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"
)

// A Lexicon decides whether a word is a dictionary base form of the given
// category.
type Lexicon interface {
	IsLemma(word string, cat Category) bool
}

// A Resolver maps an inflected form directly to its base forms. The
// lemmatizer consults a Lexicon that also implements Resolver when its
// suffix rules find nothing.
type Resolver interface {
	Bases(word string) []string
}

// Lexicons accepts a word if any of its members does.
type Lexicons []Lexicon

// IsLemma implements Lexicon.
func (ls Lexicons) IsLemma(word string, cat Category) bool {
	for _, l := range ls {
		if l != nil && l.IsLemma(word, cat) {
			return true
		}
	}
	return false
}

// Bases implements Resolver over the members that resolve.
func (ls Lexicons) Bases(word string) []string {
	var out []string
	for _, l := range ls {
		if r, ok := l.(Resolver); ok {
			out = append(out, r.Bases(word)...)
		}
	}
	return out
}

// DefaultLexicon is the English dictionary together with m's own word list.
func DefaultLexicon(m *Model) Lexicons {
	return Lexicons{EnglishDictionary(), m.Lexicon()}
}

// WordList is a Lexicon backed by a set of lower-cased words. It ignores
// the category.
type WordList struct {
	words map[string]struct{}
}

// NewWordList returns a WordList holding words.
func NewWordList(words ...string) *WordList {
	wl := &WordList{words: make(map[string]struct{}, len(words))}
	wl.Add(words...)
	return wl
}

// ReadWordList reads one word per line. Blank lines and lines starting with
// '#' are ignored.
func ReadWordList(r io.Reader) (*WordList, error) {
	wl := NewWordList()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		wl.Add(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return wl, nil
}

// LoadWordList reads a word list from path.
func LoadWordList(path string) (*WordList, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open word list: %w", err)
	}
	defer f.Close()
	return ReadWordList(f)
}

// Add inserts words into the list.
func (wl *WordList) Add(words ...string) {
	for _, w := range words {
		w = strings.ToLower(strings.TrimSpace(w))
		if w != "" {
			wl.words[w] = struct{}{}
		}
	}
}

// IsLemma implements Lexicon.
func (wl *WordList) IsLemma(word string, _ Category) bool {
	return wl.Contains(word)
}

// Contains reports whether word is in the list.
func (wl *WordList) Contains(word string) bool {
	if wl == nil {
		return false
	}
	_, ok := wl.words[strings.ToLower(word)]
	return ok
}

// Len returns the number of distinct words.
func (wl *WordList) Len() int {
	if wl == nil {
		return 0
	}
	return len(wl.words)
}
