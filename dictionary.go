package pragma

import (
	"bufio"
	"bytes"
	"fmt"
	"strings"
	"sync"

	"github.com/aaaton/golem/v4"
	"github.com/aaaton/golem/v4/dicts/en"
)

// Dictionary is a Lexicon over a golem language pack: every base form of the
// pack, with the bases that inflect like verbs (they list an -ing or -ed
// form) kept apart so that nouns such as "meeting" are not taken for verbs.
//
// It also implements Resolver, mapping irregular forms the exception tables
// miss (forsook, outran) to their bases.
type Dictionary struct {
	mu     sync.Mutex // golem sorts its result slices in place
	golem  *golem.Lemmatizer
	bases  map[string]struct{}
	verbal map[string]struct{}
}

var (
	enDictOnce sync.Once
	enDict     *Dictionary
)

// EnglishDictionary returns the dictionary built from golem's English pack.
func EnglishDictionary() *Dictionary {
	enDictOnce.Do(func() {
		var err error
		enDict, err = NewDictionary(en.New())
		checkError(err)
	})
	return enDict
}

// NewDictionary reads pack. Each line of a golem resource is a base form
// followed by its inflections, tab separated.
func NewDictionary(pack golem.LanguagePack) (*Dictionary, error) {
	lem, err := golem.New(pack)
	if err != nil {
		return nil, err
	}
	resource, err := pack.GetResource()
	if err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", pack.GetLocale(), err)
	}

	d := &Dictionary{
		golem:  lem,
		bases:  make(map[string]struct{}),
		verbal: make(map[string]struct{}),
	}
	scanner := bufio.NewScanner(bytes.NewReader(resource))
	for scanner.Scan() {
		forms := strings.Split(scanner.Text(), "\t")
		base := strings.ToLower(strings.TrimSpace(forms[0]))
		if base == "" {
			continue
		}
		d.bases[base] = struct{}{}
		for _, f := range forms[1:] {
			if strings.HasSuffix(f, "ing") || strings.HasSuffix(f, "ed") {
				d.verbal[base] = struct{}{}
				break
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("dictionary %s: %w", pack.GetLocale(), err)
	}
	return d, nil
}

// IsLemma implements Lexicon. Verbs are checked against the verbal bases
// only; every other category accepts any base form.
func (d *Dictionary) IsLemma(word string, cat Category) bool {
	word = strings.ToLower(word)
	if cat == Verb {
		_, ok := d.verbal[word]
		return ok
	}
	_, ok := d.bases[word]
	return ok
}

// Bases implements Resolver.
func (d *Dictionary) Bases(word string) []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.golem.InDict(word) {
		return nil
	}
	return append([]string(nil), d.golem.Lemmas(word)...)
}

// Len returns the number of base forms.
func (d *Dictionary) Len() int {
	return len(d.bases)
}
