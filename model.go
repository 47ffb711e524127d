package pragma

import (
	"bufio"
	"embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

//go:embed data
var assets embed.FS

// Files making up a Model directory.
const (
	lexiconFile = "lemmas.txt"
)

var exceptionFiles = map[Category]string{
	Noun:      "noun.exc",
	Verb:      "verb.exc",
	Adjective: "adj.exc",
	Adverb:    "adv.exc",
}

// A Model holds the morphological data shared by the lemmatizer and the rule
// tagger: per-category exception tables (irregular form to base forms) and a
// lexicon of known base forms.
type Model struct {
	Name string

	exceptions map[Category]map[string][]string
	lexicon    *WordList
}

var (
	embeddedOnce  sync.Once
	embeddedModel *Model
)

// DefaultModel returns the model compiled into the binary.
func DefaultModel() *Model {
	embeddedOnce.Do(func() {
		sub, err := fs.Sub(assets, "data")
		checkError(err)
		embeddedModel, err = ModelFromFS("default", sub)
		checkError(err)
	})
	return embeddedModel
}

// ModelFromDisk loads a Model from the user-provided directory.
func ModelFromDisk(path string) (*Model, error) {
	return ModelFromFS(filepath.Base(path), os.DirFS(path))
}

// ModelFromFS loads a Model from the root of filesys. Every file is optional;
// a missing exception table leaves that category without exceptions.
func ModelFromFS(name string, filesys fs.FS) (*Model, error) {
	m := &Model{
		Name:       name,
		exceptions: make(map[Category]map[string][]string, len(exceptionFiles)),
		lexicon:    NewWordList(),
	}

	for cat, file := range exceptionFiles {
		table, err := readExceptions(filesys, file)
		if err != nil {
			return nil, fmt.Errorf("model %s: %w", name, err)
		}
		m.exceptions[cat] = table
	}

	f, err := filesys.Open(lexiconFile)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("model %s: open %s: %w", name, lexiconFile, err)
	default:
		defer f.Close()
		m.lexicon, err = ReadWordList(f)
		if err != nil {
			return nil, fmt.Errorf("model %s: read %s: %w", name, lexiconFile, err)
		}
	}

	// Exception targets are base forms by definition.
	for _, table := range m.exceptions {
		for _, bases := range table {
			m.lexicon.Add(bases...)
		}
	}
	return m, nil
}

// Exceptions returns the base forms listed for an irregular word, if any.
func (m *Model) Exceptions(word string, cat Category) []string {
	if m == nil {
		return nil
	}
	return m.exceptions[cat][word]
}

// Lexicon returns the model's base-form word list.
func (m *Model) Lexicon() *WordList {
	if m == nil {
		return nil
	}
	return m.lexicon
}

// IrregularVerbs returns every irregular verb form the model knows, mapped to
// its first base form.
func (m *Model) IrregularVerbs() map[string]string {
	out := make(map[string]string)
	if m == nil {
		return out
	}
	for form, bases := range m.exceptions[Verb] {
		if strings.HasPrefix(form, "'") || len(bases) == 0 {
			continue
		}
		out[form] = bases[0]
	}
	return out
}

func readExceptions(filesys fs.FS, name string) (map[string][]string, error) {
	table := make(map[string][]string)
	f, err := filesys.Open(name)
	if errors.Is(err, fs.ErrNotExist) {
		return table, nil
	} else if err != nil {
		return nil, fmt.Errorf("open %s: %w", name, err)
	}
	defer f.Close()

	if err := parseExceptions(f, table); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return table, nil
}

// parseExceptions reads WordNet style exception lines: an inflected form
// followed by one or more base forms.
func parseExceptions(r io.Reader, table map[string][]string) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(strings.ToLower(line))
		if len(fields) < 2 {
			continue
		}
		table[fields[0]] = append(table[fields[0]], fields[1:]...)
	}
	return scanner.Err()
}

func checkError(err error) {
	if err != nil {
		panic(err)
	}
}
