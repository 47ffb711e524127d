package pragma

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// A TokenTester reports whether a token must be kept whole.
type TokenTester func(string) bool

// A Tokenizer splits a sentence into word and punctuation tokens, tracking
// byte offsets into the sanitized text.
type Tokenizer interface {
	Tokenize(string) []*Token
}

// iterTokenizer splits a sentence into words.
//
// Whitespace-delimited spans are peeled iteratively: leading prefixes
// ("$100" -> "$", "100"), clitics ("don't" -> "do", "n't") and trailing
// punctuation ("well)" -> "well", ")"). Emoticons and abbreviations such
// as "U.S." are kept whole.
type iterTokenizer struct {
	specialRE      *regexp.Regexp
	sanitizer      *strings.Replacer
	contractions   []string
	suffixes       []string
	prefixes       []string
	emoticons      map[string]int
	isUnsplittable TokenTester
	tokenPool      *TokenPool
}

// TokenizerOptFunc configures the iterative tokenizer.
type TokenizerOptFunc func(*iterTokenizer)

// UsingIsUnsplittable gives a function that tests whether a token is splittable or not.
func UsingIsUnsplittable(x TokenTester) TokenizerOptFunc {
	return func(tokenizer *iterTokenizer) {
		tokenizer.isUnsplittable = x
	}
}

// UsingSanitizer replaces the character normalization applied before splitting.
func UsingSanitizer(x *strings.Replacer) TokenizerOptFunc {
	return func(tokenizer *iterTokenizer) {
		tokenizer.sanitizer = x
	}
}

// UsingContractions replaces the clitics split off the end of a word.
func UsingContractions(x []string) TokenizerOptFunc {
	return func(tokenizer *iterTokenizer) {
		tokenizer.contractions = x
	}
}

// UsingTokenPool draws tokens from pool. The caller returns them with Put
// once it is done with them.
func UsingTokenPool(pool *TokenPool) TokenizerOptFunc {
	return func(tokenizer *iterTokenizer) {
		tokenizer.tokenPool = pool
	}
}

// NewIterTokenizer returns the default iterative tokenizer.
func NewIterTokenizer(opts ...TokenizerOptFunc) Tokenizer {
	tok := &iterTokenizer{
		specialRE:      internalRE,
		sanitizer:      sanitizer,
		contractions:   contractions,
		suffixes:       suffixes,
		prefixes:       prefixes,
		emoticons:      emoticons,
		isUnsplittable: func(string) bool { return false },
	}
	for _, applyOpt := range opts {
		applyOpt(tok)
	}
	return tok
}

func (t *iterTokenizer) isSpecial(token string) bool {
	_, found := t.emoticons[token]
	return found || t.specialRE.MatchString(token) || t.isUnsplittable(token)
}

func (t *iterTokenizer) emit(s string, start int, toks []*Token) []*Token {
	if strings.TrimSpace(s) == "" {
		return toks
	}
	token := t.newToken()
	token.Text = s
	token.Start = start
	token.End = start + len(s)
	return append(toks, token)
}

func (t *iterTokenizer) newToken() *Token {
	if t.tokenPool == nil {
		return new(Token)
	}
	return t.tokenPool.Get()
}

// split peels one whitespace-delimited span into tokens.
func (t *iterTokenizer) split(span string, offset int) []*Token {
	var tokens, suffs []*Token

	last := 0
	for span != "" && utf8.RuneCountInString(span) != last {
		if t.isSpecial(span) {
			tokens = t.emit(span, offset, tokens)
			break
		}
		last = utf8.RuneCountInString(span)
		lower := strings.ToLower(span)

		if hasAnyPrefix(span, t.prefixes) {
			tokens = t.emit(span[:1], offset, tokens)
			span = span[1:]
			offset++
		} else if idx := hasAnyIndex(lower, t.contractions); idx > 0 {
			tokens = t.emit(span[:idx], offset, tokens)
			offset += idx
			span = span[idx:]
		} else if hasAnySuffix(span, t.suffixes) {
			end := offset + len(span) - 1
			suffs = append([]*Token{{Text: span[len(span)-1:], Start: end, End: end + 1}}, suffs...)
			span = span[:len(span)-1]
		} else {
			tokens = t.emit(span, offset, tokens)
			break
		}
	}

	return append(tokens, suffs...)
}

// Tokenize splits text into a slice of tokens with offsets into the sanitized text.
func (t *iterTokenizer) Tokenize(text string) []*Token {
	var tokens []*Token

	clean := t.sanitizer.Replace(text)
	start := -1
	for i, r := range clean {
		if unicode.IsSpace(r) {
			if start >= 0 {
				tokens = append(tokens, t.split(clean[start:i], start)...)
				start = -1
			}
			continue
		}
		if start < 0 {
			start = i
		}
	}
	if start >= 0 {
		tokens = append(tokens, t.split(clean[start:], start)...)
	}
	return tokens
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if len(s) > len(p) && strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}

func hasAnySuffix(s string, suffixes []string) bool {
	for _, x := range suffixes {
		if len(s) > len(x) && strings.HasSuffix(s, x) {
			return true
		}
	}
	return false
}

// hasAnyIndex returns where the first matching clitic starts in s, or -1.
// A clitic must end the span or be followed only by trailing punctuation.
func hasAnyIndex(s string, clitics []string) int {
	trimmed := strings.TrimRightFunc(s, func(r rune) bool {
		return unicode.IsPunct(r) && r != '\''
	})
	for _, c := range clitics {
		if len(trimmed) > len(c) && strings.HasSuffix(trimmed, c) {
			return len(trimmed) - len(c)
		}
	}
	return -1
}

var internalRE = regexp.MustCompile(`^(?:[A-Za-z]\.){2,}$|^[A-Z][a-z]{1,2}\.$`)
var sanitizer = strings.NewReplacer(
	"“", `"`,
	"”", `"`,
	"‘", "'",
	"’", "'",
	"&rsquo;", "'")
var contractions = []string{"'ll", "'s", "'re", "'m", "'ve", "'d", "n't"}
var suffixes = []string{",", ")", `"`, "]", "!", ";", ".", "?", ":", "'"}
var prefixes = []string{"$", "(", `"`, "["}
var emoticons = map[string]int{
	"(-8":     1,
	"(-;":     1,
	"(:":      1,
	":(":      1,
	":)":      1,
	":-)":     1,
	":-(":     1,
	":-/":     1,
	":-p":     1,
	":-|":     1,
	":P":      1,
	":o":      1,
	";)":      1,
	";-)":     1,
	"=)":      1,
	"=D":      1,
	"xD":      1,
	"^_^":     1,
	"o_O":     1,
	"¯\\(ツ)/¯": 1,
}
