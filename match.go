package pragma

import "strings"

// DefaultWindowSize is the number of tokens kept after a match.
const DefaultWindowSize = 5

// A Match is the outcome of scanning a sentence for a target lemma in verb use.
type Match struct {
	Found  bool
	Index  int      // Token index of the match, -1 when not found.
	Window []string // Up to window surface forms after the match.
}

// MatchTarget finds the first token whose lemma equals target
// (case-insensitively) and whose tag marks it as a verb.
//
// Only the first qualifying token counts, even when the lemma recurs later in
// the sentence. Its context window holds the surface forms of the next
// window tokens, clipped at the end of the sentence.
func MatchTarget(tokens []LemmatizedToken, target string, window int) Match {
	if window < 0 {
		window = 0
	}
	want := strings.ToLower(strings.TrimSpace(target))

	for i, tok := range tokens {
		if strings.ToLower(tok.Lemma) != want || !IsVerbTag(tok.Tag) {
			continue
		}
		end := min(len(tokens), i+1+window)
		ctx := make([]string, 0, end-i-1)
		for _, next := range tokens[i+1 : end] {
			ctx = append(ctx, next.Text)
		}
		return Match{Found: true, Index: i, Window: ctx}
	}
	return Match{Index: -1, Window: []string{}}
}
