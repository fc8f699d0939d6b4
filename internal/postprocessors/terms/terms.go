// Package terms extracts the salient words of a text. It backs the lexical
// reranker and the deterministic research reformulator.
package terms

import (
	"strings"
	"unicode"
)

var stopwords = map[string]struct{}{}

func init() {
	for _, w := range strings.Fields(`a an and are as at be but by can do does for from has have how i if in into
		is it its me my no not of on or our so than that the their them then there these they this to
		was we were what when where which who why will with you your`) {
		stopwords[w] = struct{}{}
	}
}

// Extract returns the distinct lowercased, stopword-filtered terms of text in
// first-seen order. Plural "s" suffixes are folded.
func Extract(text string) []string {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	seen := make(map[string]struct{}, len(words))
	out := make([]string, 0, len(words))
	for _, w := range words {
		if _, stop := stopwords[w]; stop {
			continue
		}
		if len(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			w = strings.TrimSuffix(w, "s")
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}
