package embedding

import (
	"strings"
	"unicode"
)

// tokenize lower-cases and splits on non-letter/non-digit runes. It is
// intentionally simple: the normalization pipeline (pkg/normalize) has
// already canonicalized the text before it reaches an embedding provider.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func termCounts(tokens []string) map[string]int {
	counts := make(map[string]int, len(tokens))
	for _, t := range tokens {
		counts[t]++
	}
	return counts
}
