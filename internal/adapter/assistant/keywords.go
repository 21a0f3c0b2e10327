package assistant

import (
	"sort"
	"strings"
	"unicode"
)

// minKeywordLen filters glue words without a stopword list.
const minKeywordLen = 5

// ExtractKeywords is the model-free fallback for topic labeling:
// frequency-ranked words of the text, ties broken alphabetically so the
// result is deterministic.
func ExtractKeywords(text string, max int) []string {
	freq := make(map[string]int)
	for _, word := range strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) {
		if len(word) >= minKeywordLen {
			freq[word]++
		}
	}

	words := make([]string, 0, len(freq))
	for word := range freq {
		words = append(words, word)
	}
	sort.Slice(words, func(i, j int) bool {
		if freq[words[i]] != freq[words[j]] {
			return freq[words[i]] > freq[words[j]]
		}
		return words[i] < words[j]
	})

	if len(words) > max {
		words = words[:max]
	}
	return words
}
