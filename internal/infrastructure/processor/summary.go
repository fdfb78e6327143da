package processor

import (
	"regexp"
	"sort"
	"strings"

	"github.com/autoquest/autoquest/internal/core/domain"
)

// Summary describes a processed document: chunk statistics plus its dominant
// keywords.
type Summary struct {
	TotalChunks        int      `json:"total_chunks"`
	TotalTextLength    int      `json:"total_text_length"`
	AverageChunkLength float64  `json:"average_chunk_length"`
	Keywords           []string `json:"keywords"`
}

// Summarize aggregates chunk statistics and the dominant keywords across the
// whole document.
func Summarize(chunks []domain.Chunk, topKeywords int) Summary {
	s := Summary{TotalChunks: len(chunks), Keywords: []string{}}
	if len(chunks) == 0 {
		return s
	}

	var all []byte
	for _, chunk := range chunks {
		s.TotalTextLength += len(chunk.Text)
		all = append(all, chunk.Text...)
		all = append(all, ' ')
	}
	s.AverageChunkLength = float64(s.TotalTextLength) / float64(len(chunks))
	s.Keywords = ExtractKeywords(string(all), topKeywords)
	return s
}

var wordPattern = regexp.MustCompile(`[a-zA-Z]{3,}`)

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {},
	"at": {}, "to": {}, "for": {}, "of": {}, "with": {}, "by": {},
}

// ExtractKeywords ranks terms by frequency, ignoring short words and a small
// stopword list. Ties order alphabetically so the result is stable.
func ExtractKeywords(text string, topK int) []string {
	if topK <= 0 {
		return []string{}
	}

	freq := make(map[string]int)
	for _, word := range wordPattern.FindAllString(text, -1) {
		lower := strings.ToLower(word)
		if _, ok := stopwords[lower]; ok {
			continue
		}
		freq[lower]++
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

	if len(words) > topK {
		words = words[:topK]
	}
	return words
}
