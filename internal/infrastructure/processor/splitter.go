package processor

import "strings"

// splitter cuts long text into overlapping chunks, preferring sentence
// boundaries and falling back to word boundaries near the cut point.
type splitter struct {
	chunkSize int
	overlap   int
}

func newSplitter(chunkSize, overlap int) *splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 5
	}
	return &splitter{chunkSize: chunkSize, overlap: overlap}
}

func (s *splitter) split(text string) []string {
	runes := []rune(text)
	if len(runes) <= s.chunkSize {
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			return nil
		}
		return []string{trimmed}
	}

	out := make([]string, 0, len(runes)/s.chunkSize+1)
	start := 0
	for start < len(runes) {
		end := start + s.chunkSize
		if end < len(runes) {
			end = s.cutPoint(runes, start, end)
		} else {
			end = len(runes)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end >= len(runes) {
			break
		}

		next := end - s.overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

// cutPoint backtracks from the hard limit looking for a sentence ending
// within the last 100 runes, then a space within the last 50. Finding
// neither keeps the hard cut.
func (s *splitter) cutPoint(runes []rune, start, end int) int {
	sentenceFloor := end - 100
	if sentenceFloor < start {
		sentenceFloor = start
	}
	for i := end; i > sentenceFloor; i-- {
		switch runes[i] {
		case '.', '!', '?':
			return i + 1
		}
	}

	wordFloor := end - 50
	if wordFloor < start {
		wordFloor = start
	}
	for i := end; i > wordFloor; i-- {
		if runes[i] == ' ' {
			return i
		}
	}
	return end
}
