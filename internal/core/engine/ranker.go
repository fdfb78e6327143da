package engine

import (
	"sort"
	"unicode"
)

// rankerConfig is the scoring policy resolved for one query.
type rankerConfig struct {
	topK      int
	threshold float64
	hybrid    bool
	alpha     float64
}

type scoredCandidate struct {
	position   int
	score      float64
	vectorSim  float64
	lexicalSim float64
}

// lexicalScore measures query-token recall into the candidate text: the share
// of unique query tokens also present in the candidate. It is deliberately
// not normalized against the candidate's own token count.
func lexicalScore(queryTokens map[string]struct{}, text string) float64 {
	if len(queryTokens) == 0 {
		return 0
	}
	chunkTokens := toTokenSet(text)
	if len(chunkTokens) == 0 {
		return 0
	}
	matches := 0
	for token := range queryTokens {
		if _, ok := chunkTokens[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(queryTokens))
}

// rankCandidates scores, threshold-filters, sorts and truncates the candidate
// set. Ties on equal blended score order by ascending chunk position. The
// similarity threshold applies to the raw vector similarity and only when
// hybrid blending is off; blended scores are never threshold-filtered.
func rankCandidates(candidates []scoredCandidate, cfg rankerConfig) []scoredCandidate {
	kept := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if cfg.hybrid {
			c.score = cfg.alpha*c.vectorSim + (1-cfg.alpha)*c.lexicalSim
		} else {
			c.score = c.vectorSim
			if c.vectorSim < cfg.threshold {
				continue
			}
		}
		kept = append(kept, c)
	}

	sort.SliceStable(kept, func(i, j int) bool {
		if kept[i].score != kept[j].score {
			return kept[i].score > kept[j].score
		}
		return kept[i].position < kept[j].position
	})

	if cfg.topK > 0 && len(kept) > cfg.topK {
		kept = kept[:cfg.topK]
	}
	return kept
}

// overfetchLimit is the backend candidate window: generous so enough hits
// survive the post-hoc metadata-filter intersection.
func overfetchLimit(topK, corpusSize int) int {
	limit := topK * 5
	if limit < 50 {
		limit = 50
	}
	if corpusSize > 0 && limit > corpusSize {
		limit = corpusSize
	}
	return limit
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitWordsLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

// splitWordsLower tokenizes on word boundaries: runs of letters, digits and
// underscore, lowercased.
func splitWordsLower(s string) []string {
	if s == "" {
		return nil
	}
	tokens := make([]string, 0, 16)
	var current []rune
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			current = append(current, unicode.ToLower(r))
			continue
		}
		if len(current) > 0 {
			tokens = append(tokens, string(current))
			current = current[:0]
		}
	}
	if len(current) > 0 {
		tokens = append(tokens, string(current))
	}
	return tokens
}
