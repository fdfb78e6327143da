package engine

import (
	"math"
	"reflect"
	"testing"
)

func TestLexicalScore(t *testing.T) {
	tests := []struct {
		name  string
		query string
		text  string
		want  float64
	}{
		{"full overlap", "whales are mammals", "whales are mammals", 1},
		{"partial overlap", "whales are mammals", "dolphins are mammals too", 2.0 / 3.0},
		{"no overlap", "quantum physics", "cooking pasta at home", 0},
		{"case and punctuation ignored", "Whales, MAMMALS!", "whales are mammals", 1},
		{"empty query", "", "whales", 0},
		{"empty text", "whales", "", 0},
		{"duplicate query tokens count once", "whales whales are", "whales swim", 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := lexicalScore(toTokenSet(tt.query), tt.text)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("lexicalScore(%q, %q) = %v, want %v", tt.query, tt.text, got, tt.want)
			}
		})
	}
}

func TestRankCandidatesVectorOnlyThreshold(t *testing.T) {
	candidates := []scoredCandidate{
		{position: 0, vectorSim: 0.9},
		{position: 1, vectorSim: 0.69},
		{position: 2, vectorSim: 0.7},
	}
	got := rankCandidates(candidates, rankerConfig{topK: 5, threshold: 0.7, hybrid: false})

	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].position != 0 || got[1].position != 2 {
		t.Errorf("positions = [%d %d], want [0 2]", got[0].position, got[1].position)
	}
	for _, c := range got {
		if c.score != c.vectorSim {
			t.Errorf("vector-only score = %v, want raw similarity %v", c.score, c.vectorSim)
		}
	}
}

func TestRankCandidatesHybridIgnoresThreshold(t *testing.T) {
	// Both candidates sit below the threshold on raw vector similarity; in
	// hybrid mode neither may be dropped for it.
	candidates := []scoredCandidate{
		{position: 0, vectorSim: 0.1, lexicalSim: 1.0},
		{position: 1, vectorSim: 0.2, lexicalSim: 0.0},
	}
	got := rankCandidates(candidates, rankerConfig{topK: 5, threshold: 0.9, hybrid: true, alpha: 0.6})

	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2 (threshold must not apply in hybrid mode)", len(got))
	}
	wantTop := 0.6*0.1 + 0.4*1.0
	if math.Abs(got[0].score-wantTop) > 1e-9 {
		t.Errorf("top blended score = %v, want %v", got[0].score, wantTop)
	}
	if got[0].position != 0 {
		t.Errorf("top position = %d, want 0", got[0].position)
	}
}

func TestRankCandidatesBlendExtremes(t *testing.T) {
	candidates := []scoredCandidate{
		{position: 0, vectorSim: 0.9, lexicalSim: 0.1},
		{position: 1, vectorSim: 0.2, lexicalSim: 0.8},
	}

	// alpha=1 reduces to pure vector order.
	got := rankCandidates(candidates, rankerConfig{topK: 2, hybrid: true, alpha: 1})
	if got[0].position != 0 {
		t.Errorf("alpha=1: top position = %d, want 0", got[0].position)
	}
	if got[0].score != 0.9 {
		t.Errorf("alpha=1: top score = %v, want 0.9", got[0].score)
	}

	// alpha=0 reduces to pure lexical order.
	got = rankCandidates(candidates, rankerConfig{topK: 2, hybrid: true, alpha: 0})
	if got[0].position != 1 {
		t.Errorf("alpha=0: top position = %d, want 1", got[0].position)
	}
	if got[0].score != 0.8 {
		t.Errorf("alpha=0: top score = %v, want 0.8", got[0].score)
	}
}

func TestRankCandidatesTieBreakByPosition(t *testing.T) {
	candidates := []scoredCandidate{
		{position: 7, vectorSim: 0.5},
		{position: 2, vectorSim: 0.5},
		{position: 4, vectorSim: 0.5},
	}
	got := rankCandidates(candidates, rankerConfig{topK: 3, hybrid: false})

	positions := []int{got[0].position, got[1].position, got[2].position}
	if !reflect.DeepEqual(positions, []int{2, 4, 7}) {
		t.Errorf("tie-break positions = %v, want [2 4 7]", positions)
	}
}

func TestRankCandidatesTruncatesAfterFiltering(t *testing.T) {
	candidates := []scoredCandidate{
		{position: 0, vectorSim: 0.95},
		{position: 1, vectorSim: 0.3}, // below threshold
		{position: 2, vectorSim: 0.8},
		{position: 3, vectorSim: 0.9},
	}
	got := rankCandidates(candidates, rankerConfig{topK: 2, threshold: 0.5, hybrid: false})

	if len(got) != 2 {
		t.Fatalf("got %d candidates, want 2", len(got))
	}
	if got[0].position != 0 || got[1].position != 3 {
		t.Errorf("positions = [%d %d], want [0 3]", got[0].position, got[1].position)
	}
}

func TestOverfetchLimit(t *testing.T) {
	tests := []struct {
		topK, corpus, want int
	}{
		{5, 1000, 50},
		{20, 1000, 100},
		{5, 30, 30},
		{1, 10, 10},
		{100, 40, 40},
	}
	for _, tt := range tests {
		if got := overfetchLimit(tt.topK, tt.corpus); got != tt.want {
			t.Errorf("overfetchLimit(%d, %d) = %d, want %d", tt.topK, tt.corpus, got, tt.want)
		}
	}
}

func TestSplitWordsLower(t *testing.T) {
	got := splitWordsLower("Hello, World_2!  Go-lang")
	want := []string{"hello", "world_2", "go", "lang"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("splitWordsLower = %v, want %v", got, want)
	}
	if splitWordsLower("") != nil {
		t.Error("splitWordsLower(\"\") should be nil")
	}
}
