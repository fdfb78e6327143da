// Package flat implements an exact, in-process vector index. It is both a
// first-class backend and the permanent fallback target when an external
// backend fails.
package flat

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/autoquest/autoquest/internal/core/domain"
)

const TypeName = "flat"

// Index holds the raw embedding matrix and searches it by brute force.
// Distances are squared L2, mapped to similarity as 1/(1+d) so the result
// lands in (0,1] with distance zero mapping to exactly 1.
type Index struct {
	mu         sync.RWMutex
	embeddings [][]float32
}

func New() *Index {
	return &Index{}
}

func (ix *Index) Type() string { return TypeName }

func (ix *Index) Rebuild(_ context.Context, texts []string, embeddings [][]float32, _ []map[string]any) error {
	if len(texts) != len(embeddings) {
		return fmt.Errorf("flat: texts/embeddings mismatch: %d/%d", len(texts), len(embeddings))
	}
	replacement := make([][]float32, len(embeddings))
	copy(replacement, embeddings)

	ix.mu.Lock()
	ix.embeddings = replacement
	ix.mu.Unlock()
	return nil
}

func (ix *Index) Search(_ context.Context, queryEmbedding []float32, limit int) ([]domain.Candidate, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if limit <= 0 || len(ix.embeddings) == 0 {
		return nil, nil
	}

	candidates := make([]domain.Candidate, 0, len(ix.embeddings))
	for i, embedding := range ix.embeddings {
		d, err := squaredL2(queryEmbedding, embedding)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, domain.Candidate{
			Position:   i,
			Similarity: 1 / (1 + d),
		})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

func squaredL2(a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("flat: dimension mismatch: %d/%d", len(a), len(b))
	}
	var sum float64
	for i := range a {
		diff := float64(a[i]) - float64(b[i])
		sum += diff * diff
	}
	return sum, nil
}
