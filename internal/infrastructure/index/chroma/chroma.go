// Package chroma backs the vector index with a Chroma collection over its
// HTTP API. Rebuild is clear-then-bulk-insert; chunk positions ride in the
// point ids as "chunk_<position>".
package chroma

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/autoquest/autoquest/internal/core/domain"
)

const TypeName = "chroma"

type Index struct {
	baseURL    string
	collection string
	httpClient *http.Client

	ensureMu     sync.Mutex
	collectionID string
}

func New(baseURL, collection string) *Index {
	return &Index{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

func (ix *Index) Type() string { return TypeName }

func (ix *Index) Rebuild(ctx context.Context, texts []string, embeddings [][]float32, metadata []map[string]any) error {
	if len(texts) != len(embeddings) || len(texts) != len(metadata) {
		return fmt.Errorf("chroma: texts/embeddings/metadata mismatch: %d/%d/%d", len(texts), len(embeddings), len(metadata))
	}

	collectionID, err := ix.ensureCollection(ctx)
	if err != nil {
		return err
	}

	// Clear before re-adding; an empty where clause matches every record.
	clearBody := map[string]any{"where": map[string]any{}}
	if err := ix.post(ctx, fmt.Sprintf("/api/v1/collections/%s/delete", collectionID), clearBody, nil); err != nil {
		return fmt.Errorf("chroma clear collection: %w", err)
	}
	if len(texts) == 0 {
		return nil
	}

	ids := make([]string, len(texts))
	for i := range texts {
		ids[i] = "chunk_" + strconv.Itoa(i)
	}
	addBody := map[string]any{
		"ids":        ids,
		"embeddings": embeddings,
		"documents":  texts,
		"metadatas":  metadata,
	}
	if err := ix.post(ctx, fmt.Sprintf("/api/v1/collections/%s/add", collectionID), addBody, nil); err != nil {
		return fmt.Errorf("chroma bulk insert: %w", err)
	}
	return nil
}

func (ix *Index) Search(ctx context.Context, queryEmbedding []float32, limit int) ([]domain.Candidate, error) {
	collectionID, err := ix.ensureCollection(ctx)
	if err != nil {
		return nil, err
	}

	queryBody := map[string]any{
		"query_embeddings": [][]float32{queryEmbedding},
		"n_results":        limit,
		"include":          []string{"distances"},
	}
	var response struct {
		IDs       [][]string  `json:"ids"`
		Distances [][]float64 `json:"distances"`
	}
	if err := ix.post(ctx, fmt.Sprintf("/api/v1/collections/%s/query", collectionID), queryBody, &response); err != nil {
		return nil, fmt.Errorf("chroma query: %w", err)
	}
	if len(response.IDs) == 0 {
		return nil, nil
	}

	ids := response.IDs[0]
	var distances []float64
	if len(response.Distances) > 0 {
		distances = response.Distances[0]
	}

	candidates := make([]domain.Candidate, 0, len(ids))
	for i, id := range ids {
		position, err := positionFromID(id)
		if err != nil {
			return nil, err
		}
		var distance float64
		if i < len(distances) {
			distance = distances[i]
		}
		candidates = append(candidates, domain.Candidate{
			Position:   position,
			Similarity: 1 / (1 + distance),
		})
	}
	return candidates, nil
}

func (ix *Index) ensureCollection(ctx context.Context) (string, error) {
	ix.ensureMu.Lock()
	defer ix.ensureMu.Unlock()
	if ix.collectionID != "" {
		return ix.collectionID, nil
	}

	body := map[string]any{
		"name":          ix.collection,
		"get_or_create": true,
	}
	var response struct {
		ID string `json:"id"`
	}
	if err := ix.post(ctx, "/api/v1/collections", body, &response); err != nil {
		return "", fmt.Errorf("chroma ensure collection: %w", err)
	}
	if response.ID == "" {
		return "", fmt.Errorf("chroma ensure collection: empty collection id")
	}
	ix.collectionID = response.ID
	return ix.collectionID, nil
}

func (ix *Index) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ix.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := ix.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("chroma request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return fmt.Errorf("chroma status: %s: %s", resp.Status, msg)
		}
		return fmt.Errorf("chroma status: %s", resp.Status)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func positionFromID(id string) (int, error) {
	raw, ok := strings.CutPrefix(id, "chunk_")
	if !ok {
		return 0, fmt.Errorf("chroma: unexpected point id %q", id)
	}
	position, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("chroma: unexpected point id %q", id)
	}
	return position, nil
}
