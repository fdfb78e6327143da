// Package qdrantindex backs the vector index with a Qdrant collection over
// gRPC. Rebuild recreates the collection sized to the embedding dimension
// with cosine distance and bulk-upserts chunk positions as point ids.
package qdrantindex

import (
	"context"
	"fmt"
	"sync"

	"github.com/qdrant/go-client/qdrant"

	"github.com/autoquest/autoquest/internal/core/domain"
)

const TypeName = "qdrant"

// Config holds connection parameters for the Qdrant instance.
type Config struct {
	Host       string
	Port       int
	Collection string
	APIKey     string
	UseTLS     bool
}

type Index struct {
	client     *qdrant.Client
	collection string

	mu      sync.Mutex
	ensured bool
	dim     uint64
}

func New(cfg Config) (*Index, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	if cfg.Collection == "" {
		cfg.Collection = "documents"
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: create client: %w", err)
	}
	return &Index{client: client, collection: cfg.Collection}, nil
}

func (ix *Index) Type() string { return TypeName }

func (ix *Index) Rebuild(ctx context.Context, texts []string, embeddings [][]float32, metadata []map[string]any) error {
	if len(texts) != len(embeddings) || len(texts) != len(metadata) {
		return fmt.Errorf("qdrant: texts/embeddings/metadata mismatch: %d/%d/%d", len(texts), len(embeddings), len(metadata))
	}
	if len(embeddings) == 0 {
		return ix.clear(ctx)
	}

	dim := uint64(len(embeddings[0]))
	if err := ix.recreateCollection(ctx, dim); err != nil {
		return err
	}

	points := make([]*qdrant.PointStruct, 0, len(embeddings))
	for i, embedding := range embeddings {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDNum(uint64(i)),
			Vectors: qdrant.NewVectors(embedding...),
			Payload: qdrant.NewValueMap(payloadFor(texts[i], metadata[i])),
		})
	}

	wait := true
	if _, err := ix.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: ix.collection,
		Points:         points,
		Wait:           &wait,
	}); err != nil {
		return fmt.Errorf("qdrant: upsert: %w", err)
	}
	return nil
}

func (ix *Index) Search(ctx context.Context, queryEmbedding []float32, limit int) ([]domain.Candidate, error) {
	if limit <= 0 {
		return nil, nil
	}

	queryLimit := uint64(limit)
	results, err := ix.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: ix.collection,
		Query:          qdrant.NewQuery(queryEmbedding...),
		Limit:          &queryLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query: %w", err)
	}

	candidates := make([]domain.Candidate, 0, len(results))
	for _, point := range results {
		// Cosine score is already a similarity; no distance mapping needed.
		candidates = append(candidates, domain.Candidate{
			Position:   int(point.GetId().GetNum()),
			Similarity: float64(point.GetScore()),
		})
	}
	return candidates, nil
}

func (ix *Index) Close() error {
	return ix.client.Close()
}

// recreateCollection drops and recreates the collection so a rebuild starts
// from an empty remote state.
func (ix *Index) recreateCollection(ctx context.Context, dim uint64) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if exists {
		if err := ix.client.DeleteCollection(ctx, ix.collection); err != nil {
			return fmt.Errorf("qdrant: delete collection: %w", err)
		}
	}

	if err := ix.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: ix.collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     dim,
			Distance: qdrant.Distance_Cosine,
		}),
	}); err != nil {
		return fmt.Errorf("qdrant: create collection %q: %w", ix.collection, err)
	}

	ix.ensured = true
	ix.dim = dim
	return nil
}

func (ix *Index) clear(ctx context.Context) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	exists, err := ix.client.CollectionExists(ctx, ix.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if !exists {
		return nil
	}
	if err := ix.client.DeleteCollection(ctx, ix.collection); err != nil {
		return fmt.Errorf("qdrant: delete collection: %w", err)
	}
	ix.ensured = false
	return nil
}

// payloadFor flattens chunk metadata into a Qdrant payload; values outside
// the payload value types are stringified.
func payloadFor(text string, metadata map[string]any) map[string]any {
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		switch v.(type) {
		case string, bool, int, int32, int64, float32, float64:
			payload[k] = v
		default:
			payload[k] = fmt.Sprintf("%v", v)
		}
	}
	payload["text"] = text
	return payload
}
