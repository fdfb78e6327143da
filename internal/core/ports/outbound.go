package ports

import (
	"context"

	"github.com/autoquest/autoquest/internal/core/domain"
)

// DocumentProcessor turns a file into indexable chunks.
type DocumentProcessor interface {
	Process(ctx context.Context, filePath string, fileType domain.DocumentType) ([]domain.Chunk, error)
}

// Embedder maps text to fixed-dimension vectors. Deterministic for identical
// input and model configuration.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorIndex is one interchangeable index backend. Rebuild replaces all
// indexed content; Search returns candidates ranked by similarity, each
// carrying its chunk-store position and a similarity already normalized
// to (0,1]. Implementations must be safe for concurrent use.
type VectorIndex interface {
	Type() string
	Rebuild(ctx context.Context, texts []string, embeddings [][]float32, metadata []map[string]any) error
	Search(ctx context.Context, queryEmbedding []float32, limit int) ([]domain.Candidate, error)
}

// AnswerGenerator produces the final answer from a question and its ranked
// context sources.
type AnswerGenerator interface {
	Generate(ctx context.Context, question string, sources []domain.Source) (domain.Answer, error)
}

// EventBus publishes document-lifecycle and query audit events. Publishing is
// best-effort from the API's point of view; failures must not fail requests.
type EventBus interface {
	PublishDocumentEvent(ctx context.Context, event domain.DocumentEvent) error
	PublishQueryEvent(ctx context.Context, event domain.QueryEvent) error
	SubscribeDocumentEvents(ctx context.Context, handler func(context.Context, domain.DocumentEvent) error) error
	SubscribeQueryEvents(ctx context.Context, handler func(context.Context, domain.QueryEvent) error) error
}

// Journal durably records events consumed by the worker.
type Journal interface {
	RecordDocumentEvent(ctx context.Context, event domain.DocumentEvent) error
	RecordQuery(ctx context.Context, event domain.QueryEvent) error
}
