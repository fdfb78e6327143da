package ports

import (
	"context"

	"github.com/autoquest/autoquest/internal/core/domain"
)

// RetrievalEngine is the inbound contract for corpus maintenance and
// retrieval. Retrieve is total: given a well-formed query it always returns a
// (possibly empty) slice and never surfaces backend errors.
type RetrievalEngine interface {
	AddDocument(ctx context.Context, filePath string, fileType domain.DocumentType, metadata map[string]any) (string, error)
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) ([]domain.Source, error)
	DeleteDocument(ctx context.Context, documentID string) (bool, error)
	ListDocuments() []domain.DocumentInfo
	GetDocumentInfo(documentID string) (domain.DocumentInfo, bool)
	Stats() domain.Stats
}

// QuestionService answers a question end to end: retrieve then generate.
type QuestionService interface {
	Ask(ctx context.Context, question string, opts domain.RetrieveOptions) (domain.Answer, error)
}
