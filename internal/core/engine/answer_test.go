package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/autoquest/autoquest/internal/core/domain"
)

type fakeRetriever struct {
	sources []domain.Source
	err     error

	lastQuery string
	lastOpts  domain.RetrieveOptions
}

func (r *fakeRetriever) AddDocument(context.Context, string, domain.DocumentType, map[string]any) (string, error) {
	return "", errors.New("not implemented")
}

func (r *fakeRetriever) DeleteDocument(context.Context, string) (bool, error) {
	return false, errors.New("not implemented")
}

func (r *fakeRetriever) Retrieve(_ context.Context, query string, opts domain.RetrieveOptions) ([]domain.Source, error) {
	r.lastQuery = query
	r.lastOpts = opts
	return r.sources, r.err
}

func (r *fakeRetriever) ListDocuments() []domain.DocumentInfo { return nil }

func (r *fakeRetriever) GetDocumentInfo(string) (domain.DocumentInfo, bool) {
	return domain.DocumentInfo{}, false
}

func (r *fakeRetriever) Stats() domain.Stats { return domain.Stats{} }

type fakeGenerator struct {
	answer domain.Answer
	err    error
	calls  int
}

func (g *fakeGenerator) Generate(_ context.Context, _ string, _ []domain.Source) (domain.Answer, error) {
	g.calls++
	return g.answer, g.err
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	s := NewAnswerService(&fakeRetriever{}, &fakeGenerator{})
	_, err := s.Ask(context.Background(), "   ", domain.RetrieveOptions{})
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Errorf("error = %v, want ErrInvalidInput kind", err)
	}
}

func TestAskWithoutSourcesSkipsGenerator(t *testing.T) {
	generator := &fakeGenerator{}
	s := NewAnswerService(&fakeRetriever{sources: []domain.Source{}}, generator)

	answer, err := s.Ask(context.Background(), "what do whales eat?", domain.RetrieveOptions{})
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if generator.calls != 0 {
		t.Error("generator must not run without retrieved context")
	}
	if answer.Confidence != 0 {
		t.Errorf("confidence = %v, want 0", answer.Confidence)
	}
	if answer.Text == "" {
		t.Error("no-context answer text is empty")
	}
	if len(answer.Sources) != 0 {
		t.Errorf("sources = %v, want empty", answer.Sources)
	}
}

func TestAskAttachesSources(t *testing.T) {
	sources := []domain.Source{
		{DocumentID: "doc_a", FileName: "a.txt", ChunkText: "whales eat krill", SimilarityScore: 0.92},
	}
	generator := &fakeGenerator{answer: domain.Answer{Text: "They eat krill.", Confidence: 0.8, Model: "llama3"}}
	retriever := &fakeRetriever{sources: sources}
	s := NewAnswerService(retriever, generator)

	opts := domain.RetrieveOptions{TopK: 3}
	answer, err := s.Ask(context.Background(), "what do whales eat?", opts)
	if err != nil {
		t.Fatalf("Ask: %v", err)
	}
	if retriever.lastQuery != "what do whales eat?" || retriever.lastOpts.TopK != 3 {
		t.Error("retrieval options not forwarded")
	}
	if answer.Text != "They eat krill." || answer.Model != "llama3" {
		t.Errorf("answer = %+v, want the generator output", answer)
	}
	if len(answer.Sources) != 1 || answer.Sources[0].DocumentID != "doc_a" {
		t.Errorf("sources = %+v, want the retrieved sources attached", answer.Sources)
	}
}

func TestAskPropagatesGeneratorError(t *testing.T) {
	retriever := &fakeRetriever{sources: []domain.Source{{ChunkText: "ctx"}}}
	s := NewAnswerService(retriever, &fakeGenerator{err: errors.New("model offline")})

	if _, err := s.Ask(context.Background(), "q", domain.RetrieveOptions{}); err == nil {
		t.Error("expected generator error to propagate")
	}
}
