package engine

import (
	"context"
	"fmt"
	"strings"

	"github.com/autoquest/autoquest/internal/core/domain"
	"github.com/autoquest/autoquest/internal/core/ports"
)

// AnswerService composes retrieval with answer generation.
type AnswerService struct {
	retriever ports.RetrievalEngine
	generator ports.AnswerGenerator
}

func NewAnswerService(retriever ports.RetrievalEngine, generator ports.AnswerGenerator) *AnswerService {
	return &AnswerService{
		retriever: retriever,
		generator: generator,
	}
}

// Ask retrieves context for the question and generates an answer over it. An
// empty retrieval result short-circuits to a no-context answer without
// touching the generator.
func (s *AnswerService) Ask(ctx context.Context, question string, opts domain.RetrieveOptions) (domain.Answer, error) {
	if strings.TrimSpace(question) == "" {
		return domain.Answer{}, domain.WrapError(domain.ErrInvalidInput, "ask", fmt.Errorf("question is empty"))
	}

	sources, err := s.retriever.Retrieve(ctx, question, opts)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("retrieve context: %w", err)
	}
	if len(sources) == 0 {
		return domain.Answer{
			Text:       "I could not find relevant information to answer your question.",
			Confidence: 0,
			Sources:    []domain.Source{},
		}, nil
	}

	answer, err := s.generator.Generate(ctx, question, sources)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generate answer: %w", err)
	}
	answer.Sources = sources
	return answer, nil
}
