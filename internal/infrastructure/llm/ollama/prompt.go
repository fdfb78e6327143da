package ollama

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/autoquest/autoquest/internal/core/domain"
)

type questionType string

const (
	questionFactual       questionType = "factual"
	questionAnalytical    questionType = "analytical"
	questionComparative   questionType = "comparative"
	questionSummarization questionType = "summarization"
)

// maxContextLength bounds the assembled context and anchors the confidence
// coverage term.
const maxContextLength = 4000

// Pattern order matters: the first match wins, so factual catches the common
// interrogatives before the broader analytical patterns get a look.
var questionPatterns = []struct {
	qtype    questionType
	patterns []*regexp.Regexp
}{
	{questionFactual, []*regexp.Regexp{
		regexp.MustCompile(`\b(what|who|when|where|which)\b`),
		regexp.MustCompile(`\b(is|are|was|were)\b`),
		regexp.MustCompile(`\b(how many|how much)\b`),
	}},
	{questionAnalytical, []*regexp.Regexp{
		regexp.MustCompile(`\b(why|how)\b`),
		regexp.MustCompile(`\b(explain|describe|analyze)\b`),
		regexp.MustCompile(`\b(compare|contrast)\b`),
	}},
	{questionComparative, []*regexp.Regexp{
		regexp.MustCompile(`\b(compare|versus|vs|difference|similar)\b`),
		regexp.MustCompile(`\b(better|worse|best|worst)\b`),
	}},
	{questionSummarization, []*regexp.Regexp{
		regexp.MustCompile(`\b(summarize|summary|overview)\b`),
		regexp.MustCompile(`\b(main points|key points)\b`),
	}},
}

func classifyQuestion(question string) questionType {
	lower := strings.ToLower(question)
	for _, group := range questionPatterns {
		for _, pattern := range group.patterns {
			if pattern.MatchString(lower) {
				return group.qtype
			}
		}
	}
	return questionFactual
}

// contextFromSources concatenates chunk texts in rank order, cut off at the
// context budget.
func contextFromSources(sources []domain.Source) string {
	var b strings.Builder
	for _, source := range sources {
		if b.Len() > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(source.ChunkText)
		if b.Len() >= maxContextLength {
			break
		}
	}
	text := b.String()
	if len(text) > maxContextLength {
		// Back up to a rune boundary so the cut never emits invalid UTF-8.
		cut := maxContextLength
		for cut > 0 && !utf8.RuneStart(text[cut]) {
			cut--
		}
		text = text[:cut]
	}
	return text
}

func buildPrompt(qtype questionType, question, contextText string) string {
	switch qtype {
	case questionAnalytical:
		return fmt.Sprintf(`Based on the following context, provide an analytical answer to the question.

Context: %s

Question: %s

Analytical answer:`, contextText, question)
	case questionComparative:
		return fmt.Sprintf(`Based on the following context, provide a comparative analysis.

Context: %s

Question: %s

Comparative analysis:`, contextText, question)
	case questionSummarization:
		return fmt.Sprintf(`Based on the following context, provide a comprehensive summary.

Context: %s

Question: %s

Please provide a detailed summary:`, contextText, question)
	default:
		return fmt.Sprintf(`Context: %s

Question: %s

Answer: Based on the context provided, `, contextText, question)
	}
}

// answerConfidence blends answer length with context coverage and clamps the
// result to [0.1, 0.95].
func answerConfidence(answer, contextText string) float64 {
	coverage := 0.0
	if contextText != "" {
		coverage = float64(len(contextText)) / maxContextLength
		if coverage > 1 {
			coverage = 1
		}
	}
	base := float64(len(answer))/150 + 0.25
	confidence := base * (0.7 + 0.3*coverage)
	if confidence < 0.1 {
		confidence = 0.1
	}
	if confidence > 0.95 {
		confidence = 0.95
	}
	return confidence
}
