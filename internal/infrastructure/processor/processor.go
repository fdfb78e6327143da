// Package processor turns uploaded files into text chunks ready for
// indexing. Each supported format has its own extraction strategy; all of
// them produce chunks carrying a file_type tag so retrieval filters can
// match on it.
package processor

import (
	"context"
	"crypto/md5"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/autoquest/autoquest/internal/core/domain"
)

type Config struct {
	ChunkSize    int
	ChunkOverlap int
}

type Processor struct {
	splitter *splitter
	logger   *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Processor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Processor{
		splitter: newSplitter(cfg.ChunkSize, cfg.ChunkOverlap),
		logger:   logger,
	}
}

// Process extracts chunks from the file according to its declared type. The
// extension is not consulted; callers resolve the type up front.
func (p *Processor) Process(ctx context.Context, filePath string, fileType domain.DocumentType) ([]domain.Chunk, error) {
	if _, err := os.Stat(filePath); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, domain.WrapError(domain.ErrDocumentNotFound, "process document", err)
		}
		return nil, fmt.Errorf("stat document: %w", err)
	}

	var (
		chunks []domain.Chunk
		err    error
	)
	switch fileType {
	case domain.DocumentTypeTXT, domain.DocumentTypeMD:
		chunks, err = p.processText(filePath, fileType)
	case domain.DocumentTypeCSV:
		chunks, err = p.processCSV(filePath)
	case domain.DocumentTypeXLSX:
		chunks, err = p.processXLSX(filePath)
	case domain.DocumentTypePDF:
		chunks, err = p.processPDF(ctx, filePath)
	case domain.DocumentTypeDOCX:
		return nil, domain.WrapError(domain.ErrUnsupported, "process document",
			fmt.Errorf("docx extraction is not supported, convert to pdf or txt"))
	default:
		return nil, domain.WrapError(domain.ErrUnsupported, "process document",
			fmt.Errorf("unsupported file type %q", fileType))
	}
	if err != nil {
		return nil, err
	}

	summary := Summarize(chunks, 5)
	p.logger.Info("document processed",
		"file_path", filePath,
		"file_type", string(fileType),
		"chunks", len(chunks),
		"text_length", summary.TotalTextLength,
		"keywords", strings.Join(summary.Keywords, ","),
	)
	return chunks, nil
}

// minParagraphLength filters boilerplate: headings, stray lines and other
// fragments too short to carry retrievable content.
const minParagraphLength = 50

var paragraphSep = regexp.MustCompile(`\n\s*\n`)

func (p *Processor) processText(filePath string, fileType domain.DocumentType) ([]domain.Chunk, error) {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read text document: %w", err)
	}

	paragraphs := paragraphSep.Split(string(raw), -1)
	chunks := make([]domain.Chunk, 0, len(paragraphs))
	for i, paragraph := range paragraphs {
		trimmed := strings.TrimSpace(paragraph)
		if len([]rune(trimmed)) < minParagraphLength {
			continue
		}

		if len([]rune(trimmed)) > p.splitter.chunkSize {
			for j, sub := range p.splitter.split(trimmed) {
				chunks = append(chunks, domain.Chunk{
					Text: sub,
					Metadata: map[string]any{
						"file_type":       string(fileType),
						"paragraph_index": i,
						"sub_chunk_index": j,
						"chunk_id":        chunkID("text", sub),
					},
				})
			}
			continue
		}

		chunks = append(chunks, domain.Chunk{
			Text: trimmed,
			Metadata: map[string]any{
				"file_type":       string(fileType),
				"paragraph_index": i,
				"chunk_id":        chunkID("text", trimmed),
			},
		})
	}
	return chunks, nil
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// cleanText collapses whitespace runs into single spaces and trims.
func cleanText(s string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
}

func chunkID(prefix, text string) string {
	sum := md5.Sum([]byte(text))
	return fmt.Sprintf("%s_%x", prefix, sum[:4])
}

// rowText renders one tabular row as "column: value" lines, skipping empty
// cells. Returns "" when the whole row is empty.
func rowText(headers, cells []string) string {
	var b strings.Builder
	for i, cell := range cells {
		value := strings.TrimSpace(cell)
		if value == "" {
			continue
		}
		header := fmt.Sprintf("column_%d", i+1)
		if i < len(headers) && strings.TrimSpace(headers[i]) != "" {
			header = strings.TrimSpace(headers[i])
		}
		if b.Len() > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(header)
		b.WriteString(": ")
		b.WriteString(value)
	}
	return b.String()
}
