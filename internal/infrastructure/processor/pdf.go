package processor

import (
	"context"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/autoquest/autoquest/internal/core/domain"
)

// processPDF extracts text page by page so every chunk keeps its page
// number. Long pages are split further; sub-chunks inherit the page.
func (p *Processor) processPDF(ctx context.Context, filePath string) ([]domain.Chunk, error) {
	f, reader, err := pdf.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open pdf document: %w", err)
	}
	defer f.Close()

	var chunks []domain.Chunk
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			p.logger.Warn("pdf page extraction failed, skipping page",
				"file_path", filePath,
				"page", pageNum,
				"error", err,
			)
			continue
		}

		cleaned := cleanText(text)
		if cleaned == "" {
			continue
		}
		for _, part := range p.splitter.split(cleaned) {
			chunks = append(chunks, domain.Chunk{
				Text: part,
				Metadata: map[string]any{
					"file_type":   string(domain.DocumentTypePDF),
					"page_number": pageNum,
					"chunk_id":    chunkID("pdf", part),
				},
			})
		}
	}
	return chunks, nil
}
