package processor

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"

	"github.com/xuri/excelize/v2"

	"github.com/autoquest/autoquest/internal/core/domain"
)

// processCSV emits one chunk per data row, rendered as "column: value"
// lines. The first record is treated as the header.
func (p *Processor) processCSV(filePath string) ([]domain.Chunk, error) {
	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open csv document: %w", err)
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	var chunks []domain.Chunk
	for rowIndex := 0; ; rowIndex++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row %d: %w", rowIndex+1, err)
		}

		text := rowText(headers, record)
		if text == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{
			Text: text,
			Metadata: map[string]any{
				"file_type": string(domain.DocumentTypeCSV),
				"row_index": rowIndex,
				"chunk_id":  chunkID("csv", text),
			},
		})
	}
	return chunks, nil
}

// processXLSX walks every sheet, using each sheet's first row as headers.
func (p *Processor) processXLSX(filePath string) ([]domain.Chunk, error) {
	f, err := excelize.OpenFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("open xlsx document: %w", err)
	}
	defer f.Close()

	var chunks []domain.Chunk
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
		}
		if len(rows) < 2 {
			continue
		}

		headers := rows[0]
		for rowIndex, record := range rows[1:] {
			text := rowText(headers, record)
			if text == "" {
				continue
			}
			chunks = append(chunks, domain.Chunk{
				Text: text,
				Metadata: map[string]any{
					"file_type": string(domain.DocumentTypeXLSX),
					"sheet":     sheet,
					"row_index": rowIndex,
					"chunk_id":  chunkID("xlsx", text),
				},
			})
		}
	}
	return chunks, nil
}
