package domain

import "time"

type DocumentType string

const (
	DocumentTypePDF  DocumentType = "pdf"
	DocumentTypeDOCX DocumentType = "docx"
	DocumentTypeTXT  DocumentType = "txt"
	DocumentTypeMD   DocumentType = "md"
	DocumentTypeXLSX DocumentType = "xlsx"
	DocumentTypeCSV  DocumentType = "csv"
)

// ParseDocumentType validates a caller-supplied type tag.
func ParseDocumentType(s string) (DocumentType, bool) {
	switch DocumentType(s) {
	case DocumentTypePDF, DocumentTypeDOCX, DocumentTypeTXT, DocumentTypeMD, DocumentTypeXLSX, DocumentTypeCSV:
		return DocumentType(s), true
	}
	return "", false
}

// Chunk is one indexable span of extracted document text.
type Chunk struct {
	Text     string         `json:"text"`
	Metadata map[string]any `json:"metadata"`
}

// DocumentInfo is the registry record for one ingested document.
type DocumentInfo struct {
	ID         string         `json:"id"`
	FileName   string         `json:"file_name"`
	FileType   DocumentType   `json:"file_type"`
	UploadedAt time.Time      `json:"uploaded_at"`
	ChunkCount int            `json:"chunk_count"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}
