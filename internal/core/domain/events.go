package domain

import "time"

type DocumentEventKind string

const (
	DocumentAdded   DocumentEventKind = "added"
	DocumentDeleted DocumentEventKind = "deleted"
)

// DocumentEvent records one registry mutation for the audit journal.
type DocumentEvent struct {
	ID         string            `json:"id"`
	Kind       DocumentEventKind `json:"kind"`
	DocumentID string            `json:"document_id"`
	FileName   string            `json:"file_name,omitempty"`
	FileType   DocumentType      `json:"file_type,omitempty"`
	ChunkCount int               `json:"chunk_count,omitempty"`
	OccurredAt time.Time         `json:"occurred_at"`
}

// QueryEvent records one answered question for the audit journal.
type QueryEvent struct {
	ID          string    `json:"id"`
	Question    string    `json:"question"`
	TopK        int       `json:"top_k"`
	SourceCount int       `json:"source_count"`
	Confidence  float64   `json:"confidence"`
	Model       string    `json:"model,omitempty"`
	DurationMS  float64   `json:"duration_ms"`
	OccurredAt  time.Time `json:"occurred_at"`
}
