package domain

// Source is a retrieved chunk with provenance and relevance, built per query.
type Source struct {
	DocumentID      string  `json:"document_id"`
	FileName        string  `json:"file_name"`
	ChunkText       string  `json:"chunk_text"`
	SimilarityScore float64 `json:"similarity_score"`
	ChunkIndex      int     `json:"chunk_index"`
	PageNumber      *int    `json:"page_number,omitempty"`
}

// SearchFilters restricts retrieval to chunks whose metadata matches every
// set field. Zero values mean "no filter".
type SearchFilters struct {
	DocumentID string
	FileType   DocumentType
}

func (f SearchFilters) Empty() bool {
	return f.DocumentID == "" && f.FileType == ""
}

// RetrieveOptions carries per-query overrides. TopK<=0 and a nil threshold
// fall back to the engine defaults; zero is a valid threshold, so the
// override is a pointer.
type RetrieveOptions struct {
	TopK                int
	SimilarityThreshold *float64
	Filters             SearchFilters
}

// Candidate is a backend search hit: a chunk-store position plus the
// backend-normalized similarity in (0,1].
type Candidate struct {
	Position   int
	Similarity float64
}

// Stats summarizes the engine state.
type Stats struct {
	TotalDocuments int    `json:"total_documents"`
	TotalChunks    int    `json:"total_chunks"`
	BackendType    string `json:"backend_type"`
}

// Answer is the generated response for a question, with its supporting sources.
type Answer struct {
	Text       string   `json:"answer"`
	Confidence float64  `json:"confidence"`
	Model      string   `json:"model"`
	Sources    []Source `json:"sources"`
}
