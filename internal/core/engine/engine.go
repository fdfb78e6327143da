package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/autoquest/autoquest/internal/core/domain"
	"github.com/autoquest/autoquest/internal/core/ports"
)

// Metrics receives engine-level observations. A nil Metrics disables them.
type Metrics interface {
	RebuildObserved(backend string, chunks int, duration time.Duration)
	BackendDowngraded(from, to string)
	RetrieveDegraded(reason string)
}

// Options are the engine defaults, overridable per query.
type Options struct {
	DefaultTopK      int
	DefaultThreshold float64
	HybridEnabled    bool
	HybridAlpha      float64
}

func (o Options) normalize() Options {
	if o.DefaultTopK <= 0 {
		o.DefaultTopK = 5
	}
	if o.HybridAlpha < 0 {
		o.HybridAlpha = 0
	}
	if o.HybridAlpha > 1 {
		o.HybridAlpha = 1
	}
	return o
}

// Engine owns the chunk store, the document registry and the vector index
// lifecycle. Every mutation rebuilds the index synchronously before
// returning, so reads always observe an index consistent with the chunk
// store. Mutations take the write lock; reads may run concurrently.
type Engine struct {
	mu sync.RWMutex

	opts      Options
	processor ports.DocumentProcessor
	embedder  ports.Embedder
	selector  *backendSelector
	reg       *registry

	// embeddings is the matrix from the last successful rebuild, retained so
	// a downgrade to the flat index never has to re-embed the corpus.
	embeddings [][]float32

	logger  *slog.Logger
	metrics Metrics
}

func New(
	processor ports.DocumentProcessor,
	embedder ports.Embedder,
	backend ports.VectorIndex,
	fallback ports.VectorIndex,
	opts Options,
	logger *slog.Logger,
	metrics Metrics,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		opts:      opts.normalize(),
		processor: processor,
		embedder:  embedder,
		selector:  newBackendSelector(backend, fallback, logger, metrics),
		reg:       newRegistry(),
		logger:    logger,
		metrics:   metrics,
	}
}

// AddDocument chunks the file, registers it and rebuilds the index. The
// returned id identifies the document for later deletion and filtering.
func (e *Engine) AddDocument(ctx context.Context, filePath string, fileType domain.DocumentType, metadata map[string]any) (string, error) {
	chunks, err := e.processor.Process(ctx, filePath, fileType)
	if err != nil {
		return "", fmt.Errorf("process document: %w", err)
	}
	if len(chunks) == 0 {
		return "", domain.WrapError(domain.ErrInvalidInput, "add document", errors.New("no content extracted from document"))
	}

	documentID := newDocumentID()
	info := domain.DocumentInfo{
		ID:         documentID,
		FileName:   filepath.Base(filePath),
		FileType:   fileType,
		UploadedAt: time.Now().UTC(),
		ChunkCount: len(chunks),
		Metadata:   metadata,
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.reg.appendDocument(info, chunks, metadata)
	if err := e.rebuildLocked(ctx); err != nil {
		// Roll the append back so the chunk store never outlives its index.
		e.reg.removeDocument(documentID)
		return "", domain.WrapError(domain.ErrTemporary, "index document", err)
	}

	e.logger.Info("document added",
		"document_id", documentID,
		"file_name", info.FileName,
		"file_type", string(fileType),
		"chunks", len(chunks),
	)
	return documentID, nil
}

// DeleteDocument removes the document and its chunks, compacts positions and
// rebuilds. Unknown ids report false without error. A failed rebuild restores
// the pre-delete state, so the chunk store never disagrees with the live
// index; the caller retries the delete once the backend recovers.
func (e *Engine) DeleteDocument(ctx context.Context, documentID string) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, ok := e.reg.get(documentID); !ok {
		return false, nil
	}

	snapshot := e.reg.snapshot()
	e.reg.removeDocument(documentID)
	if err := e.rebuildLocked(ctx); err != nil {
		e.reg.restore(snapshot)
		return false, domain.WrapError(domain.ErrTemporary, "reindex after delete", err)
	}
	e.logger.Info("document deleted", "document_id", documentID, "chunks_remaining", e.reg.chunkCount())
	return true, nil
}

// Retrieve returns the ranked sources for a query. It is total: an empty
// corpus, an unavailable embedder or an unrecoverable backend all yield an
// empty slice, never an error.
func (e *Engine) Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) ([]domain.Source, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.reg.empty() {
		return []domain.Source{}, nil
	}

	cfg := rankerConfig{
		topK:      opts.TopK,
		threshold: e.opts.DefaultThreshold,
		hybrid:    e.opts.HybridEnabled,
		alpha:     e.opts.HybridAlpha,
	}
	if cfg.topK <= 0 {
		cfg.topK = e.opts.DefaultTopK
	}
	if opts.SimilarityThreshold != nil {
		cfg.threshold = *opts.SimilarityThreshold
	}

	allowed := e.reg.allowedPositions(opts.Filters)
	if allowed != nil && len(allowed) == 0 {
		return []domain.Source{}, nil
	}

	queryEmbedding, err := e.embedder.EmbedQuery(ctx, query)
	if err != nil {
		e.degrade("embed_query", err)
		return []domain.Source{}, nil
	}

	candidates, err := e.searchLocked(ctx, queryEmbedding, overfetchLimit(cfg.topK, e.reg.chunkCount()))
	if err != nil {
		e.degrade("backend_search", err)
		return []domain.Source{}, nil
	}

	queryTokens := toTokenSet(query)
	scored := make([]scoredCandidate, 0, len(candidates))
	for _, c := range candidates {
		if c.Position < 0 || c.Position >= e.reg.chunkCount() {
			continue
		}
		if allowed != nil {
			if _, ok := allowed[c.Position]; !ok {
				continue
			}
		}
		scored = append(scored, scoredCandidate{
			position:   c.Position,
			vectorSim:  c.Similarity,
			lexicalSim: lexicalScore(queryTokens, e.reg.texts[c.Position]),
		})
	}

	ranked := rankCandidates(scored, cfg)
	return e.sourcesLocked(ranked), nil
}

func (e *Engine) ListDocuments() []domain.DocumentInfo {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.list()
}

func (e *Engine) GetDocumentInfo(documentID string) (domain.DocumentInfo, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.reg.get(documentID)
}

func (e *Engine) Stats() domain.Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return domain.Stats{
		TotalDocuments: e.reg.documentCount(),
		TotalChunks:    e.reg.chunkCount(),
		BackendType:    e.selector.current().Type(),
	}
}

// rebuildLocked re-embeds the corpus and replaces the active index content.
// Caller holds the write lock. An external-backend failure downgrades to the
// flat index and retries once; only a flat failure (or an embedding failure)
// propagates. An empty corpus still rebuilds, clearing the backend. The
// embedding cache is replaced only after the backend accepted the rebuild, so
// it always mirrors the live index.
func (e *Engine) rebuildLocked(ctx context.Context) error {
	start := time.Now()

	var embeddings [][]float32
	if !e.reg.empty() {
		var err error
		embeddings, err = e.embedder.Embed(ctx, e.reg.texts)
		if err != nil {
			return fmt.Errorf("embed corpus: %w", err)
		}
		if len(embeddings) != len(e.reg.texts) {
			return fmt.Errorf("embed corpus: vectors/chunks mismatch: %d/%d", len(embeddings), len(e.reg.texts))
		}
	}

	backend := e.selector.current()
	err := backend.Rebuild(ctx, e.reg.texts, embeddings, e.reg.metadata)
	if err != nil && !e.selector.isFlat() {
		backend = e.selector.downgrade(err)
		err = backend.Rebuild(ctx, e.reg.texts, embeddings, e.reg.metadata)
	}
	if err != nil {
		return fmt.Errorf("rebuild %s index: %w", backend.Type(), err)
	}
	e.embeddings = embeddings

	if e.metrics != nil {
		e.metrics.RebuildObserved(backend.Type(), e.reg.chunkCount(), time.Since(start))
	}
	e.logger.Info("index rebuilt",
		"backend", backend.Type(),
		"chunks", e.reg.chunkCount(),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return nil
}

// searchLocked queries the active backend. On an external-backend failure it
// downgrades, rebuilds the flat index from the cached embedding matrix and
// retries the search once. Caller holds at least the read lock; the selector
// and the flat index carry their own synchronization for the downgrade path.
func (e *Engine) searchLocked(ctx context.Context, queryEmbedding []float32, limit int) ([]domain.Candidate, error) {
	backend := e.selector.current()
	candidates, err := backend.Search(ctx, queryEmbedding, limit)
	if err == nil {
		return candidates, nil
	}
	if e.selector.isFlat() {
		return nil, err
	}

	backend = e.selector.downgrade(err)
	if err := backend.Rebuild(ctx, e.reg.texts, e.embeddings, e.reg.metadata); err != nil {
		return nil, fmt.Errorf("rebuild fallback index: %w", err)
	}
	return backend.Search(ctx, queryEmbedding, limit)
}

func (e *Engine) sourcesLocked(ranked []scoredCandidate) []domain.Source {
	sources := make([]domain.Source, 0, len(ranked))
	for _, c := range ranked {
		meta := e.reg.metadata[c.position]
		documentID := e.reg.owners[c.position]
		fileName := "unknown"
		if info, ok := e.reg.get(documentID); ok {
			fileName = info.FileName
		}
		source := domain.Source{
			DocumentID:      documentID,
			FileName:        fileName,
			ChunkText:       e.reg.texts[c.position],
			SimilarityScore: c.score,
			ChunkIndex:      c.position,
		}
		if page, ok := pageNumber(meta); ok {
			source.PageNumber = &page
		}
		sources = append(sources, source)
	}
	return sources
}

func (e *Engine) degrade(reason string, err error) {
	e.logger.Error("retrieve degraded to empty result", "reason", reason, "error", err)
	if e.metrics != nil {
		e.metrics.RetrieveDegraded(reason)
	}
}

func pageNumber(meta map[string]any) (int, bool) {
	switch v := meta["page_number"].(type) {
	case int:
		return v, true
	case float64:
		return int(v), true
	}
	return 0, false
}

func newDocumentID() string {
	return "doc_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}
