package engine

import (
	"github.com/autoquest/autoquest/internal/core/domain"
)

// registry is the chunk store plus the document registry. Positions in texts,
// metadata and owners always refer to the same chunk; the three slices are
// kept the same length through every mutation.
type registry struct {
	texts    []string
	metadata []map[string]any
	owners   []string // position -> owning document id

	infos map[string]domain.DocumentInfo
	order []string // document ids in insertion order
}

func newRegistry() *registry {
	return &registry{
		infos: make(map[string]domain.DocumentInfo),
	}
}

func (r *registry) chunkCount() int { return len(r.texts) }

func (r *registry) documentCount() int { return len(r.infos) }

func (r *registry) empty() bool { return len(r.texts) == 0 }

// appendDocument appends every chunk of one document, merging metadata
// last-write-wins in the order: chunk metadata, then document id, then
// caller metadata.
func (r *registry) appendDocument(info domain.DocumentInfo, chunks []domain.Chunk, callerMeta map[string]any) {
	for _, chunk := range chunks {
		merged := make(map[string]any, len(chunk.Metadata)+len(callerMeta)+1)
		for k, v := range chunk.Metadata {
			merged[k] = v
		}
		merged["document_id"] = info.ID
		for k, v := range callerMeta {
			merged[k] = v
		}
		r.texts = append(r.texts, chunk.Text)
		r.metadata = append(r.metadata, merged)
		r.owners = append(r.owners, info.ID)
	}
	r.infos[info.ID] = info
	r.order = append(r.order, info.ID)
}

// removeDocument drops every chunk owned by the document and compacts the
// remaining positions contiguously. Returns false for an unknown id.
func (r *registry) removeDocument(documentID string) bool {
	if _, ok := r.infos[documentID]; !ok {
		return false
	}

	texts := make([]string, 0, len(r.texts))
	metadata := make([]map[string]any, 0, len(r.metadata))
	owners := make([]string, 0, len(r.owners))
	for i, owner := range r.owners {
		if owner == documentID {
			continue
		}
		texts = append(texts, r.texts[i])
		metadata = append(metadata, r.metadata[i])
		owners = append(owners, owner)
	}
	r.texts = texts
	r.metadata = metadata
	r.owners = owners

	delete(r.infos, documentID)
	for i, id := range r.order {
		if id == documentID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// registrySnapshot is a point-in-time copy of the registry, taken before a
// mutation so a failed rebuild can restore the pre-mutation state.
type registrySnapshot struct {
	texts    []string
	metadata []map[string]any
	owners   []string
	infos    map[string]domain.DocumentInfo
	order    []string
}

func (r *registry) snapshot() registrySnapshot {
	infos := make(map[string]domain.DocumentInfo, len(r.infos))
	for id, info := range r.infos {
		infos[id] = info
	}
	return registrySnapshot{
		texts:    append([]string(nil), r.texts...),
		metadata: append([]map[string]any(nil), r.metadata...),
		owners:   append([]string(nil), r.owners...),
		infos:    infos,
		order:    append([]string(nil), r.order...),
	}
}

func (r *registry) restore(s registrySnapshot) {
	r.texts = s.texts
	r.metadata = s.metadata
	r.owners = s.owners
	r.infos = s.infos
	r.order = s.order
}

func (r *registry) list() []domain.DocumentInfo {
	out := make([]domain.DocumentInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.infos[id])
	}
	return out
}

func (r *registry) get(documentID string) (domain.DocumentInfo, bool) {
	info, ok := r.infos[documentID]
	return info, ok
}

// allowedPositions resolves metadata filters into the set of candidate
// positions, applied as a pre-pass over the whole corpus. A nil result means
// "no filtering".
func (r *registry) allowedPositions(filters domain.SearchFilters) map[int]struct{} {
	if filters.Empty() {
		return nil
	}
	allowed := make(map[int]struct{})
	for i, meta := range r.metadata {
		if filters.DocumentID != "" {
			if id, _ := meta["document_id"].(string); id != filters.DocumentID {
				continue
			}
		}
		if filters.FileType != "" {
			if ft, _ := meta["file_type"].(string); ft != string(filters.FileType) {
				continue
			}
		}
		allowed[i] = struct{}{}
	}
	return allowed
}
