package httpadapter

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autoquest/autoquest/internal/core/domain"
)

const maxUploadBytes = 64 << 20

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file field is required")
		return
	}
	defer file.Close()

	fileType, ok := documentTypeFor(header.Filename)
	if !ok {
		writeError(w, http.StatusBadRequest, "unsupported file type")
		return
	}

	metadata, err := parseMetadataField(r.FormValue("metadata"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "metadata must be a JSON object")
		return
	}
	metadata["file_name"] = header.Filename

	path, err := rt.saveUpload(file, header.Filename)
	if err != nil {
		rt.logger.Error("upload save failed", "file", header.Filename, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to store upload")
		return
	}
	defer os.Remove(path)

	documentID, err := rt.engine.AddDocument(r.Context(), path, fileType, metadata)
	if err != nil {
		rt.logger.Warn("document ingestion failed", "file", header.Filename, "error", err)
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	info, _ := rt.engine.GetDocumentInfo(documentID)
	rt.publishDocumentEvent(r.Context(), domain.DocumentEvent{
		ID:         uuid.NewString(),
		Kind:       domain.DocumentAdded,
		DocumentID: documentID,
		FileName:   info.FileName,
		FileType:   info.FileType,
		ChunkCount: info.ChunkCount,
		OccurredAt: time.Now().UTC(),
	})

	writeJSON(w, http.StatusCreated, info)
}

func (rt *Router) listDocuments(w http.ResponseWriter, _ *http.Request) {
	docs := rt.engine.ListDocuments()
	writeJSON(w, http.StatusOK, map[string]any{
		"documents": docs,
		"count":     len(docs),
	})
}

func (rt *Router) getDocument(w http.ResponseWriter, _ *http.Request, id string) {
	info, ok := rt.engine.GetDocumentInfo(id)
	if !ok {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (rt *Router) deleteDocument(w http.ResponseWriter, r *http.Request, id string) {
	// Snapshot before the delete so the event still carries provenance.
	info, _ := rt.engine.GetDocumentInfo(id)

	deleted, err := rt.engine.DeleteDocument(r.Context(), id)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "document not found")
		return
	}

	rt.publishDocumentEvent(r.Context(), domain.DocumentEvent{
		ID:         uuid.NewString(),
		Kind:       domain.DocumentDeleted,
		DocumentID: id,
		FileName:   info.FileName,
		FileType:   info.FileType,
		ChunkCount: info.ChunkCount,
		OccurredAt: time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, map[string]any{
		"document_id": id,
		"deleted":     true,
	})
}

// saveUpload spools the request body to the upload directory so the
// processor can read it from disk. The file is removed once indexed.
func (rt *Router) saveUpload(src io.Reader, originalName string) (string, error) {
	if err := os.MkdirAll(rt.uploadDir, 0o755); err != nil {
		return "", err
	}
	name := uuid.NewString() + strings.ToLower(filepath.Ext(originalName))
	path := filepath.Join(rt.uploadDir, name)

	dst, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(path)
		return "", err
	}
	if err := dst.Close(); err != nil {
		os.Remove(path)
		return "", err
	}
	return path, nil
}

func documentTypeFor(fileName string) (domain.DocumentType, bool) {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(fileName)), ".")
	return domain.ParseDocumentType(ext)
}

func parseMetadataField(raw string) (map[string]any, error) {
	metadata := map[string]any{}
	if strings.TrimSpace(raw) == "" {
		return metadata, nil
	}
	if err := json.Unmarshal([]byte(raw), &metadata); err != nil {
		return nil, err
	}
	return metadata, nil
}

func (rt *Router) publishDocumentEvent(ctx context.Context, event domain.DocumentEvent) {
	if rt.bus == nil {
		return
	}
	if err := rt.bus.PublishDocumentEvent(ctx, event); err != nil {
		rt.logger.Warn("document event publish failed",
			"event_id", event.ID,
			"document_id", event.DocumentID,
			"error", err,
		)
	}
}
