package httpadapter

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/autoquest/autoquest/internal/core/domain"
)

type queryRequest struct {
	Question            string   `json:"question"`
	Query               string   `json:"query"`
	TopK                int      `json:"top_k"`
	SimilarityThreshold *float64 `json:"similarity_threshold"`
	Filters             struct {
		DocumentID string `json:"document_id"`
		FileType   string `json:"file_type"`
	} `json:"filters"`
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, opts, ok := rt.decodeQuery(w, r)
	if !ok {
		return
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		return
	}

	start := time.Now()
	answer, err := rt.asker.Ask(r.Context(), question, opts)
	if err != nil {
		rt.logger.Warn("ask failed", "error", err)
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}
	duration := time.Since(start)

	rt.observeRAG("ask", len(answer.Sources), duration)
	rt.publishQueryEvent(r, domain.QueryEvent{
		ID:          uuid.NewString(),
		Question:    question,
		TopK:        opts.TopK,
		SourceCount: len(answer.Sources),
		Confidence:  answer.Confidence,
		Model:       answer.Model,
		DurationMS:  float64(duration.Microseconds()) / 1000.0,
		OccurredAt:  time.Now().UTC(),
	})

	writeJSON(w, http.StatusOK, answer)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	req, opts, ok := rt.decodeQuery(w, r)
	if !ok {
		return
	}
	query := strings.TrimSpace(req.Query)
	if query == "" {
		query = strings.TrimSpace(req.Question)
	}
	if query == "" {
		writeError(w, http.StatusBadRequest, "query is required")
		return
	}

	start := time.Now()
	sources, err := rt.engine.Retrieve(r.Context(), query, opts)
	if err != nil {
		writeError(w, mapErrorToHTTPStatus(err), err.Error())
		return
	}

	rt.observeRAG("search", len(sources), time.Since(start))
	writeJSON(w, http.StatusOK, map[string]any{
		"sources": sources,
		"count":   len(sources),
	})
}

func (rt *Router) decodeQuery(w http.ResponseWriter, r *http.Request) (queryRequest, domain.RetrieveOptions, bool) {
	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return queryRequest{}, domain.RetrieveOptions{}, false
	}

	opts := domain.RetrieveOptions{
		TopK:                req.TopK,
		SimilarityThreshold: req.SimilarityThreshold,
	}
	if opts.TopK <= 0 {
		opts.TopK = rt.defaultTopK
	}
	opts.Filters.DocumentID = strings.TrimSpace(req.Filters.DocumentID)
	if ft := strings.TrimSpace(req.Filters.FileType); ft != "" {
		fileType, ok := domain.ParseDocumentType(ft)
		if !ok {
			writeError(w, http.StatusBadRequest, "unknown file_type filter")
			return queryRequest{}, domain.RetrieveOptions{}, false
		}
		opts.Filters.FileType = fileType
	}
	return req, opts, true
}

func (rt *Router) publishQueryEvent(r *http.Request, event domain.QueryEvent) {
	if rt.bus == nil {
		return
	}
	if err := rt.bus.PublishQueryEvent(r.Context(), event); err != nil {
		rt.logger.Warn("query event publish failed",
			"event_id", event.ID,
			"error", err,
		)
	}
}
