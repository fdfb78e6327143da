// Package httpadapter exposes the retrieval engine over a JSON HTTP API.
package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/autoquest/autoquest/internal/core/ports"
	"github.com/autoquest/autoquest/internal/observability/metrics"
)

const serviceName = "api"

type Router struct {
	engine ports.RetrievalEngine
	asker  ports.QuestionService
	bus    ports.EventBus

	uploadDir   string
	defaultTopK int
	apiToken    string

	limiter *rate.Limiter
	metrics *metrics.HTTPServerMetrics
	logger  *slog.Logger
}

type Options struct {
	UploadDir      string
	DefaultTopK    int
	APIToken       string
	RateLimitRPS   float64
	RateLimitBurst int
}

func NewRouter(
	engine ports.RetrievalEngine,
	asker ports.QuestionService,
	bus ports.EventBus,
	opts Options,
	m *metrics.HTTPServerMetrics,
	logger *slog.Logger,
) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.DefaultTopK <= 0 {
		opts.DefaultTopK = 5
	}
	var limiter *rate.Limiter
	if opts.RateLimitRPS > 0 {
		burst := opts.RateLimitBurst
		if burst <= 0 {
			burst = int(opts.RateLimitRPS)
			if burst < 1 {
				burst = 1
			}
		}
		limiter = rate.NewLimiter(rate.Limit(opts.RateLimitRPS), burst)
	}
	return &Router{
		engine:      engine,
		asker:       asker,
		bus:         bus,
		uploadDir:   opts.UploadDir,
		defaultTopK: opts.DefaultTopK,
		apiToken:    opts.APIToken,
		limiter:     limiter,
		metrics:     m,
		logger:      logger,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("/metrics", rt.metrics.Handler())
	}
	mux.HandleFunc("/v1/documents", rt.documents)
	mux.HandleFunc("/v1/documents/", rt.documentByID)
	mux.HandleFunc("/v1/ask", rt.ask)
	mux.HandleFunc("/v1/search", rt.search)

	var handler http.Handler = mux
	handler = rt.authMiddleware(handler)
	handler = rt.rateLimitMiddleware(handler)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	handler = requestIDMiddleware(handler)
	return handler
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	stats := rt.engine.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"status":          "ok",
		"backend":         stats.BackendType,
		"total_documents": stats.TotalDocuments,
		"total_chunks":    stats.TotalChunks,
	})
}

func (rt *Router) documents(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (rt *Router) documentByID(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, http.StatusBadRequest, "document id is required")
		return
	}

	switch r.Method {
	case http.MethodGet:
		rt.getDocument(w, r, id)
	case http.MethodDelete:
		rt.deleteDocument(w, r, id)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (rt *Router) observeRAG(endpoint string, sourceCount int, duration time.Duration) {
	if rt.metrics == nil {
		return
	}
	rt.metrics.RecordRAGObservation(serviceName, endpoint, sourceCount, duration)
}
