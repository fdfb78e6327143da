package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"

	"github.com/autoquest/autoquest/internal/core/domain"
)

type fakeEngine struct {
	docs map[string]domain.DocumentInfo

	addedPath     string
	addedType     domain.DocumentType
	addedMetadata map[string]any
	addErr        error

	retrieved    []domain.Source
	retrieveOpts domain.RetrieveOptions
}

func newFakeEngine() *fakeEngine {
	return &fakeEngine{docs: map[string]domain.DocumentInfo{}}
}

func (f *fakeEngine) AddDocument(_ context.Context, filePath string, fileType domain.DocumentType, metadata map[string]any) (string, error) {
	if f.addErr != nil {
		return "", f.addErr
	}
	f.addedPath = filePath
	f.addedType = fileType
	f.addedMetadata = metadata

	id := "doc_000000000001"
	name, _ := metadata["file_name"].(string)
	f.docs[id] = domain.DocumentInfo{
		ID:         id,
		FileName:   name,
		FileType:   fileType,
		ChunkCount: 3,
	}
	return id, nil
}

func (f *fakeEngine) Retrieve(_ context.Context, _ string, opts domain.RetrieveOptions) ([]domain.Source, error) {
	f.retrieveOpts = opts
	if f.retrieved == nil {
		return []domain.Source{}, nil
	}
	return f.retrieved, nil
}

func (f *fakeEngine) DeleteDocument(_ context.Context, documentID string) (bool, error) {
	if _, ok := f.docs[documentID]; !ok {
		return false, nil
	}
	delete(f.docs, documentID)
	return true, nil
}

func (f *fakeEngine) ListDocuments() []domain.DocumentInfo {
	out := make([]domain.DocumentInfo, 0, len(f.docs))
	for _, info := range f.docs {
		out = append(out, info)
	}
	return out
}

func (f *fakeEngine) GetDocumentInfo(documentID string) (domain.DocumentInfo, bool) {
	info, ok := f.docs[documentID]
	return info, ok
}

func (f *fakeEngine) Stats() domain.Stats {
	total := 0
	for _, info := range f.docs {
		total += info.ChunkCount
	}
	return domain.Stats{
		TotalDocuments: len(f.docs),
		TotalChunks:    total,
		BackendType:    "flat",
	}
}

type fakeAsker struct {
	answer  domain.Answer
	err     error
	gotOpts domain.RetrieveOptions
}

func (f *fakeAsker) Ask(_ context.Context, _ string, opts domain.RetrieveOptions) (domain.Answer, error) {
	f.gotOpts = opts
	if f.err != nil {
		return domain.Answer{}, f.err
	}
	return f.answer, nil
}

type fakeBus struct {
	documentEvents []domain.DocumentEvent
	queryEvents    []domain.QueryEvent
	publishErr     error
}

func (f *fakeBus) PublishDocumentEvent(_ context.Context, event domain.DocumentEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.documentEvents = append(f.documentEvents, event)
	return nil
}

func (f *fakeBus) PublishQueryEvent(_ context.Context, event domain.QueryEvent) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.queryEvents = append(f.queryEvents, event)
	return nil
}

func (f *fakeBus) SubscribeDocumentEvents(context.Context, func(context.Context, domain.DocumentEvent) error) error {
	return nil
}

func (f *fakeBus) SubscribeQueryEvents(context.Context, func(context.Context, domain.QueryEvent) error) error {
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestRouter(t *testing.T, engine *fakeEngine, asker *fakeAsker, bus *fakeBus, opts Options) http.Handler {
	t.Helper()
	if opts.UploadDir == "" {
		opts.UploadDir = t.TempDir()
	}
	return NewRouter(engine, asker, bus, opts, nil, testLogger()).Handler()
}

func multipartBody(t *testing.T, fileName, content, metadata string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := part.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if metadata != "" {
		if err := mw.WriteField("metadata", metadata); err != nil {
			t.Fatal(err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	engine := newFakeEngine()
	bus := &fakeBus{}
	uploadDir := t.TempDir()
	handler := newTestRouter(t, engine, &fakeAsker{}, bus, Options{UploadDir: uploadDir})

	body, contentType := multipartBody(t, "whales.txt", "whales are mammals", `{"team":"biology"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var info domain.DocumentInfo
	if err := json.Unmarshal(rec.Body.Bytes(), &info); err != nil {
		t.Fatal(err)
	}
	if info.ID != "doc_000000000001" || info.FileName != "whales.txt" {
		t.Errorf("info = %+v", info)
	}

	if engine.addedType != domain.DocumentTypeTXT {
		t.Errorf("file type = %q, want txt", engine.addedType)
	}
	if engine.addedMetadata["team"] != "biology" {
		t.Errorf("caller metadata not forwarded: %v", engine.addedMetadata)
	}
	if engine.addedMetadata["file_name"] != "whales.txt" {
		t.Errorf("file_name not attached: %v", engine.addedMetadata)
	}

	// The spooled upload is removed once indexed.
	entries, err := os.ReadDir(uploadDir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("upload dir still holds %d files", len(entries))
	}

	if len(bus.documentEvents) != 1 {
		t.Fatalf("document events = %d, want 1", len(bus.documentEvents))
	}
	event := bus.documentEvents[0]
	if event.Kind != domain.DocumentAdded || event.DocumentID != info.ID || event.ChunkCount != 3 {
		t.Errorf("event = %+v", event)
	}
}

func TestUploadDocumentRejectsUnknownExtension(t *testing.T) {
	handler := newTestRouter(t, newFakeEngine(), &fakeAsker{}, &fakeBus{}, Options{})

	body, contentType := multipartBody(t, "archive.zip", "binary", "")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestUploadDocumentMapsEngineErrors(t *testing.T) {
	engine := newFakeEngine()
	engine.addErr = domain.WrapError(domain.ErrInvalidInput, "engine.add", domain.ErrInvalidInput)
	handler := newTestRouter(t, engine, &fakeAsker{}, &fakeBus{}, Options{})

	body, contentType := multipartBody(t, "empty.txt", "", "")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestDeleteDocument(t *testing.T) {
	engine := newFakeEngine()
	engine.docs["doc_a"] = domain.DocumentInfo{ID: "doc_a", FileName: "a.txt", FileType: domain.DocumentTypeTXT, ChunkCount: 2}
	bus := &fakeBus{}
	handler := newTestRouter(t, engine, &fakeAsker{}, bus, Options{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/documents/doc_a", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(bus.documentEvents) != 1 || bus.documentEvents[0].Kind != domain.DocumentDeleted {
		t.Fatalf("events = %+v", bus.documentEvents)
	}
	if bus.documentEvents[0].ChunkCount != 2 {
		t.Errorf("deleted event chunk count = %d, want 2", bus.documentEvents[0].ChunkCount)
	}

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodDelete, "/v1/documents/doc_a", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete status = %d, want 404", rec.Code)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	handler := newTestRouter(t, newFakeEngine(), &fakeAsker{}, &fakeBus{}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/documents/doc_missing", nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}

func TestListDocuments(t *testing.T) {
	engine := newFakeEngine()
	engine.docs["doc_a"] = domain.DocumentInfo{ID: "doc_a"}
	handler := newTestRouter(t, engine, &fakeAsker{}, &fakeBus{}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Count int `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 {
		t.Errorf("count = %d, want 1", resp.Count)
	}
}

func TestAsk(t *testing.T) {
	asker := &fakeAsker{
		answer: domain.Answer{
			Text:       "Based on the context provided, whales are mammals.",
			Confidence: 0.8,
			Model:      "llama3.1:8b",
			Sources:    []domain.Source{{DocumentID: "doc_a", SimilarityScore: 0.9}},
		},
	}
	bus := &fakeBus{}
	handler := newTestRouter(t, newFakeEngine(), asker, bus, Options{DefaultTopK: 7})

	body := strings.NewReader(`{"question":"are whales mammals?"}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var answer domain.Answer
	if err := json.Unmarshal(rec.Body.Bytes(), &answer); err != nil {
		t.Fatal(err)
	}
	if answer.Text != asker.answer.Text || len(answer.Sources) != 1 {
		t.Errorf("answer = %+v", answer)
	}

	if asker.gotOpts.TopK != 7 {
		t.Errorf("top k = %d, want router default 7", asker.gotOpts.TopK)
	}

	if len(bus.queryEvents) != 1 {
		t.Fatalf("query events = %d, want 1", len(bus.queryEvents))
	}
	event := bus.queryEvents[0]
	if event.Question != "are whales mammals?" || event.SourceCount != 1 || event.Model != "llama3.1:8b" {
		t.Errorf("event = %+v", event)
	}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	handler := newTestRouter(t, newFakeEngine(), &fakeAsker{}, &fakeBus{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"   "}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestAskMapsTemporaryErrors(t *testing.T) {
	asker := &fakeAsker{err: domain.WrapError(domain.ErrTemporary, "ollama.generate", domain.ErrTemporary)}
	handler := newTestRouter(t, newFakeEngine(), asker, &fakeBus{}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"q"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestAskSucceedsWhenPublishFails(t *testing.T) {
	asker := &fakeAsker{answer: domain.Answer{Text: "no context", Sources: []domain.Source{}}}
	handler := newTestRouter(t, newFakeEngine(), asker, &fakeBus{publishErr: domain.ErrTemporary}, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/ask", strings.NewReader(`{"question":"q"}`))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200 despite publish failure", rec.Code)
	}
}

func TestSearch(t *testing.T) {
	engine := newFakeEngine()
	engine.retrieved = []domain.Source{
		{DocumentID: "doc_a", ChunkText: "whales", SimilarityScore: 0.92},
		{DocumentID: "doc_a", ChunkText: "orcas", SimilarityScore: 0.81},
	}
	handler := newTestRouter(t, engine, &fakeAsker{}, &fakeBus{}, Options{})

	body := strings.NewReader(`{"query":"whales","top_k":2,"filters":{"file_type":"txt"}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/search", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Sources []domain.Source `json:"sources"`
		Count   int             `json:"count"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 2 || len(resp.Sources) != 2 {
		t.Errorf("resp = %+v", resp)
	}
	if engine.retrieveOpts.TopK != 2 || engine.retrieveOpts.Filters.FileType != domain.DocumentTypeTXT {
		t.Errorf("opts = %+v", engine.retrieveOpts)
	}
}

func TestSearchRejectsUnknownFileTypeFilter(t *testing.T) {
	handler := newTestRouter(t, newFakeEngine(), &fakeAsker{}, &fakeBus{}, Options{})

	body := strings.NewReader(`{"query":"whales","filters":{"file_type":"exe"}}`)
	req := httptest.NewRequest(http.MethodPost, "/v1/search", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHealthzReportsStats(t *testing.T) {
	engine := newFakeEngine()
	engine.docs["doc_a"] = domain.DocumentInfo{ID: "doc_a", ChunkCount: 4}
	handler := newTestRouter(t, engine, &fakeAsker{}, &fakeBus{}, Options{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var resp struct {
		Status      string `json:"status"`
		Backend     string `json:"backend"`
		TotalChunks int    `json:"total_chunks"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Status != "ok" || resp.Backend != "flat" || resp.TotalChunks != 4 {
		t.Errorf("resp = %+v", resp)
	}
}
