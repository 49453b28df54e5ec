package testutil

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"strings"
	"sync"
	"testing"
	"time"
)

// BackendDocument is the server-side state of one document
type BackendDocument struct {
	ID         string
	Filename   string
	Status     string
	Content    string
	Pages      []string
	PreviewURL string
	Error      string
	URL        string
	CreatedAt  time.Time
}

// BackendMessage is one stored chat turn
type BackendMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type failure struct {
	status int
	detail string
}

// Backend is an httptest server speaking the OCR/chat HTTP API under /api
type Backend struct {
	*httptest.Server

	mu         sync.Mutex
	documents  map[string]*BackendDocument
	history    map[string][]BackendMessage
	nextID     int
	requests   []string
	requestIDs []string
	failures   map[string]failure

	// InitialStatus is the status of newly submitted documents
	InitialStatus string
	// Answer builds the assistant reply for a chat query
	Answer func(query string) string

	delay time.Duration
}

// NewBackend starts a backend closed at the end of the test
func NewBackend(t *testing.T) *Backend {
	t.Helper()
	b := &Backend{
		documents:     make(map[string]*BackendDocument),
		history:       make(map[string][]BackendMessage),
		failures:      make(map[string]failure),
		InitialStatus: "processing",
		Answer:        func(query string) string { return "Answer: " + query },
	}

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/documents/upload", b.handleUpload)
	mux.HandleFunc("POST /api/documents/process-url", b.handleProcessURL)
	mux.HandleFunc("GET /api/documents/{id}", b.handleGetDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", b.handleDelete)
	mux.HandleFunc("POST /api/chat/{id}", b.handleChat)
	mux.HandleFunc("GET /api/chat/{id}/history", b.handleHistory)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	b.Server = httptest.NewServer(b.middleware(mux))
	t.Cleanup(b.Close)
	return b
}

// APIURL returns the base URL clients are configured with
func (b *Backend) APIURL() string {
	return b.URL + "/api"
}

func (b *Backend) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.requests = append(b.requests, key)
		b.requestIDs = append(b.requestIDs, r.Header.Get("X-Request-ID"))
		f, failing := b.failures[key]
		delete(b.failures, key)
		delay := b.delay
		b.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if failing {
			writeDetail(w, f.status, f.detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// SetDelay delays every following request before it is handled
func (b *Backend) SetDelay(d time.Duration) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.delay = d
}

// FailNext makes the next request matching "METHOD /path" fail with status and detail
func (b *Backend) FailNext(request string, status int, detail string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[request] = failure{status: status, detail: detail}
}

// Requests returns the "METHOD /path" of every request received
func (b *Backend) Requests() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requests...)
}

// RequestIDs returns the X-Request-ID header of every request received
func (b *Backend) RequestIDs() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]string(nil), b.requestIDs...)
}

// CountRequests returns how many requests matched "METHOD /path"
func (b *Backend) CountRequests(request string) int {
	n := 0
	for _, r := range b.Requests() {
		if r == request {
			n++
		}
	}
	return n
}

// AddDocument stores a document and returns its id
func (b *Backend) AddDocument(doc BackendDocument) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if doc.ID == "" {
		b.nextID++
		doc.ID = fmt.Sprintf("doc-%d", b.nextID)
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	b.documents[doc.ID] = &doc
	return doc.ID
}

// Complete marks a document completed with the given page texts
func (b *Backend) Complete(id string, pages ...string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if doc, ok := b.documents[id]; ok {
		doc.Status = "completed"
		doc.Pages = pages
		doc.Content = strings.Join(pages, "\n\n")
		doc.Error = ""
	}
}

// Fail marks a document failed
func (b *Backend) Fail(id, reason string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if doc, ok := b.documents[id]; ok {
		doc.Status = "failed"
		doc.Error = reason
	}
}

// Document returns a copy of the stored document
func (b *Backend) Document(id string) (BackendDocument, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	doc, ok := b.documents[id]
	if !ok {
		return BackendDocument{}, false
	}
	return *doc, true
}

// History returns the stored chat turns of a document
func (b *Backend) History(id string) []BackendMessage {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]BackendMessage(nil), b.history[id]...)
}

// AddHistory appends stored chat turns
func (b *Backend) AddHistory(id string, messages ...BackendMessage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.history[id] = append(b.history[id], messages...)
}

func (b *Backend) handleUpload(w http.ResponseWriter, r *http.Request) {
	file, header, err := r.FormFile("file")
	if err != nil {
		writeDetail(w, http.StatusBadRequest, "No file provided")
		return
	}
	defer file.Close()
	if _, err := io.Copy(io.Discard, file); err != nil {
		writeDetail(w, http.StatusBadRequest, "Failed to read file")
		return
	}

	switch strings.ToLower(path.Ext(header.Filename)) {
	case ".pdf", ".png", ".jpg", ".jpeg":
	default:
		writeDetail(w, http.StatusBadRequest, "Unsupported file type")
		return
	}

	id := b.AddDocument(BackendDocument{Filename: header.Filename, Status: b.InitialStatus})
	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": id,
		"filename":    header.Filename,
		"status":      b.InitialStatus,
		"message":     "Document uploaded successfully",
	})
}

func (b *Backend) handleProcessURL(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.URL == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "url is required")
		return
	}

	filename := path.Base(strings.SplitN(req.URL, "?", 2)[0])
	id := b.AddDocument(BackendDocument{Filename: filename, Status: b.InitialStatus, URL: req.URL})
	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": id,
		"filename":    filename,
		"status":      b.InitialStatus,
		"message":     "URL submitted for processing",
	})
}

func (b *Backend) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, ok := b.Document(r.PathValue("id"))
	if !ok {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}

	body := map[string]interface{}{
		"document_id": doc.ID,
		"filename":    doc.Filename,
		"status":      doc.Status,
		"created_at":  doc.CreatedAt.Format("2006-01-02T15:04:05.999999"),
	}
	if doc.Status == "completed" {
		pages := make([]map[string]interface{}, 0, len(doc.Pages))
		for i, text := range doc.Pages {
			pages = append(pages, map[string]interface{}{"page_num": i + 1, "text": text})
		}
		body["content"] = doc.Content
		body["pages"] = pages
	}
	if doc.PreviewURL != "" {
		body["preview_url"] = doc.PreviewURL
	}
	if doc.Error != "" {
		body["error"] = doc.Error
	}
	if doc.URL != "" {
		body["type"] = "url"
		body["url"] = doc.URL
	}
	writeJSON(w, http.StatusOK, body)
}

func (b *Backend) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	b.mu.Lock()
	_, ok := b.documents[id]
	delete(b.documents, id)
	delete(b.history, id)
	b.mu.Unlock()

	if !ok {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Document deleted"})
}

func (b *Backend) handleChat(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	var req struct {
		Query string `json:"query"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Query) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "query is required")
		return
	}

	doc, ok := b.Document(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	if doc.Status != "completed" {
		writeDetail(w, http.StatusBadRequest, "Document processing not completed")
		return
	}

	answer := b.Answer(req.Query)
	now := time.Now().UTC().Format(time.RFC3339)
	b.AddHistory(id,
		BackendMessage{Role: "user", Content: req.Query, Timestamp: now},
		BackendMessage{Role: "assistant", Content: answer, Timestamp: now},
	)
	writeJSON(w, http.StatusOK, map[string]string{
		"document_id": id,
		"query":       req.Query,
		"response":    answer,
	})
}

func (b *Backend) handleHistory(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if _, ok := b.Document(id); !ok {
		writeDetail(w, http.StatusNotFound, "Document not found")
		return
	}
	messages := b.History(id)
	if messages == nil {
		messages = []BackendMessage{}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"document_id": id,
		"messages":    messages,
	})
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
