// Package gateway implements the remote Gateway over the backend's HTTP API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/iksnae/doc-session/internal"
)

const maxResponseBytes = 32 << 20

// Client talks to the OCR/chat backend
type Client struct {
	BaseURL string
	HTTP    *http.Client

	ReadTimeout   time.Duration
	ChatTimeout   time.Duration
	UploadTimeout time.Duration
}

var _ internal.Gateway = (*Client)(nil)

// New creates a client with the default timeouts
func New(baseURL string) *Client {
	defaults := internal.DefaultConfig()
	return &Client{
		BaseURL:       strings.TrimRight(baseURL, "/"),
		HTTP:          &http.Client{},
		ReadTimeout:   defaults.ReadTimeout,
		ChatTimeout:   defaults.ChatTimeout,
		UploadTimeout: defaults.UploadTimeout,
	}
}

// NewFromConfig creates a client from the client settings
func NewFromConfig(cfg internal.Config) *Client {
	c := New(cfg.APIURL)
	c.ReadTimeout = cfg.ReadTimeout
	c.ChatTimeout = cfg.ChatTimeout
	c.UploadTimeout = cfg.UploadTimeout
	return c
}

// --- Wire types ---

type submitResponse struct {
	DocumentID string `json:"document_id"`
	ID         string `json:"id"`
	Filename   string `json:"filename"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

type pageContent struct {
	PageNum int    `json:"page_num"`
	Text    string `json:"text"`
}

type documentResponse struct {
	DocumentID    string        `json:"document_id"`
	ID            string        `json:"id"`
	Filename      string        `json:"filename"`
	Status        string        `json:"status"`
	Content       *string       `json:"content"`
	ExtractedText *string       `json:"extracted_text"`
	Pages         []pageContent `json:"pages"`
	PageCount     int           `json:"page_count"`
	PreviewURL    string        `json:"preview_url"`
	Error         string        `json:"error"`
	CreatedAt     string        `json:"created_at"`
	Type          string        `json:"type"`
	URL           string        `json:"url"`
}

type processURLRequest struct {
	URL string `json:"url"`
}

type chatRequest struct {
	Query string `json:"query"`
}

type chatResponse struct {
	Answer    string `json:"answer"`
	Response  string `json:"response"`
	Timestamp string `json:"timestamp"`
}

type historyMessage struct {
	Role      string `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type historyResponse struct {
	DocumentID string           `json:"document_id"`
	Messages   []historyMessage `json:"messages"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// --- Gateway implementation ---

// Upload sends a file as multipart form data
func (c *Client) Upload(ctx context.Context, file internal.FileUpload) (internal.SubmitResult, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", file.Name)
	if err != nil {
		return internal.SubmitResult{}, internal.NewTransportError("upload", "", fmt.Errorf("create form file: %w", err))
	}
	if _, err := io.Copy(part, file.Content); err != nil {
		return internal.SubmitResult{}, internal.NewTransportError("upload", "", fmt.Errorf("read file: %w", err))
	}
	if err := writer.Close(); err != nil {
		return internal.SubmitResult{}, internal.NewTransportError("upload", "", fmt.Errorf("close form: %w", err))
	}

	var resp submitResponse
	err = c.do(ctx, call{
		op:          "upload",
		method:      http.MethodPost,
		path:        "/documents/upload",
		body:        &body,
		contentType: writer.FormDataContentType(),
		timeout:     c.UploadTimeout,
	}, &resp)
	if err != nil {
		return internal.SubmitResult{}, err
	}
	return resp.result(), nil
}

// ProcessURL asks the backend to fetch a remote document
func (c *Client) ProcessURL(ctx context.Context, rawURL string) (internal.SubmitResult, error) {
	payload, err := json.Marshal(processURLRequest{URL: rawURL})
	if err != nil {
		return internal.SubmitResult{}, internal.NewTransportError("process-url", "", fmt.Errorf("marshal request: %w", err))
	}

	var resp submitResponse
	err = c.do(ctx, call{
		op:          "process-url",
		method:      http.MethodPost,
		path:        "/documents/process-url",
		body:        bytes.NewReader(payload),
		contentType: "application/json",
		timeout:     c.UploadTimeout,
	}, &resp)
	if err != nil {
		return internal.SubmitResult{}, err
	}
	return resp.result(), nil
}

// GetDocument reads the status and, once completed, the extracted text
func (c *Client) GetDocument(ctx context.Context, id string) (internal.Document, error) {
	var resp documentResponse
	err := c.do(ctx, call{
		op:      "get",
		id:      id,
		method:  http.MethodGet,
		path:    "/documents/" + url.PathEscape(id),
		timeout: c.ReadTimeout,
	}, &resp)
	if err != nil {
		return internal.Document{}, err
	}
	return resp.document(id), nil
}

// Chat sends one query about a completed document
func (c *Client) Chat(ctx context.Context, id, query string) (internal.ChatReply, error) {
	payload, err := json.Marshal(chatRequest{Query: query})
	if err != nil {
		return internal.ChatReply{}, internal.NewTransportError("chat", id, fmt.Errorf("marshal request: %w", err))
	}

	var resp chatResponse
	err = c.do(ctx, call{
		op:          "chat",
		id:          id,
		method:      http.MethodPost,
		path:        "/chat/" + url.PathEscape(id),
		body:        bytes.NewReader(payload),
		contentType: "application/json",
		timeout:     c.ChatTimeout,
	}, &resp)
	if err != nil {
		return internal.ChatReply{}, err
	}

	answer := resp.Answer
	if answer == "" {
		answer = resp.Response
	}
	return internal.ChatReply{Answer: answer, Timestamp: parseTime(resp.Timestamp)}, nil
}

// ChatHistory reads the stored conversation of a document
func (c *Client) ChatHistory(ctx context.Context, id string) ([]internal.ConversationMessage, error) {
	var resp historyResponse
	err := c.do(ctx, call{
		op:      "history",
		id:      id,
		method:  http.MethodGet,
		path:    "/chat/" + url.PathEscape(id) + "/history",
		timeout: c.ReadTimeout,
	}, &resp)
	if err != nil {
		return nil, err
	}

	messages := make([]internal.ConversationMessage, 0, len(resp.Messages))
	for i, m := range resp.Messages {
		role := internal.RoleAssistant
		if m.Role == string(internal.RoleUser) {
			role = internal.RoleUser
		}
		messages = append(messages, internal.ConversationMessage{
			ID:        fmt.Sprintf("%s-history-%d", id, i),
			Role:      role,
			Content:   m.Content,
			Timestamp: parseTime(m.Timestamp),
		})
	}
	return messages, nil
}

// Delete removes the document on the backend
func (c *Client) Delete(ctx context.Context, id string) error {
	return c.do(ctx, call{
		op:      "delete",
		id:      id,
		method:  http.MethodDelete,
		path:    "/documents/" + url.PathEscape(id),
		timeout: c.ReadTimeout,
	}, nil)
}

// Health checks that the backend answers its health endpoint
func (c *Client) Health(ctx context.Context) error {
	root := strings.TrimSuffix(c.BaseURL, "/api")
	return c.do(ctx, call{
		op:      "health",
		method:  http.MethodGet,
		url:     root + "/health",
		timeout: c.ReadTimeout,
	}, nil)
}

// --- Request plumbing ---

type call struct {
	op          string
	id          string
	method      string
	path        string
	url         string // overrides BaseURL+path
	body        io.Reader
	contentType string
	timeout     time.Duration
}

func (c *Client) do(ctx context.Context, cl call, out interface{}) error {
	if cl.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cl.timeout)
		defer cancel()
	}

	target := cl.url
	if target == "" {
		target = c.BaseURL + cl.path
	}
	req, err := http.NewRequestWithContext(ctx, cl.method, target, cl.body)
	if err != nil {
		return internal.NewTransportError(cl.op, cl.id, fmt.Errorf("create request: %w", err))
	}
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())

	internal.LogDebug("%s %s", cl.method, target)
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return transportError(cl, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return transportError(cl, fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return statusError(cl, resp.StatusCode, body)
	}

	if out == nil || len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return internal.NewTransportError(cl.op, cl.id, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func transportError(cl call, err error) error {
	e := internal.NewTransportError(cl.op, cl.id, err)
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		e.Timeout = true
		e.Message = "request timed out"
		if cl.timeout > 0 {
			e.Message = fmt.Sprintf("request timed out after %s", cl.timeout)
		}
	}
	return e
}

// statusError maps a non-2xx response onto an error kind
func statusError(cl call, status int, body []byte) error {
	detail := errorDetail(body)
	notCompleted := strings.Contains(strings.ToLower(detail), "not completed")

	switch {
	case status == http.StatusNotFound:
		return internal.NewNotFoundError(cl.op, cl.id)
	case status == http.StatusConflict, notCompleted && (status == http.StatusBadRequest || status == http.StatusUnprocessableEntity):
		e := internal.NewNotReadyError(cl.op, cl.id, "")
		if detail != "" {
			e.Message = detail
		}
		return e
	case status == http.StatusBadRequest, status == http.StatusRequestEntityTooLarge, status == http.StatusUnprocessableEntity:
		if detail == "" {
			detail = http.StatusText(status)
		}
		e := internal.NewValidationError(cl.op, detail)
		e.DocumentID = cl.id
		return e
	default:
		if detail == "" {
			detail = http.StatusText(status)
		}
		e := internal.NewTransportError(cl.op, cl.id, fmt.Errorf("status %d", status))
		e.Message = fmt.Sprintf("server error (%d): %s", status, detail)
		return e
	}
}

// errorDetail extracts the "detail" field, which is a string or a list of validation errors
func errorDetail(body []byte) string {
	var resp errorResponse
	if err := json.Unmarshal(body, &resp); err != nil || len(resp.Detail) == 0 {
		return strings.TrimSpace(string(body))
	}
	var s string
	if err := json.Unmarshal(resp.Detail, &s); err == nil {
		return s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(resp.Detail, &items); err == nil {
		msgs := make([]string, 0, len(items))
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		return strings.Join(msgs, "; ")
	}
	return string(resp.Detail)
}

func (r submitResponse) result() internal.SubmitResult {
	id := r.DocumentID
	if id == "" {
		id = r.ID
	}
	return internal.SubmitResult{
		ID:       id,
		Filename: r.Filename,
		Status:   parseStatus(r.Status),
		Message:  r.Message,
	}
}

func (r documentResponse) document(id string) internal.Document {
	doc := internal.Document{
		ID:         id,
		Filename:   r.Filename,
		Status:     parseStatus(r.Status),
		PreviewURL: r.PreviewURL,
		Error:      r.Error,
		PageCount:  r.PageCount,
		CreatedAt:  parseTime(r.CreatedAt),
		Source:     internal.FileSource(),
	}
	switch {
	case r.Content != nil:
		doc.ExtractedText = *r.Content
	case r.ExtractedText != nil:
		doc.ExtractedText = *r.ExtractedText
	}
	if len(r.Pages) > 0 {
		doc.PageCount = len(r.Pages)
	}
	if r.Type == "url" || r.URL != "" {
		doc.Source = internal.URLSource(r.URL)
	}
	return doc.Normalize()
}

// parseStatus maps backend states onto the client lifecycle.
// "uploaded" and other intermediate states count as processing.
func parseStatus(s string) internal.Status {
	status := internal.Status(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case internal.StatusUploading, internal.StatusProcessing, internal.StatusCompleted, internal.StatusFailed:
		return status
	case "error":
		return internal.StatusFailed
	default:
		return internal.StatusProcessing
	}
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02 15:04:05.999999",
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
