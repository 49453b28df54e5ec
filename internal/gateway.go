package internal

import (
	"context"
	"io"
	"time"
)

// Gateway is the boundary to the remote OCR/LLM backend.
// Implementations return *Error values so callers can branch on the kind.
type Gateway interface {
	Upload(ctx context.Context, file FileUpload) (SubmitResult, error)
	ProcessURL(ctx context.Context, url string) (SubmitResult, error)
	GetDocument(ctx context.Context, id string) (Document, error)
	Chat(ctx context.Context, id, query string) (ChatReply, error)
	ChatHistory(ctx context.Context, id string) ([]ConversationMessage, error)
	Delete(ctx context.Context, id string) error
}

// FileUpload is a file selected for upload
type FileUpload struct {
	Name    string
	Content io.Reader
}

// SubmitResult is the backend acknowledgement of an upload or URL submission
type SubmitResult struct {
	ID       string
	Filename string
	Status   Status
	Message  string
}

// ChatReply is the assistant's answer to one chat turn
type ChatReply struct {
	Answer    string
	Timestamp time.Time // zero when the backend does not report one
}
