package internal

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// CreateTestDocument creates a document record with sample data
func CreateTestDocument(id string, status Status) Document {
	doc := Document{
		ID:        id,
		Filename:  id + ".pdf",
		Status:    status,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Source:    FileSource(),
	}
	switch status {
	case StatusCompleted:
		doc.ExtractedText = "Extracted text of " + id
		doc.PageCount = 1
	case StatusFailed:
		doc.Error = "OCR failed"
	}
	return doc
}

// CreateTestMessages creates an alternating user/assistant conversation
func CreateTestMessages(n int) []ConversationMessage {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	messages := make([]ConversationMessage, 0, n)
	for i := 0; i < n; i++ {
		role := RoleUser
		if i%2 == 1 {
			role = RoleAssistant
		}
		messages = append(messages, ConversationMessage{
			ID:        fmt.Sprintf("msg-%d", i+1),
			Role:      role,
			Content:   fmt.Sprintf("message %d", i+1),
			Timestamp: base.Add(time.Duration(i) * time.Minute),
		})
	}
	return messages
}

// FakeGateway is an in-memory Gateway for tests.
// The *Func hooks, when set, replace the default behavior of a call.
type FakeGateway struct {
	mu        sync.Mutex
	documents map[string]Document
	histories map[string][]ConversationMessage
	calls     map[string]int
	nextID    int

	UploadFunc      func(ctx context.Context, file FileUpload) (SubmitResult, error)
	ProcessURLFunc  func(ctx context.Context, url string) (SubmitResult, error)
	GetDocumentFunc func(ctx context.Context, id string) (Document, error)
	ChatFunc        func(ctx context.Context, id, query string) (ChatReply, error)
	HistoryFunc     func(ctx context.Context, id string) ([]ConversationMessage, error)
	DeleteFunc      func(ctx context.Context, id string) error
}

// NewFakeGateway creates an empty fake backend
func NewFakeGateway() *FakeGateway {
	return &FakeGateway{
		documents: make(map[string]Document),
		histories: make(map[string][]ConversationMessage),
		calls:     make(map[string]int),
	}
}

// SetDocument sets the remote state of a document
func (g *FakeGateway) SetDocument(doc Document) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.documents[doc.ID] = doc
}

// SetHistory sets the remote chat history of a document
func (g *FakeGateway) SetHistory(id string, messages []ConversationMessage) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.histories[id] = messages
}

// Calls returns how many times method was called
func (g *FakeGateway) Calls(method string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[method]
}

func (g *FakeGateway) record(method string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls[method]++
}

func (g *FakeGateway) Upload(ctx context.Context, file FileUpload) (SubmitResult, error) {
	g.record("Upload")
	if g.UploadFunc != nil {
		return g.UploadFunc(ctx, file)
	}
	return g.submit(file.Name, FileSource()), nil
}

func (g *FakeGateway) ProcessURL(ctx context.Context, url string) (SubmitResult, error) {
	g.record("ProcessURL")
	if g.ProcessURLFunc != nil {
		return g.ProcessURLFunc(ctx, url)
	}
	return g.submit("", URLSource(url)), nil
}

func (g *FakeGateway) submit(filename string, source Source) SubmitResult {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.nextID++
	id := fmt.Sprintf("doc-%d", g.nextID)
	g.documents[id] = Document{ID: id, Filename: filename, Status: StatusProcessing, Source: source}
	return SubmitResult{ID: id, Filename: filename, Status: StatusProcessing}
}

func (g *FakeGateway) GetDocument(ctx context.Context, id string) (Document, error) {
	g.record("GetDocument")
	if g.GetDocumentFunc != nil {
		return g.GetDocumentFunc(ctx, id)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	doc, ok := g.documents[id]
	if !ok {
		return Document{}, NewNotFoundError("get", id)
	}
	return doc, nil
}

func (g *FakeGateway) Chat(ctx context.Context, id, query string) (ChatReply, error) {
	g.record("Chat")
	if g.ChatFunc != nil {
		return g.ChatFunc(ctx, id, query)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	answer := "Answer to: " + query
	g.histories[id] = append(g.histories[id],
		ConversationMessage{Role: RoleUser, Content: query},
		ConversationMessage{Role: RoleAssistant, Content: answer},
	)
	return ChatReply{Answer: answer}, nil
}

func (g *FakeGateway) ChatHistory(ctx context.Context, id string) ([]ConversationMessage, error) {
	g.record("ChatHistory")
	if g.HistoryFunc != nil {
		return g.HistoryFunc(ctx, id)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneMessages(g.histories[id]), nil
}

func (g *FakeGateway) Delete(ctx context.Context, id string) error {
	g.record("Delete")
	if g.DeleteFunc != nil {
		return g.DeleteFunc(ctx, id)
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.documents[id]; !ok {
		return NewNotFoundError("delete", id)
	}
	delete(g.documents, id)
	delete(g.histories, id)
	return nil
}

// RecordingPublisher keeps every published event
type RecordingPublisher struct {
	mu            sync.Mutex
	notifications []Notification
	changes       []DocumentChange
}

func (p *RecordingPublisher) PublishNotification(n Notification) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notifications = append(p.notifications, n)
}

func (p *RecordingPublisher) PublishChange(c DocumentChange) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, c)
}

// Notifications returns a copy of the recorded notifications
func (p *RecordingPublisher) Notifications() []Notification {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]Notification(nil), p.notifications...)
}

// Changes returns a copy of the recorded document changes
func (p *RecordingPublisher) Changes() []DocumentChange {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]DocumentChange(nil), p.changes...)
}

// NotificationsAt returns the recorded notifications of one level
func (p *RecordingPublisher) NotificationsAt(level NotificationLevel) []Notification {
	var out []Notification
	for _, n := range p.Notifications() {
		if n.Level == level {
			out = append(out, n)
		}
	}
	return out
}

// CreateTestTranscript creates a transcript of n alternating messages
func CreateTestTranscript(id string, n int) *Transcript {
	return &Transcript{
		DocumentID: id,
		Filename:   id + ".pdf",
		ExportedAt: time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC),
		Messages:   CreateTestMessages(n),
	}
}
