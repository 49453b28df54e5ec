package internal

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DocumentLookup resolves the current snapshot of a document.
// Lookup only consults local state; Get may read from the backend.
type DocumentLookup interface {
	Get(ctx context.Context, id string) (Document, error)
	Lookup(id string) (Document, bool)
}

// session is the conversation state of one document
type session struct {
	messages []ConversationMessage
	sending  bool

	loadDispatched uint64
	loadApplied    uint64
}

// SessionManager keeps one conversation log per document and sends chat
// turns optimistically: the user message is visible before the backend replies.
type SessionManager struct {
	gateway Gateway
	docs    DocumentLookup
	events  Publisher
	now     func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
}

// NewSessionManager creates a session manager. A nil publisher drops events.
func NewSessionManager(gw Gateway, docs DocumentLookup, events Publisher) *SessionManager {
	if events == nil {
		events = NopPublisher{}
	}
	return &SessionManager{
		gateway:  gw,
		docs:     docs,
		events:   events,
		now:      time.Now,
		sessions: make(map[string]*session),
	}
}

// getOrCreate must be called with m.mu held
func (m *SessionManager) getOrCreate(id string) *session {
	s, ok := m.sessions[id]
	if !ok {
		s = &session{}
		m.sessions[id] = s
	}
	return s
}

// LoadHistory replaces the local log with the backend history. Messages still
// awaiting a reply are kept after the loaded history. When loads overlap the
// later-dispatched one wins.
func (m *SessionManager) LoadHistory(ctx context.Context, id string) ([]ConversationMessage, error) {
	if strings.TrimSpace(id) == "" {
		return nil, NewValidationError("history", "document id is required")
	}
	if err := m.requireCompleted(ctx, "history", id); err != nil {
		return nil, err
	}

	m.mu.Lock()
	s := m.getOrCreate(id)
	s.loadDispatched++
	seq := s.loadDispatched
	m.mu.Unlock()

	history, err := m.gateway.ChatHistory(ctx, id)
	if err != nil {
		m.notifyError("Failed to load chat history", err, id)
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions[id] != s {
		LogDebug("Discarding history of discarded session %s", id)
		return nil, nil
	}
	if seq <= s.loadApplied {
		LogDebug("Discarding superseded history load %d of %s", seq, id)
		return cloneMessages(s.messages), nil
	}
	s.loadApplied = seq

	log := make([]ConversationMessage, 0, len(history)+1)
	for _, msg := range history {
		msg.Pending = false
		log = append(log, msg)
	}
	for _, msg := range s.messages {
		if msg.Pending {
			log = append(log, msg)
		}
	}
	s.messages = log
	return cloneMessages(log), nil
}

// SendMessage appends the user message immediately and the assistant reply
// once the backend answers. Only one send per document may be in flight.
// Readiness is checked against local state only; for a document not known
// locally the backend's answer decides.
func (m *SessionManager) SendMessage(ctx context.Context, id, content string) (ConversationMessage, error) {
	if strings.TrimSpace(id) == "" {
		return ConversationMessage{}, NewValidationError("chat", "document id is required")
	}
	if strings.TrimSpace(content) == "" {
		return ConversationMessage{}, NewValidationError("chat", "message is empty")
	}

	if doc, ok := m.docs.Lookup(id); ok && doc.Status != StatusCompleted {
		return ConversationMessage{}, NewNotReadyError("chat", id, doc.Status)
	}

	m.mu.Lock()
	s := m.getOrCreate(id)
	if s.sending {
		m.mu.Unlock()
		return ConversationMessage{}, NewBusyError("chat", id)
	}
	s.sending = true
	user := ConversationMessage{
		ID:        uuid.NewString(),
		Role:      RoleUser,
		Content:   content,
		Timestamp: m.now(),
		Pending:   true,
	}
	s.messages = append(s.messages, user)
	m.mu.Unlock()

	reply, err := m.gateway.Chat(ctx, id, content)

	m.mu.Lock()
	s.sending = false
	idx := indexOfMessage(s.messages, user.ID)
	if idx >= 0 {
		s.messages[idx].Pending = false
	}
	if err != nil {
		m.mu.Unlock()
		m.notifyError("Failed to send message", err, id)
		return ConversationMessage{}, err
	}

	ts := reply.Timestamp
	if ts.IsZero() {
		ts = m.now()
	}
	assistant := ConversationMessage{
		ID:        uuid.NewString(),
		Role:      RoleAssistant,
		Content:   reply.Answer,
		Timestamp: ts,
	}
	if m.sessions[id] == s && idx >= 0 {
		s.messages = append(s.messages, assistant)
	} else {
		LogDebug("Dropping reply for cleared session %s", id)
	}
	m.mu.Unlock()
	return assistant, nil
}

func (m *SessionManager) requireCompleted(ctx context.Context, op, id string) error {
	doc, err := m.docs.Get(ctx, id)
	if err != nil {
		return err
	}
	if doc.Status != StatusCompleted {
		return NewNotReadyError(op, id, doc.Status)
	}
	return nil
}

// Messages returns a copy of the conversation log of a document
func (m *SessionManager) Messages(id string) []ConversationMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		return cloneMessages(s.messages)
	}
	return nil
}

// Busy reports whether a send is in flight for the document
func (m *SessionManager) Busy(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	return ok && s.sending
}

// Clear empties the local log. Replies to messages sent before the clear are dropped.
func (m *SessionManager) Clear(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.messages = nil
	}
}

// Discard forgets the session of a removed document
func (m *SessionManager) Discard(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

// Transcript returns a read-only copy of the session for export
func (m *SessionManager) Transcript(id, filename string) Transcript {
	return Transcript{
		DocumentID: id,
		Filename:   filename,
		ExportedAt: m.now(),
		Messages:   m.Messages(id),
	}
}

func (m *SessionManager) notifyError(summary string, err error, id string) {
	m.events.PublishNotification(Notification{
		Level:      LevelError,
		Message:    summary + ": " + userMessage(err),
		DocumentID: id,
		Time:       m.now(),
	})
}

func indexOfMessage(messages []ConversationMessage, id string) int {
	for i := range messages {
		if messages[i].ID == id {
			return i
		}
	}
	return -1
}

func cloneMessages(messages []ConversationMessage) []ConversationMessage {
	if messages == nil {
		return nil
	}
	out := make([]ConversationMessage, len(messages))
	copy(out, messages)
	return out
}
