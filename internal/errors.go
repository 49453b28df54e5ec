package internal

import (
	"errors"
	"fmt"
)

// ErrorKind classifies failures surfaced by the document and chat operations
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	KindValidation
	KindTransport
	KindNotFound
	KindNotReady
	KindBusy
)

func (k ErrorKind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindTransport:
		return "transport"
	case KindNotFound:
		return "not found"
	case KindNotReady:
		return "not ready"
	case KindBusy:
		return "busy"
	default:
		return "unknown"
	}
}

// Error is a normalized operation failure
type Error struct {
	Kind       ErrorKind
	Op         string // "upload", "refresh", "chat", ...
	DocumentID string
	Message    string
	Timeout    bool
	Err        error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	if msg == "" {
		msg = e.Kind.String()
	}
	switch {
	case e.Op != "" && e.DocumentID != "":
		return fmt.Sprintf("%s %s: %s", e.Op, e.DocumentID, msg)
	case e.Op != "":
		return fmt.Sprintf("%s: %s", e.Op, msg)
	default:
		return msg
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error of the same kind, so errors.Is(err, ErrNotFound) works
// regardless of operation or document.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind
}

var (
	ErrValidation = &Error{Kind: KindValidation}
	ErrTransport  = &Error{Kind: KindTransport}
	ErrNotFound   = &Error{Kind: KindNotFound}
	ErrNotReady   = &Error{Kind: KindNotReady}
	ErrBusy       = &Error{Kind: KindBusy}
)

// KindOf returns the kind of the first *Error in err's chain
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// NewValidationError reports bad input rejected before any network call
func NewValidationError(op, message string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: message}
}

// NewTransportError wraps a network, timeout or non-2xx failure
func NewTransportError(op, documentID string, err error) *Error {
	return &Error{Kind: KindTransport, Op: op, DocumentID: documentID, Err: err}
}

// NewNotFoundError reports a document absent locally or remotely
func NewNotFoundError(op, documentID string) *Error {
	return &Error{Kind: KindNotFound, Op: op, DocumentID: documentID, Message: "document not found"}
}

// NewNotReadyError reports an operation on a document that is not completed
func NewNotReadyError(op, documentID string, status Status) *Error {
	return &Error{
		Kind:       KindNotReady,
		Op:         op,
		DocumentID: documentID,
		Message:    fmt.Sprintf("document processing not completed (status: %s)", status),
	}
}

// NewBusyError reports a send attempted while another is in flight
func NewBusyError(op, documentID string) *Error {
	return &Error{Kind: KindBusy, Op: op, DocumentID: documentID, Message: "a message is already being sent"}
}

// StorageError represents errors accessing the persisted document list
type StorageError struct {
	Backend string // "sqlite", "redis", "memory"
	Op      string // "open", "get", "set", "delete"
	Key     string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error: %s %s %s: %v", e.Backend, e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

// ParseError represents errors parsing persisted data
type ParseError struct {
	Source string // backend name
	Key    string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error [%s] %s: %v", e.Source, e.Key, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// ExportError represents errors during transcript export
type ExportError struct {
	Format string
	Path   string
	Err    error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export error [%s] %s: %v", e.Format, e.Path, e.Err)
}

func (e *ExportError) Unwrap() error {
	return e.Err
}
