package internal

import (
	"time"
)

// Status is the processing state of a document
type Status string

const (
	StatusUploading  Status = "uploading"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// unknownFailure is used when the backend reports a failure without a reason
const unknownFailure = "An unknown error occurred"

// IsTerminal reports whether no further transition can happen without an explicit action
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is one of the known lifecycle states
func (s Status) Valid() bool {
	switch s {
	case StatusUploading, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// SourceKind tags where a document came from
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceURL  SourceKind = "url"
)

// Source is the origin of a document. URL is only set for SourceURL.
type Source struct {
	Kind SourceKind `json:"kind" yaml:"kind"`
	URL  string     `json:"url,omitempty" yaml:"url,omitempty"`
}

// FileSource returns the source of an uploaded file
func FileSource() Source {
	return Source{Kind: SourceFile}
}

// URLSource returns the source of a document submitted by URL
func URLSource(url string) Source {
	return Source{Kind: SourceURL, URL: url}
}

// Document is the client-side record of one uploaded or URL-sourced artifact
type Document struct {
	ID            string    `json:"id" yaml:"id"`
	Filename      string    `json:"filename" yaml:"filename"`
	Status        Status    `json:"status" yaml:"status"`
	ExtractedText string    `json:"extractedText,omitempty" yaml:"extracted_text,omitempty"`
	PageCount     int       `json:"pageCount,omitempty" yaml:"page_count,omitempty"`
	PreviewURL    string    `json:"previewUrl,omitempty" yaml:"preview_url,omitempty"`
	Error         string    `json:"error,omitempty" yaml:"error,omitempty"`
	CreatedAt     time.Time `json:"createdAt" yaml:"created_at"`
	Source        Source    `json:"source" yaml:"source"`
}

// Normalize enforces the per-status field invariants.
// Text only survives on completed documents and failed documents always carry a reason.
func (d Document) Normalize() Document {
	if d.Status != StatusCompleted {
		d.ExtractedText = ""
	}
	if d.Status == StatusFailed {
		if d.Error == "" {
			d.Error = unknownFailure
		}
	} else {
		d.Error = ""
	}
	return d
}

// WithRemote returns d with its mutable fields overwritten by a remote snapshot.
// ID, CreatedAt and Source are preserved.
func (d Document) WithRemote(remote Document) Document {
	d.Status = remote.Status
	d.ExtractedText = remote.ExtractedText
	d.Error = remote.Error
	d.PageCount = remote.PageCount
	d.PreviewURL = remote.PreviewURL
	if remote.Filename != "" {
		d.Filename = remote.Filename
	}
	return d.Normalize()
}

// Equal reports whether two snapshots are identical
func (d Document) Equal(other Document) bool {
	return d.ID == other.ID &&
		d.Filename == other.Filename &&
		d.Status == other.Status &&
		d.ExtractedText == other.ExtractedText &&
		d.PageCount == other.PageCount &&
		d.PreviewURL == other.PreviewURL &&
		d.Error == other.Error &&
		d.CreatedAt.Equal(other.CreatedAt) &&
		d.Source == other.Source
}

// IsURL reports whether the document was submitted by URL
func (d Document) IsURL() bool {
	return d.Source.Kind == SourceURL
}
