package internal

import (
	"context"
	"encoding/json"
	"sync"
)

// DocumentStore is the authoritative, most-recent-first list of known documents.
// Every mutation is written through to the KVStore as one JSON list under a single key.
type DocumentStore struct {
	mu   sync.RWMutex
	docs []Document

	// persistMu serializes writes; each write stores the latest list.
	persistMu sync.Mutex

	kv           KVStore
	key          string
	maxDocuments int
}

// NewDocumentStore creates an empty store. Call Load to restore persisted state.
func NewDocumentStore(kv KVStore, key string, maxDocuments int) *DocumentStore {
	if maxDocuments <= 0 {
		maxDocuments = DefaultConfig().MaxDocuments
	}
	return &DocumentStore{
		kv:           kv,
		key:          key,
		maxDocuments: maxDocuments,
	}
}

// Load replaces the in-memory list with the persisted one.
// Malformed data is never partially trusted: it is deleted and the store starts empty.
func (s *DocumentStore) Load(ctx context.Context) error {
	data, found, err := s.kv.Get(ctx, s.key)
	if err != nil {
		return err
	}

	var docs []Document
	if found {
		docs, err = decodeDocuments(data)
		if err != nil {
			LogWarn("Discarding malformed document history: %v", &ParseError{Source: s.kv.Name(), Key: s.key, Err: err})
			docs = nil
			if err := s.kv.Delete(ctx, s.key); err != nil {
				LogWarn("Failed to delete malformed document history: %v", err)
			}
		}
	}
	if len(docs) > s.maxDocuments {
		docs = docs[:s.maxDocuments]
	}

	s.mu.Lock()
	s.docs = docs
	s.mu.Unlock()

	LogDebug("Loaded %d document(s) from %s", len(docs), s.kv.Name())
	return nil
}

func decodeDocuments(data []byte) ([]Document, error) {
	var docs []Document
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(docs))
	for _, d := range docs {
		if d.ID == "" || seen[d.ID] || !d.Status.Valid() {
			return nil, errMalformedRecord
		}
		seen[d.ID] = true
	}
	return docs, nil
}

var errMalformedRecord = NewValidationError("load", "record without id, with a duplicate id or an unknown status")

// Flush writes the current list to the KVStore
func (s *DocumentStore) Flush(ctx context.Context) error {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	data, err := json.Marshal(s.List())
	if err != nil {
		return err
	}
	return s.kv.Set(ctx, s.key, data)
}


// List returns a copy of the documents, most recent first
func (s *DocumentStore) List() []Document {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Len returns the number of documents
func (s *DocumentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// Get returns the document with the given id
func (s *DocumentStore) Get(id string) (Document, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if i := s.indexOf(id); i >= 0 {
		return s.docs[i], true
	}
	return Document{}, false
}

func (s *DocumentStore) indexOf(id string) int {
	for i := range s.docs {
		if s.docs[i].ID == id {
			return i
		}
	}
	return -1
}

// Insert puts doc at the head of the list, replacing an entry with the same id.
// It returns the documents dropped to honor the history bound. A write error
// leaves the in-memory list updated.
func (s *DocumentStore) Insert(ctx context.Context, doc Document) ([]Document, error) {
	s.mu.Lock()
	if i := s.indexOf(doc.ID); i >= 0 {
		s.docs = append(s.docs[:i], s.docs[i+1:]...)
	}
	s.docs = append([]Document{doc}, s.docs...)
	var evicted []Document
	if len(s.docs) > s.maxDocuments {
		evicted = append(evicted, s.docs[s.maxDocuments:]...)
		s.docs = s.docs[:s.maxDocuments]
	}
	s.mu.Unlock()

	return evicted, s.Flush(ctx)
}

// Update applies fn to the document with the given id.
// Nothing is written when fn leaves the document unchanged.
func (s *DocumentStore) Update(ctx context.Context, id string, fn func(Document) Document) (updated Document, changed bool, err error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return Document{}, false, NewNotFoundError("update", id)
	}
	before := s.docs[i]
	after := fn(before)
	after.ID = before.ID
	changed = !after.Equal(before)
	if changed {
		s.docs[i] = after
	}
	s.mu.Unlock()

	if changed {
		err = s.Flush(ctx)
	}
	return after, changed, err
}

// Remove deletes the document with the given id
func (s *DocumentStore) Remove(ctx context.Context, id string) (Document, bool, error) {
	s.mu.Lock()
	i := s.indexOf(id)
	if i < 0 {
		s.mu.Unlock()
		return Document{}, false, nil
	}
	removed := s.docs[i]
	s.docs = append(s.docs[:i], s.docs[i+1:]...)
	s.mu.Unlock()

	return removed, true, s.Flush(ctx)
}

// Clear empties the list and deletes the persisted copy
func (s *DocumentStore) Clear(ctx context.Context) ([]Document, error) {
	s.persistMu.Lock()
	defer s.persistMu.Unlock()

	s.mu.Lock()
	cleared := s.docs
	s.docs = nil
	s.mu.Unlock()

	return cleared, s.kv.Delete(ctx, s.key)
}

// Close flushes the list and closes the KVStore
func (s *DocumentStore) Close(ctx context.Context) error {
	flushErr := s.Flush(ctx)
	closeErr := s.kv.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}
