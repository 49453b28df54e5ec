package internal

import (
	"context"
	"errors"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const urlFallbackName = "URL Document"

// SessionDiscarder drops the conversation state of a removed document
type SessionDiscarder interface {
	Discard(documentID string)
}

// Controller owns the document lifecycle: submission, status refresh and removal.
//
// Every refresh is tagged with a per-document generation. A response is applied
// only if no response of a later-dispatched refresh was applied before it, and
// never after the document was removed.
type Controller struct {
	gateway  Gateway
	store    *DocumentStore
	cache    *DocumentCache
	events   Publisher
	validate *validator.Validate
	now      func() time.Time

	remoteDelete bool
	parallelism  int

	// mu guards the generation bookkeeping and makes applying a refresh
	// atomic with respect to Remove.
	mu         sync.Mutex
	dispatched map[string]uint64
	applied    map[string]uint64
	removed    map[string]bool
	sessions   SessionDiscarder

	// evicted maps a document dropped past the history bound to the last
	// refresh generation dispatched before it was dropped.
	evicted map[string]uint64

	reads singleflight.Group
}

// ControllerOption configures a Controller
type ControllerOption func(*Controller)

// WithRemoteDelete enables the best-effort backend delete on Remove
func WithRemoteDelete(enabled bool) ControllerOption {
	return func(c *Controller) { c.remoteDelete = enabled }
}

// WithClock overrides the clock used for creation times
func WithClock(now func() time.Time) ControllerOption {
	return func(c *Controller) { c.now = now }
}

// WithRefreshParallelism bounds the concurrent refreshes of RefreshPending
func WithRefreshParallelism(n int) ControllerOption {
	return func(c *Controller) {
		if n > 0 {
			c.parallelism = n
		}
	}
}

// NewController creates a controller. A nil publisher drops events.
func NewController(gw Gateway, store *DocumentStore, cache *DocumentCache, events Publisher, opts ...ControllerOption) *Controller {
	if events == nil {
		events = NopPublisher{}
	}
	c := &Controller{
		gateway:     gw,
		store:       store,
		cache:       cache,
		events:      events,
		validate:    validator.New(),
		now:         time.Now,
		parallelism: 4,
		dispatched:  make(map[string]uint64),
		applied:     make(map[string]uint64),
		removed:     make(map[string]bool),
		evicted:     make(map[string]uint64),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// AttachSessions registers the session manager notified on Remove
func (c *Controller) AttachSessions(sessions SessionDiscarder) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sessions = sessions
}

// WarmCache seeds the cache with the terminal documents of the Store.
// Terminal snapshots cannot change without an explicit action.
func (c *Controller) WarmCache() int {
	n := 0
	for _, doc := range c.store.List() {
		if !doc.Status.IsTerminal() {
			continue
		}
		if _, ok := c.cache.Get(doc.ID); !ok {
			c.cache.Put(doc.ID, doc)
			n++
		}
	}
	return n
}

// SubmitFile uploads a file and records the new document
func (c *Controller) SubmitFile(ctx context.Context, file FileUpload) (string, error) {
	if strings.TrimSpace(file.Name) == "" || file.Content == nil {
		return "", NewValidationError("upload", "no file selected")
	}

	createdAt := c.now()
	res, err := c.gateway.Upload(ctx, file)
	if err == nil && res.ID == "" {
		err = NewTransportError("upload", "", errors.New("backend returned no document id"))
	}
	if err != nil {
		return "", c.fail(err, "Failed to upload document", "")
	}

	doc := Document{
		ID:        res.ID,
		Filename:  firstNonEmpty(res.Filename, file.Name),
		Status:    initialStatus(res.Status),
		CreatedAt: createdAt,
		Source:    FileSource(),
	}
	c.create(ctx, doc)
	c.notify(LevelSuccess, "Document uploaded successfully", doc.ID)
	return doc.ID, nil
}

// SubmitURL asks the backend to fetch and process a remote document
func (c *Controller) SubmitURL(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := c.validate.Var(rawURL, "required,url"); err != nil {
		return "", NewValidationError("process-url", "a valid URL is required")
	}

	createdAt := c.now()
	res, err := c.gateway.ProcessURL(ctx, rawURL)
	if err == nil && res.ID == "" {
		err = NewTransportError("process-url", "", errors.New("backend returned no document id"))
	}
	if err != nil {
		return "", c.fail(err, "Failed to process URL", "")
	}

	doc := Document{
		ID:        res.ID,
		Filename:  firstNonEmpty(res.Filename, urlBaseName(rawURL), urlFallbackName),
		Status:    initialStatus(res.Status),
		CreatedAt: createdAt,
		Source:    URLSource(rawURL),
	}
	c.create(ctx, doc)
	c.notify(LevelSuccess, "URL submitted for processing", doc.ID)
	return doc.ID, nil
}

func (c *Controller) create(ctx context.Context, doc Document) {
	doc = doc.Normalize()

	c.mu.Lock()
	delete(c.removed, doc.ID)
	delete(c.evicted, doc.ID)
	evicted, err := c.store.Insert(ctx, doc)
	c.cache.Put(doc.ID, doc)
	for _, e := range evicted {
		c.cache.Invalidate(e.ID)
		c.evicted[e.ID] = c.dispatched[e.ID]
	}
	c.mu.Unlock()

	c.persistFailed(err, doc.ID)

	if len(evicted) > 0 {
		LogDebug("Evicted %d document(s) from history", len(evicted))
	}
	c.events.PublishChange(DocumentChange{Type: ChangeCreated, Document: doc})
}

// Refresh fetches the current status of a document and reconciles it into
// the Store and the Cache. A superseded response leaves state untouched and
// the current snapshot is returned instead.
func (c *Controller) Refresh(ctx context.Context, id string) (Document, error) {
	if strings.TrimSpace(id) == "" {
		return Document{}, NewValidationError("refresh", "document id is required")
	}

	c.mu.Lock()
	if c.removed[id] {
		c.mu.Unlock()
		return Document{}, NewNotFoundError("refresh", id)
	}
	c.dispatched[id]++
	gen := c.dispatched[id]
	c.mu.Unlock()

	remote, err := c.gateway.GetDocument(ctx, id)

	c.mu.Lock()
	if c.removed[id] {
		c.mu.Unlock()
		LogDebug("Discarding refresh of removed document %s", id)
		return Document{}, NewNotFoundError("refresh", id)
	}
	if gen <= c.applied[id] {
		current, ok := c.current(id)
		c.mu.Unlock()
		LogDebug("Discarding superseded refresh %d of document %s", gen, id)
		if !ok {
			return Document{}, NewNotFoundError("refresh", id)
		}
		return current, nil
	}
	if err != nil {
		c.mu.Unlock()
		if errors.Is(err, ErrNotFound) {
			return Document{}, c.fail(err, "Document not found", id)
		}
		return Document{}, c.fail(err, "Failed to load document", id)
	}
	c.applied[id] = gen

	before, inStore := c.store.Get(id)
	var doc Document
	var persistErr error
	changed := false
	if inStore {
		doc, changed, persistErr = c.store.Update(ctx, id, func(d Document) Document { return d.WithRemote(remote) })
	} else {
		base, cached := c.cache.Get(id)
		if !cached {
			base = Document{ID: id, CreatedAt: remote.CreatedAt, Source: remote.Source}
		}
		doc = base.WithRemote(remote)
	}
	if evictedAt, ok := c.evicted[id]; inStore || !ok || gen > evictedAt {
		c.cache.Put(id, doc)
	} else {
		LogDebug("Not caching refresh %d of evicted document %s", gen, id)
	}
	c.mu.Unlock()

	c.persistFailed(persistErr, id)
	if changed {
		c.events.PublishChange(DocumentChange{Type: ChangeUpdated, Document: doc})
		if !before.Status.IsTerminal() {
			switch doc.Status {
			case StatusCompleted:
				c.notify(LevelSuccess, "Document processing completed", id)
			case StatusFailed:
				c.notify(LevelError, "Document processing failed: "+doc.Error, id)
			}
		}
	}
	return doc, nil
}

// current returns the cached snapshot, falling back to the Store.
// It must be called with c.mu held.
func (c *Controller) current(id string) (Document, bool) {
	if doc, ok := c.cache.Get(id); ok {
		return doc, true
	}
	return c.store.Get(id)
}

// Lookup returns the locally known snapshot of a document without contacting the backend
func (c *Controller) Lookup(id string) (Document, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.removed[id] {
		return Document{}, false
	}
	return c.current(id)
}

// Get returns the cached snapshot, fetching it on a miss.
// Concurrent misses for the same id share one backend read.
func (c *Controller) Get(ctx context.Context, id string) (Document, error) {
	if doc, ok := c.cache.Get(id); ok {
		return doc, nil
	}
	v, err, _ := c.reads.Do(id, func() (interface{}, error) {
		return c.Refresh(ctx, id)
	})
	if err != nil {
		return Document{}, err
	}
	return v.(Document), nil
}

// List returns the known documents, most recent first
func (c *Controller) List() []Document {
	return c.store.List()
}

// Remove forgets a document locally. Responses of refreshes still in flight
// are discarded. With remote delete enabled the backend copy is deleted too;
// a failure there is only logged.
func (c *Controller) Remove(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return NewValidationError("remove", "document id is required")
	}

	c.mu.Lock()
	doc, inStore := c.store.Get(id)
	cached, inCache := c.cache.Get(id)
	if !inStore && !inCache {
		c.mu.Unlock()
		return NewNotFoundError("remove", id)
	}
	var persistErr error
	if inStore {
		_, _, persistErr = c.store.Remove(ctx, id)
	} else {
		doc = cached
	}
	c.cache.Invalidate(id)
	c.removed[id] = true
	sessions := c.sessions
	c.mu.Unlock()

	if sessions != nil {
		sessions.Discard(id)
	}
	c.persistFailed(persistErr, id)
	c.events.PublishChange(DocumentChange{Type: ChangeRemoved, Document: doc})
	c.notify(LevelInfo, "Document removed", id)

	if c.remoteDelete {
		if err := c.gateway.Delete(ctx, id); err != nil {
			LogWarn("Failed to delete document %s from backend: %v", id, err)
		}
	}
	return nil
}

// Forget drops every locally tracked document without contacting the backend
func (c *Controller) Forget(ctx context.Context) (int, error) {
	c.mu.Lock()
	cleared, err := c.store.Clear(ctx)
	c.cache.Invalidate()
	for _, doc := range cleared {
		c.removed[doc.ID] = true
	}
	sessions := c.sessions
	c.mu.Unlock()

	for _, doc := range cleared {
		if sessions != nil {
			sessions.Discard(doc.ID)
		}
		c.events.PublishChange(DocumentChange{Type: ChangeRemoved, Document: doc})
	}
	return len(cleared), err
}

// RefreshPending refreshes every non-terminal document in the Store.
// All documents are attempted; the first error is returned.
func (c *Controller) RefreshPending(ctx context.Context) ([]Document, error) {
	var pending []string
	for _, doc := range c.store.List() {
		if !doc.Status.IsTerminal() {
			pending = append(pending, doc.ID)
		}
	}

	results := make([]Document, len(pending))
	var g errgroup.Group
	g.SetLimit(c.parallelism)
	for i, id := range pending {
		g.Go(func() error {
			doc, err := c.Refresh(ctx, id)
			if err != nil {
				return err
			}
			results[i] = doc
			return nil
		})
	}
	err := g.Wait()

	refreshed := results[:0]
	for _, doc := range results {
		if doc.ID != "" {
			refreshed = append(refreshed, doc)
		}
	}
	return refreshed, err
}

// WaitForTerminal polls a document until it is completed or failed
func (c *Controller) WaitForTerminal(ctx context.Context, id string, interval time.Duration) (Document, error) {
	if interval <= 0 {
		interval = DefaultConfig().PollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		doc, err := c.Refresh(ctx, id)
		if err != nil {
			return doc, err
		}
		if doc.Status.IsTerminal() {
			return doc, nil
		}
		select {
		case <-ctx.Done():
			e := NewTransportError("wait", id, ctx.Err())
			e.Timeout = errors.Is(ctx.Err(), context.DeadlineExceeded)
			return doc, e
		case <-ticker.C:
		}
	}
}

func (c *Controller) fail(err error, summary, id string) error {
	c.notify(LevelError, summary+": "+userMessage(err), id)
	return err
}

// persistFailed reports a history write that did not reach the KVStore.
// The in-memory list stays authoritative and is written again on the next
// mutation or on Close.
func (c *Controller) persistFailed(err error, id string) {
	if err == nil {
		return
	}
	LogWarn("Failed to persist document history: %v", err)
	c.notify(LevelError, "Failed to save document history: "+userMessage(err), id)
}

func (c *Controller) notify(level NotificationLevel, message, id string) {
	c.events.PublishNotification(Notification{Level: level, Message: message, DocumentID: id, Time: c.now()})
}

// userMessage returns the human part of an error without the operation prefix
func userMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		if e.Message != "" {
			return e.Message
		}
		if e.Err != nil {
			return e.Err.Error()
		}
		return e.Kind.String()
	}
	return err.Error()
}

func initialStatus(s Status) Status {
	if s.Valid() {
		return s
	}
	return StatusProcessing
}

func urlBaseName(rawURL string) string {
	p := rawURL
	if i := strings.IndexAny(p, "?#"); i >= 0 {
		p = p[:i]
	}
	if i := strings.Index(p, "://"); i >= 0 {
		p = p[i+3:]
	}
	slash := strings.Index(p, "/")
	if slash < 0 {
		return ""
	}
	base := path.Base(p[slash:])
	if base == "/" || base == "." {
		return ""
	}
	return base
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
