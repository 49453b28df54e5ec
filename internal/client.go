package internal

import (
	"context"
	"errors"
)

// Client wires the document lifecycle and chat sessions of one process
type Client struct {
	Config    Config
	Store     *DocumentStore
	Cache     *DocumentCache
	Documents *Controller
	Sessions  *SessionManager
	Bus       *Bus
}

// Open loads the persisted documents and wires the components around gw
func Open(ctx context.Context, cfg Config, gw Gateway) (*Client, error) {
	kv, err := OpenKV(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store := NewDocumentStore(kv, cfg.StoreKey, cfg.MaxDocuments)
	if err := store.Load(ctx); err != nil {
		_ = kv.Close()
		return nil, err
	}

	cache := NewDocumentCache(cfg.CacheTTL)
	bus := NewBus()
	docs := NewController(gw, store, cache, bus, WithRemoteDelete(cfg.RemoteDelete))
	sessions := NewSessionManager(gw, docs, bus)
	docs.AttachSessions(sessions)

	if n := docs.WarmCache(); n > 0 {
		LogDebug("Warmed cache with %d terminal document(s)", n)
	}

	return &Client{
		Config:    cfg,
		Store:     store,
		Cache:     cache,
		Documents: docs,
		Sessions:  sessions,
		Bus:       bus,
	}, nil
}

// Close flushes the Store and stops the event bus
func (c *Client) Close(ctx context.Context) error {
	storeErr := c.Store.Close(ctx)
	busErr := c.Bus.Close()
	return errors.Join(storeErr, busErr)
}
