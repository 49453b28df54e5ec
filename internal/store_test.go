package internal

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/iksnae/doc-session/testutil"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testStoreKey = "doc-session:documents"

func newRedisKV(t *testing.T) (*RedisKV, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	kv, err := NewRedisKV(context.Background(), "redis://"+mr.Addr())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })
	return kv, mr
}

func TestDocumentStore_Load(t *testing.T) {
	ctx := context.Background()
	kv := NewSQLiteKV(testutil.CreateTestDB(t, testStoreKey))

	store := NewDocumentStore(kv, testStoreKey, 50)
	require.NoError(t, store.Load(ctx))

	docs := store.List()
	require.Len(t, docs, 3)
	assert.Equal(t, []string{"doc-3", "doc-2", "doc-1"}, ids(docs))
	assert.Equal(t, StatusCompleted, docs[1].Status)
	assert.Equal(t, "Quarterly report", docs[1].ExtractedText)
	assert.True(t, docs[1].IsURL())
	assert.Equal(t, "OCR failed", docs[2].Error)
}

func TestDocumentStore_LoadMalformed(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"not json", "{not json"},
		{"wrong shape", `{"id":"doc-1"}`},
		{"missing id", `[{"filename":"a.pdf","status":"completed"}]`},
		{"unknown status", `[{"id":"doc-1","status":"exploded"}]`},
		{"duplicate id", `[{"id":"doc-1","status":"completed"},{"id":"doc-1","status":"failed"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			kv := NewMemoryKV()
			require.NoError(t, kv.Set(ctx, testStoreKey, []byte(tt.data)))

			store := NewDocumentStore(kv, testStoreKey, 50)
			require.NoError(t, store.Load(ctx))
			assert.Equal(t, 0, store.Len())

			_, found, err := kv.Get(ctx, testStoreKey)
			require.NoError(t, err)
			assert.False(t, found, "malformed data should be deleted")
		})
	}
}

func TestDocumentStore_InsertOrderAndBound(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(NewMemoryKV(), testStoreKey, 3)

	for i := 1; i <= 3; i++ {
		evicted, err := store.Insert(ctx, CreateTestDocument(fmt.Sprintf("doc-%d", i), StatusProcessing))
		require.NoError(t, err)
		assert.Empty(t, evicted)
	}
	assert.Equal(t, []string{"doc-3", "doc-2", "doc-1"}, ids(store.List()))

	evicted, err := store.Insert(ctx, CreateTestDocument("doc-4", StatusProcessing))
	require.NoError(t, err)
	require.Len(t, evicted, 1)
	assert.Equal(t, "doc-1", evicted[0].ID)
	assert.Equal(t, []string{"doc-4", "doc-3", "doc-2"}, ids(store.List()))

	// re-inserting an existing id moves it to the head without duplicating it
	store.Insert(ctx, CreateTestDocument("doc-2", StatusCompleted))
	assert.Equal(t, []string{"doc-2", "doc-4", "doc-3"}, ids(store.List()))
}

func TestDocumentStore_Update(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewDocumentStore(kv, testStoreKey, 50)
	store.Insert(ctx, CreateTestDocument("doc-1", StatusProcessing))

	_, changed, err := store.Update(ctx, "doc-1", func(d Document) Document { return d })
	require.NoError(t, err)
	assert.False(t, changed)

	updated, changed, err := store.Update(ctx, "doc-1", func(d Document) Document {
		d.Status = StatusCompleted
		d.ID = "ignored"
		return d
	})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, "doc-1", updated.ID)

	_, _, err = store.Update(ctx, "missing", func(d Document) Document { return d })
	assert.True(t, errors.Is(err, ErrNotFound))

	// the write-through copy reflects the update
	reloaded := NewDocumentStore(kv, testStoreKey, 50)
	require.NoError(t, reloaded.Load(ctx))
	doc, found := reloaded.Get("doc-1")
	require.True(t, found)
	assert.Equal(t, StatusCompleted, doc.Status)
}

func TestDocumentStore_Remove(t *testing.T) {
	ctx := context.Background()
	store := NewDocumentStore(NewMemoryKV(), testStoreKey, 50)
	store.Insert(ctx, CreateTestDocument("doc-1", StatusCompleted))
	store.Insert(ctx, CreateTestDocument("doc-2", StatusCompleted))

	removed, ok, err := store.Remove(ctx, "doc-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "doc-1", removed.ID)
	assert.Equal(t, []string{"doc-2"}, ids(store.List()))

	_, ok, err = store.Remove(ctx, "doc-1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestDocumentStore_Backends(t *testing.T) {
	backends := map[string]func(t *testing.T) KVStore{
		"memory": func(t *testing.T) KVStore { return NewMemoryKV() },
		"sqlite": func(t *testing.T) KVStore {
			kv, err := OpenSQLiteKV(filepath.Join(testutil.CreateTempDir(t), "documents.db"))
			require.NoError(t, err)
			return kv
		},
		"redis": func(t *testing.T) KVStore {
			kv, _ := newRedisKV(t)
			return kv
		},
	}

	for name, open := range backends {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			kv := open(t)

			store := NewDocumentStore(kv, testStoreKey, 50)
			require.NoError(t, store.Load(ctx))
			store.Insert(ctx, CreateTestDocument("doc-1", StatusCompleted))
			store.Insert(ctx, CreateTestDocument("doc-2", StatusFailed))

			reloaded := NewDocumentStore(kv, testStoreKey, 50)
			require.NoError(t, reloaded.Load(ctx))
			docs := reloaded.List()
			require.Len(t, docs, 2)
			assert.Equal(t, "doc-2", docs[0].ID)
			assert.True(t, docs[1].Equal(CreateTestDocument("doc-1", StatusCompleted)))
		})
	}
}

func TestDocumentStore_RedisUnavailableWrite(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	kv, err := NewRedisKV(ctx, "redis://"+mr.Addr())
	require.NoError(t, err)
	defer kv.Close()
	store := NewDocumentStore(kv, testStoreKey, 50)

	mr.Close()
	// the write error is returned and the in-memory list stays authoritative
	_, err = store.Insert(ctx, CreateTestDocument("doc-1", StatusCompleted))
	var storageErr *StorageError
	assert.True(t, errors.As(err, &storageErr), "got %v", err)
	assert.Equal(t, 1, store.Len())
	assert.Error(t, store.Flush(ctx))
}

func TestRedisKV_Get(t *testing.T) {
	ctx := context.Background()
	kv, mr := newRedisKV(t)

	_, found, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, mr.Set("key", "value"))
	value, found, err := kv.Get(ctx, "key")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "value", string(value))
	assert.NoError(t, kv.Ping(ctx))
}

func TestNewRedisKVWithClient(t *testing.T) {
	mr := miniredis.RunT(t)
	kv := NewRedisKVWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
	defer kv.Close()

	require.NoError(t, kv.Set(context.Background(), "k", []byte("v")))
	got, err := mr.Get("k")
	require.NoError(t, err)
	assert.Equal(t, "v", got)
}

func TestOpenKV(t *testing.T) {
	ctx := context.Background()
	cfg := DefaultConfig()

	cfg.Store = "memory"
	kv, err := OpenKV(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "memory", kv.Name())

	cfg.Store = "sqlite"
	cfg.StorePath = filepath.Join(testutil.CreateTempDir(t), "kv.db")
	kv, err = OpenKV(ctx, cfg)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", kv.Name())
	require.NoError(t, kv.Close())

	cfg.Store = "etcd"
	_, err = OpenKV(ctx, cfg)
	assert.Error(t, err)
}

func ids(docs []Document) []string {
	out := make([]string, len(docs))
	for i, d := range docs {
		out[i] = d.ID
	}
	return out
}

func TestDocumentStore_Clear(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryKV()
	store := NewDocumentStore(kv, testStoreKey, 50)
	store.Insert(ctx, CreateTestDocument("doc-1", StatusCompleted))
	store.Insert(ctx, CreateTestDocument("doc-2", StatusProcessing))

	cleared, err := store.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc-2", "doc-1"}, ids(cleared))
	assert.Equal(t, 0, store.Len())

	_, found, err := kv.Get(ctx, testStoreKey)
	require.NoError(t, err)
	assert.False(t, found)
}
