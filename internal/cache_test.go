package internal

import (
	"testing"
	"time"
)

func TestDocumentCache_PutGet(t *testing.T) {
	c := NewDocumentCache(0)
	doc := CreateTestDocument("doc-1", StatusCompleted)

	if _, ok := c.Get("doc-1"); ok {
		t.Fatal("Get() on empty cache should miss")
	}

	c.Put("doc-1", doc)
	got, ok := c.Get("doc-1")
	if !ok {
		t.Fatal("Get() after Put() should hit")
	}
	if !got.Equal(doc) {
		t.Errorf("Get() = %+v, want %+v", got, doc)
	}

	updated := doc
	updated.Filename = "renamed.pdf"
	c.Put("doc-1", updated)
	if got, _ := c.Get("doc-1"); got.Filename != "renamed.pdf" {
		t.Errorf("Put() should overwrite, got filename %q", got.Filename)
	}
}

func TestDocumentCache_Invalidate(t *testing.T) {
	c := NewDocumentCache(0)
	for _, id := range []string{"a", "b", "c"} {
		c.Put(id, CreateTestDocument(id, StatusProcessing))
	}

	c.Invalidate("a", "missing")
	if _, ok := c.Get("a"); ok {
		t.Error("Invalidate(a) should drop a")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	c.Invalidate()
	if c.Len() != 0 {
		t.Errorf("Invalidate() with no ids should flush, Len() = %d", c.Len())
	}
}

func TestDocumentCache_TTL(t *testing.T) {
	c := NewDocumentCache(20 * time.Millisecond)
	c.Put("doc-1", CreateTestDocument("doc-1", StatusCompleted))

	time.Sleep(50 * time.Millisecond)
	if _, ok := c.Get("doc-1"); ok {
		t.Error("entry should have expired")
	}
}
