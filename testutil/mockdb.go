package testutil

import (
	"database/sql"
	"testing"

	_ "modernc.org/sqlite"
)

const createKVTableSQL = `
CREATE TABLE IF NOT EXISTS kv (
	key TEXT PRIMARY KEY,
	value TEXT
)`

// CreateInMemoryDB creates an in-memory SQLite database with the kv table
func CreateInMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("Failed to create in-memory database: %v", err)
	}
	// every connection to ":memory:" is a separate database
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(createKVTableSQL); err != nil {
		db.Close()
		t.Fatalf("Failed to create kv table: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	return db
}

// SampleDocumentsJSON is a persisted history of three documents, most recent first
const SampleDocumentsJSON = `[
	{"id":"doc-3","filename":"scan.png","status":"processing","createdAt":"2024-05-03T10:00:00Z","source":{"kind":"file"}},
	{"id":"doc-2","filename":"report.pdf","status":"completed","extractedText":"Quarterly report","pageCount":2,"createdAt":"2024-05-02T10:00:00Z","source":{"kind":"url","url":"https://example.com/report.pdf"}},
	{"id":"doc-1","filename":"broken.pdf","status":"failed","error":"OCR failed","createdAt":"2024-05-01T10:00:00Z","source":{"kind":"file"}}
]`

// CreateTestDB creates an in-memory database holding SampleDocumentsJSON under key
func CreateTestDB(t *testing.T, key string) *sql.DB {
	t.Helper()
	db := CreateInMemoryDB(t)
	InsertKV(t, db, key, SampleDocumentsJSON)
	return db
}

// InsertKV inserts or replaces a row of the kv table
func InsertKV(t *testing.T, db *sql.DB, key, value string) {
	t.Helper()
	insertSQL := "INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)"
	if _, err := db.Exec(insertSQL, key, value); err != nil {
		t.Fatalf("Failed to insert %s: %v", key, err)
	}
}
