package cmd

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/iksnae/doc-session/internal"
	"github.com/iksnae/doc-session/testutil"
)

func TestUploadCommand(t *testing.T) {
	env := newTestEnv(t)
	file := testutil.WriteTempFile(t, "invoice.pdf", []byte("%PDF-1.4"))

	out, err := env.run(t, "", "upload", file)
	if err != nil {
		t.Fatalf("upload error = %v", err)
	}
	assertContains(t, out, "doc-1", "processing")

	docs := env.documents(t)
	if len(docs) != 1 {
		t.Fatalf("persisted %d documents, want 1", len(docs))
	}
	if docs[0].Filename != "invoice.pdf" || docs[0].Source.Kind != internal.SourceFile {
		t.Errorf("persisted document = %+v", docs[0])
	}
}

func TestUploadCommand_Wait(t *testing.T) {
	env := newTestEnv(t)
	env.backend.InitialStatus = "completed"
	file := testutil.WriteTempFile(t, "scan.png", []byte("png"))

	out, err := env.run(t, "", "upload", file, "--wait")
	if err != nil {
		t.Fatalf("upload --wait error = %v", err)
	}
	assertContains(t, out, "completed")
	if got := env.backend.CountRequests("GET /api/documents/doc-1"); got != 1 {
		t.Errorf("status requests = %d, want 1", got)
	}
}

func TestUploadCommand_Errors(t *testing.T) {
	tests := []struct {
		name string
		file func(t *testing.T) string
	}{
		{
			name: "missing file",
			file: func(t *testing.T) string { return filepath.Join(t.TempDir(), "missing.pdf") },
		},
		{
			name: "unsupported type",
			file: func(t *testing.T) string { return testutil.WriteTempFile(t, "notes.txt", []byte("hi")) },
		},
		{
			name: "no argument",
			file: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			args := []string{"upload"}
			if tt.file != nil {
				args = append(args, tt.file(t))
			}
			if _, err := env.run(t, "", args...); err == nil {
				t.Error("expected upload to fail")
			}
			if docs := env.documents(t); len(docs) != 0 {
				t.Errorf("a failed upload recorded %d document(s)", len(docs))
			}
		})
	}
}

func TestSubmitCommand(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "submit", "https://example.com/files/report.pdf")
	if err != nil {
		t.Fatalf("submit error = %v", err)
	}
	assertContains(t, out, "doc-1")

	docs := env.documents(t)
	if len(docs) != 1 {
		t.Fatalf("persisted %d documents, want 1", len(docs))
	}
	if !docs[0].IsURL() || docs[0].Source.URL != "https://example.com/files/report.pdf" {
		t.Errorf("source = %+v", docs[0].Source)
	}
	if docs[0].Filename != "report.pdf" {
		t.Errorf("filename = %q, want report.pdf", docs[0].Filename)
	}
}

func TestSubmitCommand_Wait(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		statuses int
	}{
		{"no wait", nil, 0},
		{"wait", []string{"--wait"}, 1},
		{"wait shorthand", []string{"-w"}, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			env.backend.InitialStatus = "completed"

			args := append([]string{"submit", "https://example.com/files/report.pdf"}, tt.args...)
			out, err := env.run(t, "", args...)
			if err != nil {
				t.Fatalf("submit error = %v", err)
			}
			assertContains(t, out, "doc-1", "completed")
			if got := env.backend.CountRequests("GET /api/documents/doc-1"); got != tt.statuses {
				t.Errorf("status requests = %d, want %d", got, tt.statuses)
			}
		})
	}
}

func TestSubmitCommand_InvalidURL(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "submit", "not a url")
	if err == nil {
		t.Fatal("expected an invalid URL to be rejected")
	}
	if internal.KindOf(err) != internal.KindValidation {
		t.Errorf("KindOf(%v) = %v, want validation", err, internal.KindOf(err))
	}
	if got := env.backend.CountRequests("POST /api/documents/process-url"); got != 0 {
		t.Errorf("backend received %d submissions", got)
	}
}

func TestListCommand(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out, err := env.run(t, "", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	assertContains(t, out, "Found 3 document(s)", "doc-1", "doc-2", "doc-3", "report.pdf", "example.com/report.pdf")

	if i, j := strings.Index(out, "doc-3"), strings.Index(out, "doc-1"); i > j {
		t.Error("documents should be listed most recent first")
	}
	if len(env.backend.Requests()) != 0 {
		t.Errorf("list without --refresh contacted the backend: %v", env.backend.Requests())
	}
}

func TestListCommand_Empty(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run(t, "", "list")
	if err != nil {
		t.Fatalf("list error = %v", err)
	}
	assertContains(t, out, "No documents found")
}

func TestListCommand_Refresh(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.backend.AddDocument(testutil.BackendDocument{ID: "doc-3", Filename: "scan.png", Status: "completed", Pages: []string{"text"}})

	if _, err := env.run(t, "", "list", "--refresh"); err != nil {
		t.Fatalf("list --refresh error = %v", err)
	}

	if got := env.backend.CountRequests("GET /api/documents/doc-3"); got != 1 {
		t.Errorf("doc-3 refreshed %d times, want 1", got)
	}
	if got := env.backend.CountRequests("GET /api/documents/doc-2"); got != 0 {
		t.Errorf("terminal doc-2 refreshed %d times", got)
	}
	docs := env.documents(t)
	if docs[0].ID != "doc-3" || docs[0].Status != internal.StatusCompleted {
		t.Errorf("doc-3 after refresh = %+v", docs[0])
	}
}

func TestShowCommand(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out, err := env.run(t, "", "show", "doc-2", "--text")
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	assertContains(t, out, "report.pdf", "Status: completed", "Pages: 2", "Quarterly report")
	if len(env.backend.Requests()) != 0 {
		t.Error("a cached terminal document should not be fetched")
	}
}

func TestShowCommand_Failed(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	out, err := env.run(t, "", "show", "doc-1", "--text")
	if err != nil {
		t.Fatalf("show error = %v", err)
	}
	assertContains(t, out, "Status: failed", "OCR failed", "no extracted text")
}

func TestShowCommand_Refresh(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.backend.AddDocument(testutil.BackendDocument{ID: "doc-3", Filename: "scan.png", Status: "processing"})

	out, err := env.run(t, "", "show", "doc-3", "--refresh")
	if err != nil {
		t.Fatalf("show --refresh error = %v", err)
	}
	assertContains(t, out, "Status: processing")
	if got := env.backend.CountRequests("GET /api/documents/doc-3"); got != 1 {
		t.Errorf("status requests = %d, want 1", got)
	}
}

func TestShowCommand_Wait(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.backend.AddDocument(testutil.BackendDocument{ID: "doc-3", Filename: "scan.png", Status: "processing"})

	go func() {
		time.Sleep(50 * time.Millisecond)
		env.backend.Complete("doc-3", "page one")
	}()

	cfgPath := testutil.WriteConfigFixture(t, env.dir, "poll_interval: 10ms\n")
	out, err := env.run(t, "", "--config", cfgPath, "show", "doc-3", "--wait", "--text")
	if err != nil {
		t.Fatalf("show --wait error = %v", err)
	}
	assertContains(t, out, "Status: completed", "page one")
}

func TestShowCommand_NotFound(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.run(t, "", "show", "missing")
	if internal.KindOf(err) != internal.KindNotFound {
		t.Errorf("show missing error = %v, want not found", err)
	}
}

func TestRemoveCommand(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)
	env.backend.AddDocument(testutil.BackendDocument{ID: "doc-2", Filename: "report.pdf", Status: "completed"})

	if _, err := env.run(t, "", "remove", "doc-2"); err != nil {
		t.Fatalf("remove error = %v", err)
	}

	docs := env.documents(t)
	if len(docs) != 2 || docs[0].ID != "doc-3" || docs[1].ID != "doc-1" {
		t.Errorf("remaining documents = %v", docs)
	}
	if _, ok := env.backend.Document("doc-2"); ok {
		t.Error("remote copy should be deleted")
	}

	_, err := env.run(t, "", "rm", "doc-2")
	if internal.KindOf(err) != internal.KindNotFound {
		t.Errorf("second remove error = %v, want not found", err)
	}
}

func TestCacheClearCommand(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t)

	if _, err := env.run(t, "", "cache", "clear"); err != nil {
		t.Fatalf("cache clear error = %v", err)
	}
	if docs := env.documents(t); len(docs) != 0 {
		t.Errorf("%d document(s) left after clear", len(docs))
	}
	if len(env.backend.Requests()) != 0 {
		t.Error("cache clear should not contact the backend")
	}
}
