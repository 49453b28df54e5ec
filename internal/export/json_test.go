package export

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/iksnae/doc-session/internal"
)

func TestJSONExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	transcript := internal.CreateTestTranscript("doc-1", 3)

	if err := (&JSONExporter{}).Export(transcript, &buf); err != nil {
		t.Fatalf("JSONExporter.Export() error = %v", err)
	}

	var got internal.Transcript
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if got.DocumentID != "doc-1" || len(got.Messages) != 3 {
		t.Errorf("decoded transcript = %+v", got)
	}
	if got.Messages[1].Role != internal.RoleAssistant {
		t.Errorf("Messages[1].Role = %q, want assistant", got.Messages[1].Role)
	}
	if !bytes.Contains(buf.Bytes(), []byte("\n  \"document_id\"")) {
		t.Errorf("output should be indented, got:\n%s", buf.String())
	}
}

func TestJSONExporter_Extension(t *testing.T) {
	if got := (&JSONExporter{}).Extension(); got != "json" {
		t.Errorf("JSONExporter.Extension() = %v, want json", got)
	}
}
