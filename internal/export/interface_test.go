package export

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/iksnae/doc-session/internal"
)

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format   string
		wantType string
		wantExt  string
		wantErr  bool
	}{
		{format: "jsonl", wantType: "*export.JSONLExporter", wantExt: "jsonl"},
		{format: "md", wantType: "*export.MarkdownExporter", wantExt: "md"},
		{format: "markdown", wantType: "*export.MarkdownExporter", wantExt: "md"},
		{format: "yaml", wantType: "*export.YAMLExporter", wantExt: "yaml"},
		{format: "json", wantType: "*export.JSONExporter", wantExt: "json"},
		{format: "xml", wantErr: true},
		{format: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			exporter, err := NewExporter(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewExporter(%q) error = %v, wantErr %v", tt.format, err, tt.wantErr)
			}
			if tt.wantErr {
				if exporter != nil {
					t.Errorf("NewExporter(%q) returned %T, want nil", tt.format, exporter)
				}
				return
			}

			if got := fmt.Sprintf("%T", exporter); got != tt.wantType {
				t.Errorf("NewExporter(%q) = %s, want %s", tt.format, got, tt.wantType)
			}
			if got := exporter.Extension(); got != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", got, tt.wantExt)
			}
		})
	}
}

func TestExporters_EmptyTranscript(t *testing.T) {
	empty := &internal.Transcript{DocumentID: "doc-1"}

	for _, format := range []string{"json", "jsonl", "yaml", "md"} {
		exporter, err := NewExporter(format)
		if err != nil {
			t.Fatalf("NewExporter(%q) error = %v", format, err)
		}
		var buf bytes.Buffer
		if err := exporter.Export(empty, &buf); err != nil {
			t.Errorf("%s Export() of an empty transcript error = %v", format, err)
		}
	}
}
