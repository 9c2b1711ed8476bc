package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"gopkg.in/yaml.v3"

	"pdfchat/internal/model"
)

var exportTime = time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)

func testTranscript() *Transcript {
	at := func(min int) model.Timestamp {
		return model.NewTimestamp(time.Date(2024, 1, 15, 10, min, 0, 0, time.UTC))
	}
	return NewTranscript(
		model.Document{FileID: "f1", Filename: "report.pdf", Indexed: true, MessageCount: 3},
		[]model.ConversationRecord{
			{Messages: []model.Message{
				{Role: model.RoleUser, Content: "What is **this**?", Timestamp: at(1)},
				{Role: model.RoleAssistant, Content: "A report.", Timestamp: at(2)},
			}},
			{Messages: []model.Message{
				{Role: model.RoleUser, Content: "```\nkeep **this**\n```", Timestamp: at(3)},
			}},
			{},
		},
		exportTime,
	)
}

func TestNewExporter(t *testing.T) {
	tests := []struct {
		format  string
		wantExt string
		wantErr bool
	}{
		{"md", "md", false},
		{"markdown", "md", false},
		{"json", "json", false},
		{"yaml", "yaml", false},
		{"yml", "yaml", false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			got, err := NewExporter(tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("NewExporter() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && got.Extension() != tt.wantExt {
				t.Errorf("Extension() = %q, want %q", got.Extension(), tt.wantExt)
			}
		})
	}
}

func TestMarkdownExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := (&MarkdownExporter{}).Export(testTranscript(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"# report.pdf",
		"**File ID:** f1",
		"**Conversations:** 3",
		"**Messages:** 3",
		"## Conversation 1",
		"**user:** (2024-01-15 10:01:00)",
		`What is \*\*this\*\*?`,
		"**assistant:** (2024-01-15 10:02:00)",
		"keep **this**",
		"## Conversation 3",
		"_No messages._",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("Export() output missing %q\n%s", want, out)
		}
	}
}

func TestJSONExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := (&JSONExporter{}).Export(testTranscript(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var got struct {
		Document      model.Document `json:"document"`
		Conversations []struct {
			Messages []model.Message `json:"messages"`
		} `json:"conversations"`
		ExportedAt string `json:"exported_at"`
	}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if got.Document.FileID != "f1" || len(got.Conversations) != 3 {
		t.Errorf("decoded = %+v", got)
	}
	if got.ExportedAt != "2024-01-15T12:00:00Z" {
		t.Errorf("exported_at = %q", got.ExportedAt)
	}
	if m := got.Conversations[0].Messages[1]; m.Role != model.RoleAssistant || m.Content != "A report." {
		t.Errorf("Conversations[0].Messages[1] = %+v", m)
	}
}

func TestYAMLExporter_Export(t *testing.T) {
	var buf bytes.Buffer
	if err := (&YAMLExporter{}).Export(testTranscript(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	var got map[string]any
	if err := yaml.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("output is not YAML: %v", err)
	}
	doc, ok := got["document"].(map[string]any)
	if !ok || doc["file_id"] != "f1" {
		t.Errorf("document = %v", got["document"])
	}
	if !strings.Contains(buf.String(), "role: user") {
		t.Errorf("output missing role field:\n%s", buf.String())
	}
}

type failingWriter struct{}

var errWrite = errors.New("disk full")

func (failingWriter) Write([]byte) (int, error) { return 0, errWrite }

func TestYAMLExporter_Export_WriteError(t *testing.T) {
	err := (&YAMLExporter{}).Export(testTranscript(), failingWriter{})
	if err == nil || !strings.Contains(err.Error(), errWrite.Error()) {
		t.Fatalf("Export() error = %v, want %v", err, errWrite)
	}
}

func TestNewTranscript_NilConversations(t *testing.T) {
	tr := NewTranscript(model.Document{FileID: "f1"}, nil, exportTime)
	if tr.Conversations == nil || tr.MessageCount() != 0 {
		t.Errorf("NewTranscript() = %+v", tr)
	}
}
