package export

import (
	"fmt"
	"io"
	"time"

	"pdfchat/internal/model"
)

// Transcript is the server history of one document, ready to be written out.
type Transcript struct {
	Document      model.Document             `json:"document" yaml:"document"`
	Conversations []model.ConversationRecord `json:"conversations" yaml:"conversations"`
	ExportedAt    model.Timestamp            `json:"exported_at" yaml:"exported_at"`
}

// NewTranscript stamps a transcript with the export time.
func NewTranscript(doc model.Document, conversations []model.ConversationRecord, now time.Time) *Transcript {
	if conversations == nil {
		conversations = []model.ConversationRecord{}
	}
	return &Transcript{Document: doc, Conversations: conversations, ExportedAt: model.NewTimestamp(now)}
}

// MessageCount returns the number of messages across all conversations.
func (t *Transcript) MessageCount() int {
	n := 0
	for _, c := range t.Conversations {
		n += len(c.Messages)
	}
	return n
}

// Exporter writes a Transcript in one format.
type Exporter interface {
	Export(t *Transcript, w io.Writer) error
	Extension() string
}

// Formats lists the names accepted by NewExporter.
var Formats = []string{"md", "json", "yaml"}

// NewExporter creates a new exporter based on format.
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "json":
		return &JSONExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: md, json, yaml)", format)
	}
}
