package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"pdfchat/internal/model"
)

// MarkdownExporter writes a readable transcript, one section per conversation.
type MarkdownExporter struct{}

func (e *MarkdownExporter) Export(t *Transcript, w io.Writer) error {
	var b strings.Builder

	fmt.Fprintf(&b, "# %s\n\n", t.Document.Filename)
	fmt.Fprintf(&b, "**File ID:** %s  \n", t.Document.FileID)
	fmt.Fprintf(&b, "**Conversations:** %d  \n", len(t.Conversations))
	fmt.Fprintf(&b, "**Messages:** %d\n\n", t.MessageCount())

	for i, conv := range t.Conversations {
		fmt.Fprintf(&b, "---\n\n## Conversation %d\n\n", i+1)
		if len(conv.Messages) == 0 {
			b.WriteString("_No messages._\n\n")
			continue
		}
		for _, msg := range conv.Messages {
			writeMessage(&b, msg)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeMessage(b *strings.Builder, msg model.Message) {
	stamp := ""
	if !msg.Timestamp.IsZero() {
		stamp = " (" + msg.Timestamp.UTC().Format(time.DateTime) + ")"
	}
	fmt.Fprintf(b, "**%s:**%s\n\n%s\n\n", msg.Role, stamp, escapeMarkdown(msg.Content))
}

// escapeMarkdown escapes bold markers outside fenced code blocks.
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCode := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCode = !inCode
			continue
		}
		if inCode {
			continue
		}
		line = strings.ReplaceAll(line, "**", `\*\*`)
		lines[i] = strings.ReplaceAll(line, "__", `\_\_`)
	}
	return strings.Join(lines, "\n")
}

func (e *MarkdownExporter) Extension() string {
	return "md"
}
