package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"pdfchat/internal/credential"
	"pdfchat/internal/model"
	"pdfchat/internal/pdfchat"

	"github.com/charmbracelet/lipgloss"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("212"))

	metaStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))

	userStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("39")).
			Bold(true)

	assistantStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("135")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	readyStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42"))

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("214"))

	contentStyle = lipgloss.NewStyle().
			PaddingLeft(2)
)

// renderDocuments prints the document list as a table.
func renderDocuments(w io.Writer, docs []model.Document) {
	if len(docs) == 0 {
		fmt.Fprintln(w, metaStyle.Render("No PDFs uploaded yet."))
		return
	}

	rows := [][]string{{"FILE ID", "NAME", "STATUS", "MESSAGES"}}
	for _, d := range docs {
		rows = append(rows, []string{d.FileID, d.Filename, readiness(d), strconv.Itoa(d.MessageCount)})
	}
	for _, line := range formatTable(rows, documentCellStyle) {
		fmt.Fprintln(w, line)
	}
}

func documentCellStyle(row, col int, cell string) string {
	switch {
	case row == 0:
		return headerStyle.Render(cell)
	case col == 0:
		return metaStyle.Render(cell)
	case col == 2:
		return statusStyle(cell)
	}
	return cell
}

func statusStyle(status string) string {
	if status == "ready" {
		return readyStyle.Render(status)
	}
	return pendingStyle.Render(status)
}

// formatTable measures plain cells and pads outside the styled text, so
// escape sequences never count toward alignment.
func formatTable(rows [][]string, style func(row, col int, cell string) string) []string {
	var widths []int
	for _, r := range rows {
		for i, c := range r {
			if i >= len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], lipgloss.Width(c))
		}
	}

	lines := make([]string, 0, len(rows))
	for ri, r := range rows {
		var b strings.Builder
		for ci, c := range r {
			b.WriteString(style(ri, ci, c))
			if ci < len(r)-1 {
				b.WriteString(strings.Repeat(" ", widths[ci]-lipgloss.Width(c)) + columnGap)
			}
		}
		lines = append(lines, b.String())
	}
	return lines
}

const columnGap = "   "

func readiness(d model.Document) string {
	if d.Indexed {
		return "ready"
	}
	return "indexing"
}

// renderCredentialStatus prints where the credential lives and what state
// the store and its key are in.
func renderCredentialStatus(w io.Writer, st credential.Status) {
	where := st.Path
	if st.Type == "memory" {
		where = "process memory"
	}
	fmt.Fprintf(w, "Credential: %s at %s (%s)\n", st.Type, where, presence(st.Exists || st.Type == "memory"))
	if st.Schema != "" {
		fmt.Fprintf(w, "Schema:     %s\n", st.Schema)
	}
	if st.Encrypted {
		fmt.Fprintf(w, "Key:        %s (%s)\n", st.KeyPath, presence(st.KeyPresent))
	} else {
		fmt.Fprintln(w, "Key:        encryption off")
	}
}

func presence(ok bool) string {
	if ok {
		return readyStyle.Render("present")
	}
	return pendingStyle.Render("missing")
}

// renderHeader prints the selected document and its conversation state.
func renderHeader(w io.Writer, snap pdfchat.Snapshot) {
	if snap.Document == nil {
		fmt.Fprintln(w, metaStyle.Render("No document selected."))
		return
	}
	fmt.Fprintf(w, "%s %s\n", headerStyle.Render(snap.Document.Filename), metaStyle.Render("("+snap.Document.FileID+")"))
	if snap.State == pdfchat.AwaitingReadiness {
		fmt.Fprintln(w, pendingStyle.Render(pdfchat.ErrNotReady.Error()+"."))
	}
}

// renderTranscript prints the header followed by every message.
func renderTranscript(w io.Writer, snap pdfchat.Snapshot) {
	renderHeader(w, snap)
	if snap.Document != nil && len(snap.Messages) == 0 {
		fmt.Fprintln(w, metaStyle.Render("Ask a question about this PDF."))
	}
	for _, m := range snap.Messages {
		renderMessage(w, m)
	}
}

// renderMessage prints one message with its author and time.
func renderMessage(w io.Writer, m model.Message) {
	label := assistantStyle.Render("Assistant")
	if m.Role == model.RoleUser {
		label = userStyle.Render("You")
	}

	stamp := ""
	if !m.Timestamp.IsZero() {
		stamp = " " + metaStyle.Render(m.Timestamp.Local().Format("15:04"))
	}
	fmt.Fprintf(w, "%s%s\n", label, stamp)

	body := strings.TrimRight(m.Content, "\n")
	if m.Error {
		body = errorStyle.Render(body)
	}
	fmt.Fprintln(w, contentStyle.Render(body))
}

// renderError prints err in the error style.
func renderError(w io.Writer, err error) {
	fmt.Fprintln(w, errorStyle.Render("Error: "+err.Error()))
}
