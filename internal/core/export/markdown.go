package export

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// MarkdownExporter exports documents in Markdown format
type MarkdownExporter struct{}

// Export exports a document to Markdown format
func (e *MarkdownExporter) Export(doc Document, w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", escapeMarkdown(doc.Heading))
	fmt.Fprintf(&b, "**Session:** %s  \n", doc.SessionID)
	fmt.Fprintf(&b, "**Exported:** %s  \n", doc.ExportedAt.Format(time.DateTime))
	fmt.Fprintf(&b, "**Messages:** %d\n\n", len(doc.Lines))
	b.WriteString("---\n\n")

	for i, l := range doc.Lines {
		fmt.Fprintf(&b, "**%s:**\n\n%s\n\n", l.Label, escapeMarkdown(l.Text))
		if i < len(doc.Lines)-1 {
			b.WriteString("---\n\n")
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// escapeMarkdown escapes emphasis markers outside code blocks
func escapeMarkdown(text string) string {
	lines := strings.Split(text, "\n")
	inCodeBlock := false
	for i, line := range lines {
		if strings.HasPrefix(line, "```") {
			inCodeBlock = !inCodeBlock
			continue
		}
		if inCodeBlock {
			continue
		}
		line = strings.ReplaceAll(line, "**", "\\*\\*")
		lines[i] = strings.ReplaceAll(line, "__", "\\_\\_")
	}
	return strings.Join(lines, "\n")
}

// Extension returns the file extension for this format
func (e *MarkdownExporter) Extension() string {
	return "md"
}
