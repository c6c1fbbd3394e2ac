package export

import (
	"io"
	"strings"

	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/neilberkman/supportchat/internal/core/render"
)

// TextExporter writes "Label: text" lines joined by newlines
type TextExporter struct{}

// Export exports a document to plain text
func (e *TextExporter) Export(doc Document, w io.Writer) error {
	_, err := io.WriteString(w, FormatText(doc))
	return err
}

// Extension returns the file extension for this format
func (e *TextExporter) Extension() string {
	return "txt"
}

// FormatText returns the plain text payload of doc
func FormatText(doc Document) string {
	lines := make([]string, len(doc.Lines))
	for i, l := range doc.Lines {
		lines[i] = l.Label + ": " + l.Text
	}
	return strings.Join(lines, "\n")
}

// ParseText splits a plain text export back into messages. Lines that do
// not start with a role label continue the previous message.
func ParseText(text string) []models.Message {
	prefixes := map[string]models.Role{
		render.RoleLabel(models.RoleUser) + ": ": models.RoleUser,
		render.RoleLabel(models.RoleBot) + ": ":  models.RoleBot,
	}

	var out []models.Message
	for _, line := range strings.Split(text, "\n") {
		matched := false
		for prefix, role := range prefixes {
			if strings.HasPrefix(line, prefix) {
				out = append(out, models.NewMessage(role, strings.TrimPrefix(line, prefix)))
				matched = true
				break
			}
		}
		if matched || len(out) == 0 {
			continue
		}
		last := &out[len(out)-1]
		*last = models.NewMessage(last.Role, last.Text+"\n"+line)
	}
	return out
}
