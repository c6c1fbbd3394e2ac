// Package export writes a chat transcript to a file.
package export

import (
	"errors"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cbroglie/mustache"
	"github.com/microcosm-cc/bluemonday"
	"github.com/neilberkman/supportchat/internal/core/models"
	"github.com/neilberkman/supportchat/internal/core/render"
)

// ErrEmptyTranscript is returned when there is nothing to export
var ErrEmptyTranscript = errors.New("no messages to export")

var stripPolicy = bluemonday.StrictPolicy()

// Line is one labelled message of an export
type Line struct {
	Role  models.Role `yaml:"role"`
	Label string      `yaml:"-"`
	Text  string      `yaml:"text"`
}

// Document is a transcript prepared for export
type Document struct {
	SessionID  string
	Title      string
	Heading    string
	ExportedAt time.Time
	Lines      []Line
}

// Select returns the live transcript, or the stored one if the live
// transcript is empty
func Select(visible, stored []models.Message) []models.Message {
	if len(visible) > 0 {
		return visible
	}
	return stored
}

// StripMarkup removes HTML tags and decodes entities
func StripMarkup(text string) string {
	return strings.TrimSpace(html.UnescapeString(stripPolicy.Sanitize(text)))
}

// NewDocument builds a document for session from msgs. The heading is
// rendered from titleTemplate, a mustache template with the variables
// session_id, title, exported_at and message_count.
func NewDocument(session models.ChatSession, msgs []models.Message, titleTemplate string, now time.Time) (Document, error) {
	doc := Document{
		SessionID:  session.ID,
		Title:      session.Title,
		ExportedAt: now,
	}
	for _, m := range msgs {
		text := StripMarkup(m.Text)
		if text == "" {
			continue
		}
		doc.Lines = append(doc.Lines, Line{
			Role:  m.Role,
			Label: render.RoleLabel(m.Role),
			Text:  text,
		})
	}
	if len(doc.Lines) == 0 {
		return doc, ErrEmptyTranscript
	}

	doc.Heading = doc.Title
	if titleTemplate != "" {
		heading, err := mustache.Render(titleTemplate, map[string]interface{}{
			"session_id":    doc.SessionID,
			"title":         doc.Title,
			"exported_at":   now.Format(time.DateTime),
			"message_count": len(doc.Lines),
		})
		if err != nil {
			return doc, fmt.Errorf("failed to render export title: %w", err)
		}
		doc.Heading = html.UnescapeString(heading)
	}
	if doc.Heading == "" {
		doc.Heading = doc.SessionID
	}
	return doc, nil
}

// WriteFile exports doc to dir/<sessionID>.<ext> and returns the path.
// No file is created for an empty document.
func WriteFile(dir, sessionID, format string, doc Document) (string, error) {
	exp, err := NewExporter(format)
	if err != nil {
		return "", err
	}
	if len(doc.Lines) == 0 {
		return "", ErrEmptyTranscript
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, fileName(sessionID)+"."+exp.Extension())

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := exp.Export(doc, f); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return "", fmt.Errorf("failed to export %s: %w", format, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close export file: %w", err)
	}
	return path, nil
}

func fileName(sessionID string) string {
	name := strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ':', 0:
			return '_'
		}
		return r
	}, strings.TrimSpace(sessionID))
	if name == "" || name == "." || name == ".." {
		return "chat"
	}
	return name
}
