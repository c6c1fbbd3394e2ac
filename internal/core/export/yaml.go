package export

import (
	"io"
	"time"

	"gopkg.in/yaml.v3"
)

type yamlDocument struct {
	SessionID  string `yaml:"session_id"`
	Title      string `yaml:"title"`
	ExportedAt string `yaml:"exported_at"`
	Messages   []Line `yaml:"messages"`
}

// YAMLExporter exports documents in YAML format
type YAMLExporter struct{}

// Export exports a document to YAML format
func (e *YAMLExporter) Export(doc Document, w io.Writer) error {
	enc := yaml.NewEncoder(w)
	defer func() { _ = enc.Close() }()
	enc.SetIndent(2)

	return enc.Encode(yamlDocument{
		SessionID:  doc.SessionID,
		Title:      doc.Title,
		ExportedAt: doc.ExportedAt.Format(time.RFC3339),
		Messages:   doc.Lines,
	})
}

// Extension returns the file extension for this format
func (e *YAMLExporter) Extension() string {
	return "yaml"
}
