package export

import (
	"fmt"
	"io"
)

// Exporter defines the interface for all export formats
type Exporter interface {
	Export(doc Document, w io.Writer) error
	Extension() string
}

// NewExporter creates a new exporter based on format
func NewExporter(format string) (Exporter, error) {
	switch format {
	case "pdf":
		return &PDFExporter{}, nil
	case "txt", "text":
		return &TextExporter{}, nil
	case "md", "markdown":
		return &MarkdownExporter{}, nil
	case "yaml", "yml":
		return &YAMLExporter{}, nil
	default:
		return nil, fmt.Errorf("unsupported format: %s (supported: pdf, txt, md, yaml)", format)
	}
}
