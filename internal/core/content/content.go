// Package content serves the static help pages shown next to the chat.
package content

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

//go:embed pages/*.txt
var pages embed.FS

// Page names a static page
type Page string

const (
	Docs    Page = "docs"
	FAQ     Page = "faq"
	Support Page = "support"
)

// Pages lists every page in menu order
var Pages = []Page{Docs, FAQ, Support}

// Title returns the menu title of a page
func (p Page) Title() string {
	switch p {
	case Docs:
		return "Documentation"
	case FAQ:
		return "FAQ"
	case Support:
		return "Support"
	}
	return string(p)
}

// Source loads pages, preferring <dir>/<page>.txt over the built-in text
type Source struct {
	dir string
}

// New creates a source. An empty dir serves only built-in pages.
func New(dir string) *Source {
	return &Source{dir: dir}
}

// Get returns the text of page p
func (s *Source) Get(p Page) (string, error) {
	name := string(p) + ".txt"

	if s.dir != "" {
		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err == nil {
			return string(data), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("failed to read %s: %w", name, err)
		}
	}

	data, err := pages.ReadFile("pages/" + name)
	if err != nil {
		return "", fmt.Errorf("unknown page %q: %w", p, err)
	}
	return string(data), nil
}
