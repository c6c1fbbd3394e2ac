// Package logging builds the structured logger shared by the CLI, the TUI
// and the MCP server. The TUI owns the terminal, so logs go to a file.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// Options controls where and how much is logged
type Options struct {
	Level   string // debug, info, warn, error
	File    string // empty means Writer
	Writer  io.Writer
	Verbose bool // forces debug
}

// New returns a logger and a close func for the underlying file, if any
func New(opts Options) (*log.Logger, func() error, error) {
	level := log.InfoLevel
	if opts.Level != "" {
		parsed, err := log.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return nil, nil, fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
		level = parsed
	}
	if opts.Verbose {
		level = log.DebugLevel
	}

	w := opts.Writer
	closeFn := func() error { return nil }
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return nil, nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w = f
		closeFn = f.Close
	}
	if w == nil {
		w = os.Stderr
	}

	logger := log.NewWithOptions(w, log.Options{
		Level:           level,
		Prefix:          "supportchat",
		ReportTimestamp: true,
		TimeFormat:      time.DateTime,
	})
	return logger, closeFn, nil
}

// Discard returns a logger that writes nowhere
func Discard() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{Level: log.ErrorLevel})
}
