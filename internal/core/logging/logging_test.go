package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWritesStructuredFields(t *testing.T) {
	var buf bytes.Buffer
	logger, closeFn, err := New(Options{Level: "debug", Writer: &buf})
	require.NoError(t, err)
	defer func() { _ = closeFn() }()

	logger.Debug("history loaded", "session", "abc", "messages", 3)

	out := buf.String()
	assert.Contains(t, out, "history loaded")
	assert.Contains(t, out, "session=abc")
	assert.Contains(t, out, "messages=3")
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, _, err := New(Options{Level: "warn", Writer: &buf})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
}

func TestNewInvalidLevel(t *testing.T) {
	_, _, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNewFileSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	logger, closeFn, err := New(Options{File: path})
	require.NoError(t, err)

	logger.Error("sync failed", "err", "boom")
	require.NoError(t, closeFn())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "sync failed")
}
