package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoggerFiltersBelowMinLevel(t *testing.T) {
	var buf bytes.Buffer
	l, err := New(Options{Out: &buf, MinLevel: WARN, NoColor: true})
	require.NoError(t, err)

	l.Info("ORDER", "hidden")
	l.Warn("ORDER", "shown")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "[ORDER")
}

func TestLoggerWritesJSONFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	l, err := New(Options{Dir: dir, Service: "test", Out: &buf, NoColor: true})
	require.NoError(t, err)

	l.LogOrder("JOIN", "order-1", "user joined")
	l.Close()

	files, err := filepath.Glob(filepath.Join(dir, "test-*.log"))
	require.NoError(t, err)
	require.Len(t, files, 1)

	data, err := os.ReadFile(files[0])
	require.NoError(t, err)

	var last LogEntry
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &last))
	assert.Equal(t, "INFO", last.Level)
	assert.Equal(t, "ORDER", last.Category)
	assert.Equal(t, "test", last.Service)
	assert.Contains(t, last.Message, "[JOIN] order-1")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("debug"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, INFO, ParseLevel(""))
	assert.Equal(t, ERROR, ParseLevel(" ERROR "))
}

func TestNilAndDiscardLoggersAreSafe(t *testing.T) {
	var l *Logger
	assert.NotPanics(t, func() { l.Info("X", "y") })
	assert.NotPanics(t, func() { Discard().Error("X", "y") })
}
