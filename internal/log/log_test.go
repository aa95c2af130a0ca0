package log

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T, level Level) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	SetLevel(level)
	t.Cleanup(func() {
		SetLevel(LevelInfo)
	})
	return &buf
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, ParseLevel("debug"))
	assert.Equal(t, LevelWarn, ParseLevel(" Warning "))
	assert.Equal(t, LevelError, ParseLevel("ERROR"))
	assert.Equal(t, LevelInfo, ParseLevel("verbose"))
}

func TestLevelFiltering(t *testing.T) {
	buf := captureOutput(t, LevelWarn)

	Info("hidden")
	Warn("shown", "zone", "Canada/Toronto")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "[WARN] shown zone=Canada/Toronto")
}

func TestErrorPutsErrFirst(t *testing.T) {
	buf := captureOutput(t, LevelDebug)

	Error("import failed", errors.New("boom"), "uid", "abc")

	assert.Contains(t, buf.String(), "[ERROR] import failed err=boom uid=abc")
}

func TestValuesWithSpacesAreQuoted(t *testing.T) {
	buf := captureOutput(t, LevelDebug)

	Debug("event", "title", "Mini-Fair & Garage Sale", "dangling")

	assert.Contains(t, buf.String(), `title="Mini-Fair & Garage Sale"`)
	assert.NotContains(t, buf.String(), "dangling")
}
