package logx

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

func TestZeroLoggerIsSilent(t *testing.T) {
	var l Logger
	assert.True(t, l.IsZero())
	l.Info("nothing")
	l.With(String("comp", "x")).Error("still nothing")
}

func TestWriterLoggerCarriesFields(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "debug").With(String("comp", "queue"))
	l.Debug("drained", Int("count", 2), Err(os.ErrClosed))

	var m map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &m))
	assert.Equal(t, "drained", m["message"])
	assert.Equal(t, "queue", m["comp"])
	assert.Equal(t, float64(2), m["count"])
	assert.Equal(t, os.ErrClosed.Error(), m["err"])
	assert.Contains(t, m["caller"], "logging_test.go")
}

func TestWriterLoggerHonorsLevel(t *testing.T) {
	var buf bytes.Buffer
	l := NewWriter(&buf, "warn")
	l.Info("hidden")
	assert.Zero(t, buf.Len())
	assert.False(t, l.Enabled(LevelInfo))
	assert.True(t, l.Enabled(LevelError))
}

func TestServiceApplySwitchesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.log")
	svc, log := New(Config{Level: "info", File: FileConfig{Enabled: true, Path: path}})
	t.Cleanup(func() { _ = svc.Close() })

	log.Info("to file")
	svc.Apply(Config{Level: "error", File: FileConfig{Enabled: true, Path: path}})
	log.Info("filtered")
	log.Error("kept")

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(b)
	assert.True(t, strings.Contains(out, "to file"))
	assert.False(t, strings.Contains(out, "filtered"))
	assert.True(t, strings.Contains(out, "kept"))
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, LevelDebug, parseLevel(" debug ", LevelInfo))
	assert.Equal(t, LevelWarn, parseLevel("WARNING", LevelInfo))
	assert.Equal(t, LevelError, parseLevel("bogus", LevelError))
}
