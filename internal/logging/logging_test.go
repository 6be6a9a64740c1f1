package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesToFile(t *testing.T) {
	// Given: a log file in a temp dir
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	logger, cleanup, err := Setup(Config{
		Level:     "info",
		Format:    "json",
		FilePath:  path,
		MaxSizeMB: 1,
		MaxFiles:  2,
	})
	require.NoError(t, err)
	defer cleanup()

	// When: logging a record
	logger.Info("content stored", slog.String("url", "https://example.test/a"))

	// Then: the file contains the structured record
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"content stored"`)
	assert.Contains(t, string(data), `"url":"https://example.test/a"`)
}

func TestSetup_TextFormat(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	logger, cleanup, err := Setup(Config{
		Level:     "debug",
		Format:    "text",
		FilePath:  path,
		MaxSizeMB: 1,
		MaxFiles:  2,
	})
	require.NoError(t, err)
	defer cleanup()

	logger.Debug("sync complete", slog.Int("records", 7))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=\"sync complete\"")
	assert.Contains(t, string(data), "records=7")
}

func TestSetup_LevelFiltering(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	logger, cleanup, err := Setup(Config{
		Level:     "warn",
		Format:    "json",
		FilePath:  path,
		MaxSizeMB: 1,
		MaxFiles:  2,
	})
	require.NoError(t, err)
	defer cleanup()

	logger.Info("should be filtered")
	logger.Warn("should appear")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "should be filtered")
	assert.Contains(t, string(data), "should appear")
}

func TestRotatingWriter_RotatesAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	// 1 MB max, write past it
	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)
	defer w.Close()

	chunk := strings.Repeat("x", 512*1024)
	for i := 0; i < 3; i++ {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}

	// Then: a rotated file exists
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"WARN", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelInfo},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, LevelFromString(tt.in), tt.in)
	}
}

func TestComponent_TagsLogger(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "server.log")

	logger, cleanup, err := Setup(Config{Level: "info", FilePath: path, MaxSizeMB: 1, MaxFiles: 1})
	require.NoError(t, err)
	defer cleanup()

	Component(logger, "mirror").Info("sync complete")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"mirror"`)
}

func TestRequestID_Unique(t *testing.T) {
	a := RequestID()
	b := RequestID()

	assert.Len(t, a, 16)
	assert.NotEqual(t, a, b)
}
