package log

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestStderrHandler(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	h, c, err := newHandler(Options{}, &buf)
	require.NoError(t, err)
	require.Nil(t, c)
	require.False(t, h.Enabled(context.Background(), slog.LevelDebug))

	slog.New(h).Info("Analyzed report", "entries", 3)
	require.Contains(t, buf.String(), "Analyzed report")
	require.Contains(t, buf.String(), "entries")

	h, _, err = newHandler(Options{Debug: true}, &buf)
	require.NoError(t, err)
	require.True(t, h.Enabled(context.Background(), slog.LevelDebug))
}

func TestFileHandler(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "logs", "buildlens.log")
	h, c, err := newHandler(Options{File: path, Debug: true}, nil)
	require.NoError(t, err)
	require.NotNil(t, c)

	slog.New(h).Debug("Tool finished", "tool", "size")
	require.NoError(t, c.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var rec map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(data), &rec))
	require.Equal(t, "Tool finished", rec["msg"])
	require.Equal(t, "size", rec["tool"])
	require.Equal(t, "DEBUG", rec["level"])
}
