package cmd

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webrecall/webrecall/internal/config"
	"github.com/webrecall/webrecall/internal/embed"
	werrors "github.com/webrecall/webrecall/internal/errors"
	"github.com/webrecall/webrecall/internal/store"
)

func TestBuildLocal_SweepsExpiredOnStartup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "webrecall.db")
	ctx := context.Background()

	// Seed a disk database with one expired and one fresh 30_days row.
	seed, err := store.Open(path, embed.NewStaticEmbedder(32))
	require.NoError(t, err)
	old, err := seed.UpsertContent(ctx, store.UpsertParams{
		URL: "https://example.test/old", Title: "Old", Content: "stale page text",
		Retention: "30_days",
	})
	require.NoError(t, err)
	_, err = seed.DB().Exec(`UPDATE crawled_content SET crawled_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-45*24*time.Hour), old)
	require.NoError(t, err)
	_, err = seed.UpsertContent(ctx, store.UpsertParams{
		URL: "https://example.test/fresh", Title: "Fresh", Content: "current page text",
		Retention: "30_days",
	})
	require.NoError(t, err)
	require.NoError(t, seed.Close())

	cfg := config.NewConfig()
	cfg.Database.Path = path
	cfg.Database.UseMemoryDB = false
	cfg.Embedding.Provider = "static"
	cfg.Embedding.Dimensions = 32

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	a, err := buildLocal(ctx, cfg, logger)
	require.NoError(t, err)
	defer a.Close()

	// Disk mode has no periodic tick; the startup sweep retired the old row.
	_, err = a.engine.GetContentByURL(ctx, "https://example.test/old")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeNotFound, werrors.GetCode(err))

	row, err := a.engine.GetContentByURL(ctx, "https://example.test/fresh")
	require.NoError(t, err)
	assert.Equal(t, "Fresh", row.Title)
}
