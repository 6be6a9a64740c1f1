package blocklist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/webrecall/webrecall/internal/embed"
	"github.com/webrecall/webrecall/internal/store"
)

// newTestBlocklist builds a blocklist over an in-memory engine, seeded with
// the default pattern set.
func newTestBlocklist(t *testing.T, removalToken string) *Blocklist {
	t.Helper()

	engine, err := store.OpenMemory(embed.NewStaticEmbedder(16))
	require.NoError(t, err)
	t.Cleanup(func() { _ = engine.Close() })

	b, err := New(context.Background(), engine, removalToken)
	require.NoError(t, err)
	return b
}
