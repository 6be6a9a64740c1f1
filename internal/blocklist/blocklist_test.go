package blocklist

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	werrors "github.com/webrecall/webrecall/internal/errors"
)

func TestMatches_SuffixPattern(t *testing.T) {
	assert.True(t, Matches("*.ru", "https://example.ru/page"))
	assert.True(t, Matches("*.ru", "https://sub.example.ru/"))
	assert.False(t, Matches("*.ru", "https://example.run/page"))
	assert.False(t, Matches("*.ru", "https://example.com/ru"))
}

func TestMatches_KeywordPattern(t *testing.T) {
	assert.True(t, Matches("*casino*", "https://best-casino.example.com/"))
	assert.True(t, Matches("*casino*", "https://example.com/casino/slots"))
	assert.False(t, Matches("*casino*", "https://example.com/cards"))
}

func TestMatches_ExactHost(t *testing.T) {
	assert.True(t, Matches("example.com", "https://example.com/any/path"))
	assert.True(t, Matches("example.com", "example.com"))
	assert.False(t, Matches("example.com", "https://sub.example.com/"))
	assert.False(t, Matches("example.com", "https://example.org/"))
}

func TestBlocklist_SeedAndCheck(t *testing.T) {
	b := newTestBlocklist(t, "secret-token")
	ctx := context.Background()

	verdict, err := b.IsBlocked(ctx, "https://example.ru/doc")
	require.NoError(t, err)
	assert.True(t, verdict.Blocked)
	assert.Equal(t, "*.ru", verdict.Pattern)

	verdict, err = b.IsBlocked(ctx, "https://example.org/doc")
	require.NoError(t, err)
	assert.False(t, verdict.Blocked)
}

func TestBlocklist_CheckReturnsBlockedError(t *testing.T) {
	b := newTestBlocklist(t, "secret-token")
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, "*.blocked", "test pattern"))

	err := b.Check(ctx, "https://x.blocked/p")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeBlockedURL, werrors.GetCode(err))

	assert.NoError(t, b.Check(ctx, "https://x.allowed/p"))
}

func TestBlocklist_RemoveRequiresToken(t *testing.T) {
	b := newTestBlocklist(t, "secret-token")
	ctx := context.Background()

	require.NoError(t, b.Add(ctx, "*.gone", ""))

	err := b.Remove(ctx, "*.gone", "wrong")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeUnauthorized, werrors.GetCode(err))

	require.NoError(t, b.Remove(ctx, "*.gone", "secret-token"))

	verdict, err := b.IsBlocked(ctx, "https://x.gone/")
	require.NoError(t, err)
	assert.False(t, verdict.Blocked)
}

func TestBlocklist_RemoveDisabledWithoutToken(t *testing.T) {
	b := newTestBlocklist(t, "")
	err := b.Remove(context.Background(), "*.ru", "anything")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeUnauthorized, werrors.GetCode(err))
}

func TestBlocklist_AddValidatesPattern(t *testing.T) {
	b := newTestBlocklist(t, "tok")
	err := b.Add(context.Background(), "a", "too short")
	require.Error(t, err)
	assert.Equal(t, werrors.ErrCodeInvalidInput, werrors.GetCode(err))
}
