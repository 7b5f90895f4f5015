package storage

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// runStoreSuite exercises the behaviour every backend must share.
func runStoreSuite(t *testing.T, newStore func(t *testing.T) Store) {
	ctx := context.Background()

	t.Run("GetMissing", func(t *testing.T) {
		s := newStore(t)
		v, ok, err := s.Get(ctx, "purchase:nobody:nothing")
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Empty(t, v)
	})

	t.Run("SetOverwrites", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "k", "first"))
		require.NoError(t, s.Set(ctx, "k", "second"))
		v, ok, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, "second", v)
	})

	t.Run("ListSetEmpty", func(t *testing.T) {
		s := newStore(t)
		members, err := s.ListSet(ctx, "user:0xbbb:purchases")
		require.NoError(t, err)
		assert.NotNil(t, members)
		assert.Empty(t, members)
	})

	t.Run("AddToSetIdempotent", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.AddToSet(ctx, "set", "red-ghost-specter"))
		require.NoError(t, s.AddToSet(ctx, "set", "red-ghost-specter"))
		require.NoError(t, s.AddToSet(ctx, "set", "volcanic-lava"))
		members, err := s.ListSet(ctx, "set")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"red-ghost-specter", "volcanic-lava"}, members)
	})

	t.Run("ApplyWritesAll", func(t *testing.T) {
		s := newStore(t)
		err := s.Apply(ctx,
			SetOp("purchase:0xaaa:p1", `{"wallet":"0xaaa"}`),
			AddToSetOp("user:0xaaa:purchases", "p1"),
		)
		require.NoError(t, err)
		v, ok, err := s.Get(ctx, "purchase:0xaaa:p1")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.JSONEq(t, `{"wallet":"0xaaa"}`, v)
		members, err := s.ListSet(ctx, "user:0xaaa:purchases")
		require.NoError(t, err)
		assert.Equal(t, []string{"p1"}, members)
	})

	t.Run("ScanKeysByPrefix", func(t *testing.T) {
		s := newStore(t)
		require.NoError(t, s.Set(ctx, "purchase:a:1", "x"))
		require.NoError(t, s.Set(ctx, "purchase:b:2", "y"))
		require.NoError(t, s.Set(ctx, "other:c", "z"))
		require.NoError(t, s.AddToSet(ctx, "purchase-set", "m"))
		keys, err := s.ScanKeys(ctx, "purchase:")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"purchase:a:1", "purchase:b:2"}, keys)
	})

	t.Run("Ping", func(t *testing.T) {
		s := newStore(t)
		assert.NoError(t, s.Ping(ctx))
	})
}

func assertUnavailable(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnavailable), "expected ErrUnavailable, got %v", err)
}
