package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBoltStore(t *testing.T, path string) *BoltStore {
	s, err := OpenBoltStore(path)
	require.NoError(t, err)
	return s
}

func TestBoltStore(t *testing.T) {
	runStoreSuite(t, func(t *testing.T) Store {
		s := newTestBoltStore(t, filepath.Join(t.TempDir(), "ledger.db"))
		t.Cleanup(func() { s.Close() })
		return s
	})
}

func TestBoltStoreSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "ledger.db")
	ctx := context.Background()

	s := newTestBoltStore(t, path)
	require.NoError(t, s.Apply(ctx,
		SetOp("purchase:bitcoin:volcanic-lava", `{"wallet":"bitcoin"}`),
		AddToSetOp("user:bitcoin:purchases", "volcanic-lava"),
	))
	require.NoError(t, s.Close())

	s = newTestBoltStore(t, path)
	defer s.Close()
	v, ok, err := s.Get(ctx, "purchase:bitcoin:volcanic-lava")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, `{"wallet":"bitcoin"}`, v)

	members, err := s.ListSet(ctx, "user:bitcoin:purchases")
	require.NoError(t, err)
	assert.Equal(t, []string{"volcanic-lava"}, members)
}

func TestBoltStoreClosed(t *testing.T) {
	s := newTestBoltStore(t, filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, s.Close())
	assertUnavailable(t, s.Ping(context.Background()))
}
