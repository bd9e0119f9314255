package credentials

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadgerStore(t *testing.T) *BadgerStore {
	t.Helper()

	store, err := NewBadgerStoreInMemory()
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	return store
}

func TestBadgerCreateAndGet(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "alice", "secret-material", false))

	cred, err := store.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "alice", cred.Username)
	assert.Equal(t, "secret-material", cred.Secret)
	assert.False(t, cred.IsSuperuser)
}

func TestBadgerGetNotFound(t *testing.T) {
	store := newTestBadgerStore(t)

	cred, err := store.GetByUsername(context.Background(), "ghost")
	assert.Nil(t, cred)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerCreateDuplicate(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "alice", "first", false))
	err := store.Create(ctx, "alice", "second", true)
	assert.ErrorIs(t, err, ErrConflict)

	// The original record survives a rejected duplicate.
	cred, err := store.GetByUsername(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "first", cred.Secret)
}

func TestBadgerDelete(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	require.NoError(t, store.Create(ctx, "alice", "secret", false))
	require.NoError(t, store.Delete(ctx, "alice"))

	_, err := store.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, ErrNotFound)

	// Deleted means gone, so the name is free for reuse.
	require.NoError(t, store.Create(ctx, "alice", "fresh", false))
}

func TestBadgerDeleteNotFound(t *testing.T) {
	store := newTestBadgerStore(t)

	err := store.Delete(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestBadgerList(t *testing.T) {
	store := newTestBadgerStore(t)
	ctx := context.Background()

	creds, err := store.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, creds)

	require.NoError(t, store.Create(ctx, "alice", "h1", false))
	require.NoError(t, store.Create(ctx, "bob", "h2", true))

	creds, err = store.List(ctx)
	require.NoError(t, err)
	require.Len(t, creds, 2)

	byName := map[string]*Credential{}
	for _, c := range creds {
		byName[c.Username] = c
	}
	assert.True(t, byName["bob"].IsSuperuser)
	assert.False(t, byName["alice"].IsSuperuser)
}

func TestBadgerHealthCheck(t *testing.T) {
	store := newTestBadgerStore(t)

	assert.NoError(t, store.HealthCheck(context.Background()))

	store.Close()
	assert.Error(t, store.HealthCheck(context.Background()))
}
