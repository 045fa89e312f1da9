package memory_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/zotoksheets/internal/adapter/driven/memory"
)

func TestStore_GetSetDelete(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()

	_, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v1"))
	require.NoError(t, store.Set(ctx, "k", "v2"))
	v, ok, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v2", v)

	require.NoError(t, store.Delete(ctx, "k"))
	require.NoError(t, store.Delete(ctx, "k"))
	_, ok, err = store.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStore_ListByPrefix(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	require.NoError(t, store.Set(ctx, "zotoks_mappings_a", "1"))
	require.NoError(t, store.Set(ctx, "zotoks_mappings_b", "2"))
	require.NoError(t, store.Set(ctx, "zotoks_credentials", "3"))

	got, err := store.List(ctx, "zotoks_mappings_")

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"zotoks_mappings_a": "1", "zotoks_mappings_b": "2"}, got)
}
