package blobstore

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemStorePutGetDelete(t *testing.T) {
	store := NewMemStore()
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, "k", strings.NewReader("payload"), 7, "text/plain"))

	r, err := store.Get(ctx, "k")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	require.NoError(t, store.Delete(ctx, "k"))
	_, err = store.Get(ctx, "k")
	assert.Error(t, err)
}

func TestMemStoreGetMissingKey(t *testing.T) {
	store := NewMemStore()
	_, err := store.Get(context.Background(), "missing")
	assert.Error(t, err)
}

func TestMemStorePresignGet(t *testing.T) {
	store := NewMemStore()
	url, err := store.PresignGet(context.Background(), "k", 0)
	require.NoError(t, err)
	assert.Equal(t, "mem://k", url)
}
