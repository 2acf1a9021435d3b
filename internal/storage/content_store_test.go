// internal/storage/content_store_test.go
package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorePutGet(t *testing.T) {
	store := NewMemoryStore()

	address, err := store.Put([]byte(`{"quality_score":92}`))
	require.NoError(t, err)
	assert.Equal(t, ContentAddress([]byte(`{"quality_score":92}`)), address)

	data, err := store.Get(address)
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"quality_score":92}`), data)
}

func TestMemoryStoreContentAddressed(t *testing.T) {
	store := NewMemoryStore()

	a, err := store.Put([]byte("payload"))
	require.NoError(t, err)
	b, err := store.Put([]byte("payload"))
	require.NoError(t, err)
	c, err := store.Put([]byte("other payload"))
	require.NoError(t, err)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
}

func TestMemoryStoreNotFound(t *testing.T) {
	store := NewMemoryStore()

	_, err := store.Get("QmMissing")
	assert.ErrorIs(t, err, ErrContentNotFound)
}

func TestMemoryStoreCopiesData(t *testing.T) {
	store := NewMemoryStore()

	original := []byte("immutable")
	address, err := store.Put(original)
	require.NoError(t, err)

	original[0] = 'X'
	stored, err := store.Get(address)
	require.NoError(t, err)
	assert.Equal(t, []byte("immutable"), stored)
}
