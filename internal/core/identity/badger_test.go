package identity

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStore_SurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := OpenBadgerStore(dir)
	require.NoError(t, err)
	x, err := OpenIndex(store)
	require.NoError(t, err)

	s := x.Stage()
	s.Resolve("sha1:alice")
	s.Resolve("key:Person:id=2")
	require.NoError(t, s.Commit())
	require.NoError(t, x.Close())

	store, err = OpenBadgerStore(dir)
	require.NoError(t, err)
	x, err = OpenIndex(store)
	require.NoError(t, err)
	defer x.Close()

	assert.Equal(t, 2, x.Len())
	id, ok := x.Lookup("key:Person:id=2")
	assert.True(t, ok)
	assert.Equal(t, int64(2), id)

	id, created, err := x.Resolve("sha1:bob")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(3), id)
}
