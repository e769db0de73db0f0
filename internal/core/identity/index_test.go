package identity

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndex_ResolveAssignsOnce(t *testing.T) {
	x := NewIndex()

	id, created, err := x.Resolve("sha1:a")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(1), id)

	id, created, err = x.Resolve("sha1:a")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, int64(1), id)

	id, created, err = x.Resolve("sha1:b")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(2), id)
	assert.Equal(t, 2, x.Len())
}

func TestStage_CommitAndDiscard(t *testing.T) {
	x := NewIndex()

	s := x.Stage()
	id, created := s.Resolve("a")
	assert.True(t, created)
	assert.Equal(t, int64(1), id)

	// Second resolve in the same stage is a duplicate.
	_, created = s.Resolve("a")
	assert.False(t, created)

	_, ok := x.Lookup("a")
	assert.False(t, ok, "pending entries are invisible until commit")

	s.Discard()
	assert.Equal(t, 0, x.Len())

	s = x.Stage()
	id, _ = s.Resolve("b")
	assert.Equal(t, int64(1), id, "discarded ids are reused")
	require.NoError(t, s.Commit())

	s = x.Stage()
	_, created = s.Resolve("b")
	assert.False(t, created, "committed identities are known to later stages")
	id, created = s.Resolve("c")
	assert.True(t, created)
	assert.Equal(t, int64(2), id)
}

type mockStore struct {
	loaded map[string]int64
	saved  map[string]int64
	last   int64
	err    error
	closed bool
}

func (m *mockStore) Load(fn func(string, int64) error) (int64, error) {
	var last int64
	for k, v := range m.loaded {
		if err := fn(k, v); err != nil {
			return 0, err
		}
		if v > last {
			last = v
		}
	}
	return last, nil
}

func (m *mockStore) Save(entries map[string]int64, last int64) error {
	if m.err != nil {
		return m.err
	}
	if m.saved == nil {
		m.saved = map[string]int64{}
	}
	for k, v := range entries {
		m.saved[k] = v
	}
	m.last = last
	return nil
}

func (m *mockStore) Close() error {
	m.closed = true
	return nil
}

func TestOpenIndex_SeedsFromStore(t *testing.T) {
	store := &mockStore{loaded: map[string]int64{"a": 1, "b": 5}}
	x, err := OpenIndex(store)
	require.NoError(t, err)

	id, ok := x.Lookup("b")
	assert.True(t, ok)
	assert.Equal(t, int64(5), id)

	id, created, err := x.Resolve("c")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, int64(6), id)
	assert.Equal(t, map[string]int64{"c": 6}, store.saved)
	assert.Equal(t, int64(6), store.last)

	require.NoError(t, x.Close())
	assert.True(t, store.closed)
}

func TestStage_CommitPersistFailureKeepsMemory(t *testing.T) {
	store := &mockStore{err: errors.New("disk full")}
	x, err := OpenIndex(store)
	require.NoError(t, err)

	s := x.Stage()
	s.Resolve("a")
	err = s.Commit()
	assert.ErrorContains(t, err, "disk full")

	_, ok := x.Lookup("a")
	assert.True(t, ok)
}
