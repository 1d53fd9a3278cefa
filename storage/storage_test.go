package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStore(t *testing.T) {
	testStore(t, Memory())
}

func TestFileStore(t *testing.T) {
	s, err := File(t.TempDir())
	require.NoError(t, err)
	testStore(t, s)
}

func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	_, err := s.Get(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, s.Set(ctx, "session", []byte(`{"access":"a"}`)))

	got, err := s.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"access":"a"}`), got)

	require.NoError(t, s.Set(ctx, "session", []byte(`{"access":"b"}`)))
	got, err = s.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"access":"b"}`), got)

	require.NoError(t, s.Delete(ctx, "session"))
	_, err = s.Get(ctx, "session")
	assert.ErrorIs(t, err, ErrNotFound)

	// deleting an absent key is not an error
	require.NoError(t, s.Delete(ctx, "session"))

	require.NoError(t, s.Close())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	s := Memory()

	value := []byte("original")
	require.NoError(t, s.Set(ctx, "k", value))
	value[0] = 'X'

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}
