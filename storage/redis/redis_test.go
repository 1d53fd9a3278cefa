package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grocerly/storefront/storage"
)

func newTestStore(t *testing.T, opts ...Option) *Store {
	t.Helper()

	mr := miniredis.RunT(t)
	s, err := New(Single(mr.Addr()), opts...)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundtrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	_, err := s.Get(ctx, "session")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Set(ctx, "session", []byte(`{"access":"a"}`)))

	got, err := s.Get(ctx, "session")
	require.NoError(t, err)
	assert.Equal(t, []byte(`{"access":"a"}`), got)

	require.NoError(t, s.Delete(ctx, "session"))
	_, err = s.Get(ctx, "session")
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "session"))
}

func TestStoreKeyPrefix(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	s, err := New(Single(mr.Addr()))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "session", []byte("v")))
	assert.True(t, mr.Exists("storefront:session"))
}

func TestStoreTTL(t *testing.T) {
	ctx := context.Background()

	mr := miniredis.RunT(t)
	s, err := New(Single(mr.Addr()), WithTTL(time.Minute))
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.Set(ctx, "session", []byte("v")))

	mr.FastForward(2 * time.Minute)
	_, err = s.Get(ctx, "session")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestNewInvalidConfig(t *testing.T) {
	_, err := New(nil)
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(&Config{})
	assert.ErrorIs(t, err, ErrEmptyAddrs)
}
