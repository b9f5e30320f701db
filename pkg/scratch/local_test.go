package scratch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalStoreLifecycle(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "scratch")
	store, err := NewLocal(dir)
	require.NoError(t, err)

	ctx := context.Background()
	path, err := store.Save(ctx, "../../etc/driver photo.jpg", []byte("jpeg"))
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.True(t, strings.HasSuffix(path, "-driver_photo.jpg"), path)

	data, err := store.Read(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []byte("jpeg"), data)

	require.NoError(t, store.Remove(ctx, path))
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	assert.ErrorIs(t, store.Remove(ctx, path), ErrNotFound)
	_, err = store.Read(ctx, path)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLocalStoreUniqueNames(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	a, err := store.Save(context.Background(), "frame.png", []byte{1})
	require.NoError(t, err)
	b, err := store.Save(context.Background(), "frame.png", []byte{2})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
}

func TestLocalStoreRejectsForeignPaths(t *testing.T) {
	store, err := NewLocal(t.TempDir())
	require.NoError(t, err)

	assert.Error(t, store.Remove(context.Background(), "/etc/passwd"))
	_, err = store.Read(context.Background(), "/etc/passwd")
	assert.Error(t, err)
}

func TestUniqueNameFallback(t *testing.T) {
	assert.True(t, strings.HasSuffix(uniqueName(""), "-upload"))
	assert.True(t, strings.HasSuffix(uniqueName("/"), "-upload"))
}
