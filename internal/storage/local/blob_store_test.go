// Package local_test tests the local filesystem blob store.
package local_test

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ulritter/freelance-crawler/internal/storage"
	"github.com/ulritter/freelance-crawler/internal/storage/local"
)

func TestNew(t *testing.T) {
	t.Run("ValidConfig", func(t *testing.T) {
		tempDir := t.TempDir()
		store, err := local.New(local.Config{BaseDir: tempDir})
		require.NoError(t, err)
		assert.NotNil(t, store)
	})

	t.Run("MissingBaseDir", func(t *testing.T) {
		_, err := local.New(local.Config{})
		assert.Error(t, err)
	})

	t.Run("BaseDirIsNotADirectory", func(t *testing.T) {
		tempFile, err := os.CreateTemp("", "testfile")
		require.NoError(t, err)
		t.Cleanup(func() {
			removeErr := os.Remove(tempFile.Name())
			if removeErr != nil && !os.IsNotExist(removeErr) {
				t.Fatalf("failed to remove temp file: %v", removeErr)
			}
		})

		_, err = local.New(local.Config{BaseDir: tempFile.Name()})
		assert.Error(t, err)
	})
}

func TestPutGetRoundTrip(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	uri, err := store.PutObject(ctx, "docs/cv.pdf", "application/pdf", []byte("%PDF-1.4"))
	require.NoError(t, err)
	assert.Contains(t, uri, "file://")

	data, err := store.GetObject(ctx, "docs/cv.pdf")
	require.NoError(t, err)
	assert.Equal(t, []byte("%PDF-1.4"), data)
}

func TestPathTraversalRejected(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	_, err = store.PutObject(context.Background(), "../escape.txt", "text/plain", []byte("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "path traversal")
}

func TestListAndDelete(t *testing.T) {
	t.Parallel()

	store, err := local.New(local.Config{BaseDir: t.TempDir()})
	require.NoError(t, err)

	ctx := context.Background()
	_, err = store.PutObject(ctx, "docs/a.txt", "text/plain", []byte("a"))
	require.NoError(t, err)
	_, err = store.PutObject(ctx, "other/b.txt", "text/plain", []byte("b"))
	require.NoError(t, err)

	infos, err := store.ListObjects(ctx, "docs/")
	require.NoError(t, err)
	require.Len(t, infos, 1)
	assert.Equal(t, "docs/a.txt", infos[0].Path)
	assert.Equal(t, int64(1), infos[0].Size)

	require.NoError(t, store.DeleteObject(ctx, "docs/a.txt"))
	err = store.DeleteObject(ctx, "docs/a.txt")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)

	_, err = store.GetObject(ctx, "docs/a.txt")
	assert.ErrorIs(t, err, storage.ErrObjectNotFound)
}
