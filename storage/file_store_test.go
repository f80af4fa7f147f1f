package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/threadrunner/config"
)

func newTestFileStore(t *testing.T) *LocalFileStore {
	t.Helper()
	store, err := NewLocalFileStore(config.FileStoreConfig{BasePath: t.TempDir()})
	require.NoError(t, err)
	return store
}

func TestLocalFileStore_SaveGetDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	meta, err := store.Save(ctx, "hello.txt", []byte("hello world"), "text/plain")
	require.NoError(t, err)
	assert.NotEmpty(t, meta.ID)
	assert.Equal(t, "text/plain", meta.MimeType)
	assert.Equal(t, int64(len("hello world")), meta.Size)

	data, err := store.Get(ctx, meta.ID)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))

	require.NoError(t, store.Delete(ctx, meta.ID))

	_, err = store.Get(ctx, meta.ID)
	assert.Error(t, err)
}

func TestLocalFileStore_RejectsOversizedFile(t *testing.T) {
	store := newTestFileStore(t)
	store.maxFileSize = 4

	_, err := store.Save(context.Background(), "big.txt", []byte("too big"), "text/plain")
	assert.Error(t, err)
}

func TestLocalFileStore_RejectsDisallowedMIME(t *testing.T) {
	store := newTestFileStore(t)

	_, err := store.Save(context.Background(), "evil.exe", []byte("MZ"), "application/x-msdownload")
	assert.Error(t, err)
}

func TestLocalFileStore_DetectsMIMEWhenUndeclared(t *testing.T) {
	store := newTestFileStore(t)

	meta, err := store.Save(context.Background(), "note.txt", []byte("plain text content"), "")
	require.NoError(t, err)
	assert.Equal(t, "text/plain; charset=utf-8", meta.MimeType)
}

func TestLocalFileStore_ShardedPath(t *testing.T) {
	store := newTestFileStore(t)

	meta, err := store.Save(context.Background(), "f.txt", []byte("x"), "text/plain")
	require.NoError(t, err)

	path, err := store.pathFor(meta.ID)
	require.NoError(t, err)
	assert.Equal(t, meta.ID[:2], filepath.Base(filepath.Dir(path)))
}

func TestLocalFileStore_BatchSaveAndDelete(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	metas, errs := store.BatchSave(ctx, []PendingFile{
		{Filename: "a.txt", Content: []byte("a"), DeclaredMimeType: "text/plain"},
		{Filename: "bad.bin", Content: []byte("b"), DeclaredMimeType: "application/x-msdownload"},
	})
	require.Len(t, metas, 1)
	require.Len(t, errs, 1)

	ids := []string{metas[0].ID}
	deleted, delErrs := store.BatchDelete(ctx, ids)
	assert.Equal(t, 1, deleted)
	assert.Empty(t, delErrs)
}

func TestLocalFileStore_ListFilesAndCleanupOrphans(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	meta1, err := store.Save(ctx, "keep.txt", []byte("keep"), "text/plain")
	require.NoError(t, err)
	meta2, err := store.Save(ctx, "orphan.txt", []byte("orphan"), "text/plain")
	require.NoError(t, err)

	ids, err := store.ListFiles(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{meta1.ID, meta2.ID}, ids)

	deleted, errs := store.CleanupOrphanedFiles(ctx, map[string]bool{meta1.ID: true})
	require.Empty(t, errs)
	assert.Equal(t, 1, deleted)

	remaining, err := store.ListFiles(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{meta1.ID}, remaining)
}

func TestLocalFileStore_CheckHealth(t *testing.T) {
	ctx := context.Background()
	store := newTestFileStore(t)

	_, err := store.Save(ctx, "a.txt", []byte("hello"), "text/plain")
	require.NoError(t, err)

	health, err := store.CheckHealth(ctx)
	require.NoError(t, err)
	assert.Equal(t, true, health["healthy"])
	assert.Equal(t, 1, health["file_count"])
	assert.Equal(t, int64(5), health["total_size"])
}
