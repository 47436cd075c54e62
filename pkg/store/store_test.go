package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cdnbox/pkg/store"
)

func newTestStore(t *testing.T) (*store.Store, string) {
	root := t.TempDir()
	logger := logrus.New()
	logger.SetOutput(os.Stderr)

	s, err := store.New(root, logger)
	require.NoError(t, err)
	return s, root
}

func writeFile(t *testing.T, path string, content []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, content, 0644))
}

func TestList_Order(t *testing.T) {
	s, root := newTestStore(t)

	writeFile(t, filepath.Join(root, "b.txt"), []byte("b"))
	writeFile(t, filepath.Join(root, "a.txt"), []byte("a"))
	require.NoError(t, os.Mkdir(filepath.Join(root, "Z"), 0755))
	require.NoError(t, os.Mkdir(filepath.Join(root, "m"), 0755))

	items, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, items, 4)

	var names []string
	for _, it := range items {
		names = append(names, it.Name)
	}
	// Directories first (alphabetical, case-insensitive), then files.
	assert.Equal(t, []string{"m", "Z", "a.txt", "b.txt"}, names)

	assert.True(t, items[0].IsDirectory)
	assert.Nil(t, items[0].Size)
	assert.False(t, items[2].IsDirectory)
	require.NotNil(t, items[2].Size)
	assert.Equal(t, int64(1), *items[2].Size)
}

func TestList_ExcludesDotfiles(t *testing.T) {
	s, root := newTestStore(t)

	writeFile(t, filepath.Join(root, ".hidden"), []byte("x"))
	require.NoError(t, os.Mkdir(filepath.Join(root, ".git"), 0755))
	writeFile(t, filepath.Join(root, "visible.txt"), []byte("x"))

	items, err := s.List(context.Background(), "")
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "visible.txt", items[0].Name)
}

func TestList_Errors(t *testing.T) {
	s, root := newTestStore(t)
	writeFile(t, filepath.Join(root, "file.txt"), []byte("x"))

	_, err := s.List(context.Background(), "does-not-exist")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.List(context.Background(), "file.txt")
	assert.ErrorIs(t, err, store.ErrNotDirectory)

	_, err = s.List(context.Background(), "bad\x00path")
	assert.ErrorIs(t, err, store.ErrUnsafePath)

	// Traversal segments are rejected even when the cleaned path would
	// resolve back under the root.
	require.NoError(t, os.Mkdir(filepath.Join(root, "sub"), 0755))
	_, err = s.List(context.Background(), "../sub")
	assert.ErrorIs(t, err, store.ErrUnsafePath)
}

func TestFolders(t *testing.T) {
	s, root := newTestStore(t)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "events", "2026"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "music"), 0755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".cache", "tmp"), 0755))
	writeFile(t, filepath.Join(root, "events", "a.png"), []byte("x"))

	folders, err := s.Folders(context.Background())
	require.NoError(t, err)

	assert.Contains(t, folders, "")
	assert.Contains(t, folders, "events")
	assert.Contains(t, folders, "events/2026")
	assert.Contains(t, folders, "music")
	assert.NotContains(t, folders, ".cache")
	assert.NotContains(t, folders, ".cache/tmp")
}

func TestSaveUpload(t *testing.T) {
	s, root := newTestStore(t)

	res, err := s.SaveUpload(context.Background(), "events", "photo.png", []byte("abc"))
	require.NoError(t, err)
	assert.Equal(t, "photo.png", res.Filename)
	assert.Equal(t, "events/photo.png", res.Path)
	assert.Equal(t, int64(3), res.Size)

	data, err := os.ReadFile(filepath.Join(root, "events", "photo.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)
}

func TestSaveUpload_Collision(t *testing.T) {
	s, root := newTestStore(t)

	_, err := s.SaveUpload(context.Background(), "events", "photo.png", []byte("one"))
	require.NoError(t, err)

	res, err := s.SaveUpload(context.Background(), "events", "photo.png", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, "photo_1.png", res.Filename)
	assert.Equal(t, "events/photo_1.png", res.Path)

	first, err := os.ReadFile(filepath.Join(root, "events", "photo.png"))
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), first, "original must remain untouched")
}

func TestSaveUpload_SanitizesFilename(t *testing.T) {
	s, root := newTestStore(t)

	res, err := s.SaveUpload(context.Background(), "", "../evil.png", []byte("x"))
	require.NoError(t, err)
	assert.Equal(t, "__evil.png", res.Filename)

	_, err = os.Stat(filepath.Join(root, "__evil.png"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(filepath.Dir(root), "evil.png"))
	assert.True(t, os.IsNotExist(err))
}

func TestSaveUpload_RejectsDotDestination(t *testing.T) {
	s, _ := newTestStore(t)

	for _, dest := range []string{"..", "../outside", "a/../b", "a/./b", "..\\win"} {
		_, err := s.SaveUpload(context.Background(), dest, "photo.png", []byte("x"))
		assert.ErrorIs(t, err, store.ErrUnsafePath, "destination %q", dest)
	}
}

func TestFilePath(t *testing.T) {
	s, root := newTestStore(t)

	writeFile(t, filepath.Join(root, "events", "photo.png"), []byte("x"))
	writeFile(t, filepath.Join(root, "secret.env"), []byte("x"))

	abs, err := s.FilePath("events/photo.png")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "events", "photo.png"), abs)

	// Disallowed extension, missing file, and directory target all
	// collapse into the same error.
	_, err = s.FilePath("secret.env")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FilePath("missing.png")
	assert.ErrorIs(t, err, store.ErrNotFound)
	_, err = s.FilePath("events")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
