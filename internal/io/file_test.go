package ioutils

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteFile_CreatesParents(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a", "b", "track.flac")

	require.NoError(t, WriteFile(context.Background(), path, []byte("data")))
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "data", string(got))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestDirSaver(t *testing.T) {
	dir := t.TempDir()
	save := DirSaver(context.Background(), dir)

	require.NoError(t, save("cover.jpg", []byte{1, 2, 3}))
	_, err := os.Stat(filepath.Join(dir, "cover.jpg"))
	assert.NoError(t, err)

	for _, bad := range []string{"", "..", "../x.flac", "sub/x.flac"} {
		assert.Error(t, save(bad, nil), bad)
	}
}
