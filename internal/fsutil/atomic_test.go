package fsutil

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	err := WriteAtomic(path, 0o644, func(w io.Writer) error {
		_, err := fmt.Fprint(w, "hello")
		return err
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestWriteAtomicFailureLeavesTargetIntact(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	require.NoError(t, os.WriteFile(path, []byte("original"), 0o644))

	boom := errors.New("boom")
	err := WriteAtomic(path, 0o644, func(w io.Writer) error {
		fmt.Fprint(w, "partial")
		return boom
	})
	assert.ErrorIs(t, err, boom)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "original", string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be cleaned up")
}

func TestCopyFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.bin")
	require.NoError(t, os.WriteFile(src, []byte("0123456789"), 0o600))

	n, err := CopyFile(src, filepath.Join(dir, "dst.bin"))
	require.NoError(t, err)
	assert.Equal(t, int64(10), n)

	_, err = CopyFile(filepath.Join(dir, "missing"), filepath.Join(dir, "x"))
	assert.True(t, os.IsNotExist(err))
}

func TestRemoveIfExists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "f")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	require.NoError(t, RemoveIfExists(path))
	require.NoError(t, RemoveIfExists(path))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}
