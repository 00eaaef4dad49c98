package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/libratom/libratom/internal/mailbag"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestEnumerateWalksRecursivelyInOrder(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "b.pst"))
	touch(t, filepath.Join(dir, "a.mbox"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, "nested", "deep.ost"))
	touch(t, filepath.Join(dir, "nested", "skip.dat"))

	files, err := Enumerate(dir)
	require.NoError(t, err)
	require.Len(t, files, 3)

	assert.Equal(t, filepath.Join(dir, "a.mbox"), files[0].Path)
	assert.Equal(t, mailbag.FormatMbox, files[0].Format)
	assert.Equal(t, filepath.Join(dir, "b.pst"), files[1].Path)
	assert.Equal(t, mailbag.FormatPff, files[1].Format)
	assert.Equal(t, filepath.Join(dir, "nested", "deep.ost"), files[2].Path)
	assert.Equal(t, mailbag.FormatPff, files[2].Format)
}

func TestEnumerateSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "inbox.mbox")
	touch(t, path)

	files, err := Enumerate(path)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, path, files[0].Path)
	assert.Equal(t, mailbag.FormatMbox, files[0].Format)
}

func TestEnumerateRejectsUnknownSingleFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "report.pdf")
	touch(t, path)

	_, err := Enumerate(path)
	require.Error(t, err)
	assert.True(t, IsUsage(err))
}

func TestEnumerateMissingRootIsUsageError(t *testing.T) {
	_, err := Enumerate(filepath.Join(t.TempDir(), "nope"))
	require.Error(t, err)
	assert.True(t, IsUsage(err))
}

func TestEnumerateEmptyDir(t *testing.T) {
	files, err := Enumerate(t.TempDir())
	require.NoError(t, err)
	assert.Empty(t, files)
}
