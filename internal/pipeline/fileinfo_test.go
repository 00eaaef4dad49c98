package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScanFileDigests(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sample.mbox")
	require.NoError(t, os.WriteFile(path, []byte("hello world"), 0o644))

	info, err := ScanFile(path)
	require.NoError(t, err)

	assert.Equal(t, "sample.mbox", info.Name)
	assert.EqualValues(t, 11, info.Size)
	assert.Equal(t, "5eb63bbbe01eeed093cb22bb8f5acdc3", info.MD5)
	assert.Equal(t, "b94d27b9934d3e08a52e52d7da7dabfac484efe37a5380ee9088f7ace2efcde9", info.SHA256)
}

func TestScanFileMissing(t *testing.T) {
	_, err := ScanFile(filepath.Join(t.TempDir(), "missing.pst"))
	require.Error(t, err)
}
