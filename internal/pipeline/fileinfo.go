package pipeline

import (
	"crypto/md5"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileInfo carries the identity facts recorded on a FileReport: display
// name, byte size and both content digests.
type FileInfo struct {
	Name   string
	Size   int64
	MD5    string
	SHA256 string
}

// ScanFile computes both digests in a single pass over the file.
func ScanFile(path string) (FileInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return FileInfo{}, fmt.Errorf("scan %s: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return FileInfo{}, fmt.Errorf("scan %s: %w", path, err)
	}

	fast := md5.New()
	strong := sha256.New()
	if _, err := io.Copy(io.MultiWriter(fast, strong), f); err != nil {
		return FileInfo{}, fmt.Errorf("scan %s: %w", path, err)
	}

	return FileInfo{
		Name:   filepath.Base(path),
		Size:   st.Size(),
		MD5:    hex.EncodeToString(fast.Sum(nil)),
		SHA256: hex.EncodeToString(strong.Sum(nil)),
	}, nil
}
