package pipeline

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/libratom/libratom/internal/mailbag"
)

// SourceFile is one enumerated container file with its detected format.
type SourceFile struct {
	Path   string
	Format mailbag.Format
}

// Enumerate expands root into the ordered, finite list of container files
// the run will process. Directories are walked recursively in lexical
// order; non-container files are skipped silently. Any stat or walk error
// is a UsageError: a bad root argument aborts the run before any job
// starts.
func Enumerate(root string) ([]SourceFile, error) {
	info, err := os.Stat(root)
	if err != nil {
		return nil, &UsageError{Err: fmt.Errorf("stat %s: %w", root, err)}
	}

	if !info.IsDir() {
		format, ok := mailbag.DetectFormat(root)
		if !ok {
			return nil, &UsageError{Err: fmt.Errorf("%s is not a recognised mail container", root)}
		}
		return []SourceFile{{Path: root, Format: format}}, nil
	}

	var files []SourceFile
	err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if d.IsDir() {
			return nil
		}
		if format, ok := mailbag.DetectFormat(path); ok {
			files = append(files, SourceFile{Path: path, Format: format})
		}
		return nil
	})
	if err != nil {
		return nil, &UsageError{Err: err}
	}
	return files, nil
}
