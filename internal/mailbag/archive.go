// Package mailbag is the container-reader boundary of the pipeline. It
// hides the format-specific parsing libraries behind a single Archive
// interface so the rest of the system never depends on them directly.
package mailbag

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies a supported mail container format.
type Format string

const (
	FormatPff  Format = "pff"  // PST/OST personal folder files
	FormatMbox Format = "mbox" // RFC 4155 mbox files
)

// AttachmentMeta describes one attachment of a message. Only metadata is
// carried; attachment content never crosses the pipeline.
type AttachmentMeta struct {
	Name        string
	Size        int64
	ContentType string
}

// Message is one parsed message from a container.
type Message struct {
	// Identifier is the container-native message identifier. It is nil for
	// formats without one (mbox).
	Identifier  *int64
	Headers     string
	Body        string
	Attachments []AttachmentMeta
}

// Archive is a single-pass reader over one container file. Implementations
// are not safe for concurrent use; open one handle per file per worker.
type Archive interface {
	// Next returns the next message. A non-nil error with ok=true means the
	// message is malformed and should be skipped; the caller may keep
	// calling Next. ok=false means the sequence is exhausted.
	Next() (msg Message, ok bool, err error)
	Close() error
}

// DetectFormat maps a file path to its container format by extension.
// The second return value is false for non-container files.
func DetectFormat(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".pst", ".ost":
		return FormatPff, true
	case ".mbox":
		return FormatMbox, true
	}
	return "", false
}

// Open opens path as the given format.
func Open(path string, format Format) (Archive, error) {
	switch format {
	case FormatMbox:
		return OpenMbox(path)
	case FormatPff:
		return OpenPff(path)
	}
	return nil, fmt.Errorf("unsupported container format %q", format)
}
