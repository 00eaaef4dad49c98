package mailbag

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/mail"
	"os"
	"strings"

	"github.com/emersion/go-mbox"
)

// frameSource yields raw message frames; satisfied by *mbox.Reader.
type frameSource interface {
	NextMessage() (io.Reader, error)
}

// mboxArchive adapts emersion/go-mbox to the Archive interface. The mbox
// reader frames messages; net/mail splits each frame into headers and body.
type mboxArchive struct {
	f      *os.File
	mr     frameSource
	broken bool
}

// OpenMbox opens an mbox file. The format has no magic header, so a file
// that does not start with a "From " separator is rejected here rather than
// producing an empty archive.
func OpenMbox(path string) (Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open mbox %s: %w", path, err)
	}

	probe := make([]byte, 5)
	if _, err := io.ReadFull(f, probe); err != nil || string(probe) != "From " {
		f.Close()
		return nil, fmt.Errorf("open mbox %s: not an mbox file", path)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		f.Close()
		return nil, fmt.Errorf("open mbox %s: %w", path, err)
	}

	return &mboxArchive{f: f, mr: mbox.NewReader(f)}, nil
}

func (a *mboxArchive) Next() (Message, bool, error) {
	if a.broken {
		return Message{}, false, nil
	}
	r, err := a.mr.NextMessage()
	if err == io.EOF {
		return Message{}, false, nil
	}
	if err != nil {
		// Framing is lost once the mbox reader errors; surface it once so
		// the job records a parse error, then end the sequence.
		a.broken = true
		return Message{}, true, fmt.Errorf("mbox framing: %w", err)
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return Message{}, true, fmt.Errorf("read mbox message: %w", err)
	}
	msg, err := mail.ReadMessage(strings.NewReader(string(raw)))
	if err != nil {
		return Message{}, true, fmt.Errorf("parse mbox message: %w", err)
	}

	bodyBytes, err := io.ReadAll(msg.Body)
	if err != nil {
		return Message{}, true, fmt.Errorf("read mbox message body: %w", err)
	}
	body := string(bodyBytes)

	headers := string(raw)
	if i := strings.Index(headers, "\r\n\r\n"); i >= 0 {
		headers = headers[:i]
	} else if i := strings.Index(headers, "\n\n"); i >= 0 {
		headers = headers[:i]
	}

	return Message{
		Identifier:  nil, // mbox has no container-native identifier
		Headers:     headers,
		Body:        body,
		Attachments: mboxAttachments(msg.Header.Get("Content-Type"), body),
	}, true, nil
}

// mboxAttachments walks the parts of a multipart body and collects metadata
// for parts carrying a filename. Malformed MIME degrades to "no
// attachments" rather than failing the message.
func mboxAttachments(contentType, body string) []AttachmentMeta {
	if contentType == "" {
		return nil
	}
	mediaType, params, err := mime.ParseMediaType(contentType)
	if err != nil || !strings.HasPrefix(mediaType, "multipart/") || params["boundary"] == "" {
		return nil
	}

	var out []AttachmentMeta
	mr := multipart.NewReader(strings.NewReader(body), params["boundary"])
	for {
		part, err := mr.NextPart()
		if err != nil {
			return out
		}
		name := part.FileName()
		if name == "" {
			continue
		}
		data, err := io.ReadAll(part)
		if err != nil {
			continue
		}
		partType := part.Header.Get("Content-Type")
		if partType != "" {
			if mt, _, err := mime.ParseMediaType(partType); err == nil {
				partType = mt
			}
		}
		out = append(out, AttachmentMeta{
			Name:        name,
			Size:        int64(len(data)),
			ContentType: partType,
		})
	}
}

func (a *mboxArchive) Close() error {
	if a.f == nil {
		return errors.New("mbox archive already closed")
	}
	err := a.f.Close()
	a.f = nil
	return err
}
