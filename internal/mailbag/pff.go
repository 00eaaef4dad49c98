package mailbag

import (
	"errors"
	"fmt"
	"os"

	pst "github.com/mooijtech/go-pst/v6/pkg"
	"github.com/mooijtech/go-pst/v6/pkg/properties"
)

// messageCursor yields the messages of a single folder.
type messageCursor interface {
	Next() bool
	Err() error
	Value() (Message, error)
}

// errFolderEmpty marks a folder with no message table; the archive skips it
// silently instead of surfacing a parse error.
var errFolderEmpty = errors.New("folder has no messages")

// pffArchive adapts mooijtech/go-pst to the Archive interface. The pst
// library walks folders push-style; the folder list is collected up front
// (it is small) and messages are pulled folder by folder through cursors.
type pffArchive struct {
	f       *os.File
	pstFile *pst.File
	queue   []func() (messageCursor, error)
	current messageCursor
}

// OpenPff opens a PST/OST file.
func OpenPff(path string) (Archive, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open pst %s: %w", path, err)
	}

	pstFile, err := pst.New(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("open pst %s: %w", path, err)
	}

	a := &pffArchive{f: f, pstFile: pstFile}
	if err := pstFile.WalkFolders(func(folder *pst.Folder) error {
		a.queue = append(a.queue, func() (messageCursor, error) {
			iter, err := folder.GetMessageIterator()
			if errors.Is(err, pst.ErrMessagesNotFound) {
				return nil, errFolderEmpty
			}
			if err != nil {
				return nil, err
			}
			return &pstCursor{iter: iter}, nil
		})
		return nil
	}); err != nil {
		pstFile.Cleanup()
		f.Close()
		return nil, fmt.Errorf("walk pst folders %s: %w", path, err)
	}
	return a, nil
}

func (a *pffArchive) Next() (Message, bool, error) {
	for {
		if a.current == nil {
			if len(a.queue) == 0 {
				return Message{}, false, nil
			}
			open := a.queue[0]
			a.queue = a.queue[1:]

			cur, err := open()
			if errors.Is(err, errFolderEmpty) {
				continue
			}
			if err != nil {
				// The folder is unreadable; surface one skippable error and
				// move on to the next folder.
				return Message{}, true, fmt.Errorf("pst folder messages: %w", err)
			}
			a.current = cur
		}

		if !a.current.Next() {
			err := a.current.Err()
			a.current = nil
			if err != nil {
				return Message{}, true, fmt.Errorf("pst message iteration: %w", err)
			}
			continue
		}

		msg, err := a.current.Value()
		if err != nil {
			return Message{}, true, err
		}
		return msg, true, nil
	}
}

func (a *pffArchive) Close() error {
	if a.pstFile != nil {
		a.pstFile.Cleanup()
		a.pstFile = nil
	}
	if a.f != nil {
		err := a.f.Close()
		a.f = nil
		return err
	}
	return nil
}

// pstCursor wraps the library's per-folder message iterator.
type pstCursor struct {
	iter pst.MessageIterator
}

func (c *pstCursor) Next() bool { return c.iter.Next() }
func (c *pstCursor) Err() error { return c.iter.Err() }

func (c *pstCursor) Value() (Message, error) {
	return convertPstMessage(c.iter.Value())
}

// convertPstMessage maps one pst message to the neutral Message shape.
// Message.Properties is declared as msgp.Decodable and carries the concrete
// property set for the item's class; anything that is not a mail message
// (calendar items, contacts) is surfaced as a skippable error.
func convertPstMessage(msg *pst.Message) (Message, error) {
	props, ok := msg.Properties.(*properties.Message)
	if !ok {
		return Message{}, fmt.Errorf("pst message %d: unexpected properties %T", msg.Identifier, msg.Properties)
	}

	id := int64(msg.Identifier)
	out := Message{
		Identifier: &id,
		Headers:    props.GetTransportMessageHeaders(),
		Body:       props.GetBody(),
	}

	attachIter, err := msg.GetAttachmentIterator()
	if errors.Is(err, pst.ErrAttachmentsNotFound) {
		return out, nil
	}
	if err != nil {
		// Attachment table is broken but the message itself parsed.
		return out, nil
	}
	for attachIter.Next() {
		att := attachIter.Value()
		name := att.GetAttachLongFilename()
		if name == "" {
			name = att.GetAttachFilename()
		}
		out.Attachments = append(out.Attachments, AttachmentMeta{
			Name:        name,
			Size:        int64(att.GetAttachSize()),
			ContentType: att.GetAttachMimeTag(),
		})
	}
	return out, nil
}
