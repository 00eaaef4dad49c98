package mailbag

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCursor replays a canned message sequence and optionally ends with an
// iteration error.
type fakeCursor struct {
	msgs []Message
	i    int
	err  error
}

func (c *fakeCursor) Next() bool {
	if c.i >= len(c.msgs) {
		return false
	}
	c.i++
	return true
}

func (c *fakeCursor) Err() error              { return c.err }
func (c *fakeCursor) Value() (Message, error) { return c.msgs[c.i-1], nil }

func folderOf(msgs ...Message) func() (messageCursor, error) {
	return func() (messageCursor, error) { return &fakeCursor{msgs: msgs}, nil }
}

func drainArchive(t *testing.T, a Archive) (msgs []Message, errs []error) {
	t.Helper()
	for {
		msg, ok, err := a.Next()
		if !ok {
			return msgs, errs
		}
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msgs = append(msgs, msg)
	}
}

func TestPffArchiveStreamsFoldersInOrder(t *testing.T) {
	a := &pffArchive{queue: []func() (messageCursor, error){
		folderOf(Message{Body: "inbox 1"}, Message{Body: "inbox 2"}),
		folderOf(Message{Body: "sent 1"}),
	}}

	msgs, errs := drainArchive(t, a)
	require.Empty(t, errs)
	require.Len(t, msgs, 3)
	assert.Equal(t, "inbox 1", msgs[0].Body)
	assert.Equal(t, "inbox 2", msgs[1].Body)
	assert.Equal(t, "sent 1", msgs[2].Body)
	require.NoError(t, a.Close())
}

func TestPffArchiveSkipsEmptyFolders(t *testing.T) {
	a := &pffArchive{queue: []func() (messageCursor, error){
		func() (messageCursor, error) { return nil, errFolderEmpty },
		folderOf(Message{Body: "only one"}),
		func() (messageCursor, error) { return nil, errFolderEmpty },
	}}

	msgs, errs := drainArchive(t, a)
	assert.Empty(t, errs)
	require.Len(t, msgs, 1)
	assert.Equal(t, "only one", msgs[0].Body)
}

func TestPffArchiveSurvivesUnreadableFolder(t *testing.T) {
	// One skippable error per broken folder; the remaining folders still
	// stream.
	a := &pffArchive{queue: []func() (messageCursor, error){
		folderOf(Message{Body: "before"}),
		func() (messageCursor, error) { return nil, fmt.Errorf("corrupt message table") },
		folderOf(Message{Body: "after"}),
	}}

	msgs, errs := drainArchive(t, a)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "corrupt message table")
	require.Len(t, msgs, 2)
	assert.Equal(t, "before", msgs[0].Body)
	assert.Equal(t, "after", msgs[1].Body)
}

func TestPffArchiveSurfacesIterationError(t *testing.T) {
	a := &pffArchive{queue: []func() (messageCursor, error){
		func() (messageCursor, error) {
			return &fakeCursor{msgs: []Message{{Body: "readable"}}, err: fmt.Errorf("truncated block")}, nil
		},
		folderOf(Message{Body: "next folder"}),
	}}

	msgs, errs := drainArchive(t, a)
	require.Len(t, errs, 1)
	assert.ErrorContains(t, errs[0], "truncated block")
	require.Len(t, msgs, 2)
	assert.Equal(t, "readable", msgs[0].Body)
	assert.Equal(t, "next folder", msgs[1].Body)
}

func TestOpenPffRejectsNonPstFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "not-a.pst")
	require.NoError(t, os.WriteFile(path, []byte("this is not a pst file"), 0o644))

	_, err := OpenPff(path)
	require.Error(t, err)
}
