package store

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testWriter(t *testing.T) *Writer {
	t.Helper()
	db, err := OpenDB(":memory:")
	require.NoError(t, err)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewWriter(db, logger, nil)
}

func feed(w *Writer, recs ...Record) {
	ch := make(chan Record, len(recs))
	for _, r := range recs {
		ch <- r
	}
	close(ch)
	w.Run(ch)
}

func fileStarted(path string) Record {
	return Record{
		Kind: KindFileStarted, Path: path,
		Name: "name", Size: 10, MD5: "md5", SHA256: "sha256",
	}
}

func messageRec(path string, entities int) Record {
	mr := MessageRecord{
		ProcessingStartTime: time.Now().UTC(),
		ProcessingEndTime:   time.Now().UTC(),
		Attachments: []AttachmentRecord{
			{Name: "a.pdf", Size: 42, ContentType: "application/pdf"},
		},
	}
	for i := 0; i < entities; i++ {
		mr.Entities = append(mr.Entities, EntityRecord{Text: "Acme", Label: "ORG"})
	}
	return Record{Kind: KindMessage, Path: path, Message: &mr}
}

func TestWriterCommitsMessageAsUnit(t *testing.T) {
	w := testWriter(t)
	require.NoError(t, w.BeginRun("test", "none", 2, 1))

	feed(w,
		fileStarted("/a.mbox"),
		messageRec("/a.mbox", 2),
		Record{Kind: KindFileFinished, Path: "/a.mbox", Status: "completed", MsgCount: 1},
	)
	require.NoError(t, w.Err())

	var messages []Message
	require.NoError(t, w.db.Find(&messages).Error)
	require.Len(t, messages, 1)

	var attachments []Attachment
	require.NoError(t, w.db.Find(&attachments).Error)
	require.Len(t, attachments, 1)
	assert.Equal(t, messages[0].ID, attachments[0].MessageID)

	var ents []Entity
	require.NoError(t, w.db.Find(&ents).Error)
	require.Len(t, ents, 2)
	for _, e := range ents {
		assert.Equal(t, messages[0].ID, e.MessageID)
		assert.Equal(t, "/a.mbox", e.Filepath)
	}

	var report FileReport
	require.NoError(t, w.db.First(&report, "path = ?", "/a.mbox").Error)
	assert.Equal(t, "completed", report.Status)
	assert.EqualValues(t, 1, report.MsgCount)
	for _, e := range ents {
		assert.Equal(t, report.ID, e.FileReportID)
	}
	assert.Equal(t, messages[0].FileReportID, report.ID)
}

func TestWriterInterleavedFiles(t *testing.T) {
	w := testWriter(t)
	require.NoError(t, w.BeginRun("test", "none", 2, 2))

	feed(w,
		fileStarted("/a.mbox"),
		fileStarted("/b.pst"),
		messageRec("/b.pst", 0),
		messageRec("/a.mbox", 1),
		messageRec("/b.pst", 0),
		Record{Kind: KindFileFinished, Path: "/a.mbox", Status: "completed", MsgCount: 1},
		Record{Kind: KindFileFinished, Path: "/b.pst", Status: "completed", MsgCount: 2},
	)
	require.NoError(t, w.Err())

	var a, b FileReport
	require.NoError(t, w.db.First(&a, "path = ?", "/a.mbox").Error)
	require.NoError(t, w.db.First(&b, "path = ?", "/b.pst").Error)

	var countA, countB int64
	require.NoError(t, w.db.Model(&Message{}).Where("file_report_id = ?", a.ID).Count(&countA).Error)
	require.NoError(t, w.db.Model(&Message{}).Where("file_report_id = ?", b.ID).Count(&countB).Error)
	assert.EqualValues(t, 1, countA)
	assert.EqualValues(t, 2, countB)

	// Identifiers are monotonically increasing in arrival order.
	var messages []Message
	require.NoError(t, w.db.Order("id").Find(&messages).Error)
	require.Len(t, messages, 3)
	for i := 1; i < len(messages); i++ {
		assert.Greater(t, messages[i].ID, messages[i-1].ID)
	}
}

func TestWriterFailureBeforeFileStarted(t *testing.T) {
	w := testWriter(t)
	require.NoError(t, w.BeginRun("test", "none", 1, 1))

	// A job that dies during its initial scan emits only a terminal record.
	feed(w, Record{
		Kind: KindFileFinished, Path: "/broken.pst",
		Status: "failed", Error: "scan /broken.pst: permission denied",
	})
	require.NoError(t, w.Err())

	var report FileReport
	require.NoError(t, w.db.First(&report, "path = ?", "/broken.pst").Error)
	assert.Equal(t, "failed", report.Status)
	assert.Contains(t, report.Error, "permission denied")
	assert.EqualValues(t, 0, report.MsgCount)
}

func TestWriterRunReportLifecycle(t *testing.T) {
	w := testWriter(t)
	require.NoError(t, w.BeginRun("1.2.3", "prose/v2 en", 4, 7))

	var partial RunReport
	require.NoError(t, w.db.First(&partial).Error)
	assert.Equal(t, "running", partial.Status)
	assert.Equal(t, "1.2.3", partial.ToolVersion)
	assert.Equal(t, "prose/v2 en", partial.ModelIdentity)
	assert.Equal(t, 4, partial.Concurrency)
	assert.EqualValues(t, 7, partial.FileCount)
	assert.True(t, partial.EndTime.IsZero())

	feed(w,
		fileStarted("/a.mbox"),
		messageRec("/a.mbox", 3),
		Record{Kind: KindFileFinished, Path: "/a.mbox", Status: "completed", MsgCount: 1},
	)
	require.NoError(t, w.FinalizeRun("completed"))

	var final RunReport
	require.NoError(t, w.db.First(&final).Error)
	assert.Equal(t, "completed", final.Status)
	assert.EqualValues(t, 1, final.MessageCount)
	assert.EqualValues(t, 3, final.EntityCount)
	assert.False(t, final.EndTime.IsZero())
}

func TestWriterMessageForUnknownFileIsFatal(t *testing.T) {
	w := testWriter(t)
	require.NoError(t, w.BeginRun("test", "none", 1, 1))

	feed(w, messageRec("/never-started.mbox", 0))

	err := w.Err()
	require.Error(t, err)
	var we *WriteError
	require.ErrorAs(t, err, &we)

	// The failure forces the aborted terminal status.
	require.Error(t, w.FinalizeRun("completed"))
	var final RunReport
	require.NoError(t, w.db.First(&final).Error)
	assert.Equal(t, "aborted", final.Status)
}

func TestWriterDrainsAfterFatal(t *testing.T) {
	w := testWriter(t)
	require.NoError(t, w.BeginRun("test", "none", 1, 1))

	select {
	case <-w.Fatal():
		t.Fatal("fatal signal fired before any failure")
	default:
	}

	// The first record is fatal; the rest must still be consumed so workers
	// blocked on the channel are released, but nothing more is written.
	feed(w,
		messageRec("/unknown.mbox", 0),
		fileStarted("/a.mbox"),
		messageRec("/a.mbox", 0),
	)
	require.Error(t, w.Err())

	select {
	case <-w.Fatal():
	default:
		t.Fatal("fatal signal not fired after store failure")
	}

	var count int64
	require.NoError(t, w.db.Model(&Message{}).Count(&count).Error)
	assert.EqualValues(t, 0, count)
}
