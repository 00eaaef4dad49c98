package store

import (
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

// RecordKind discriminates the envelope records workers emit.
type RecordKind int

const (
	// KindFileStarted announces a file job has begun; the writer inserts its
	// FileReport row.
	KindFileStarted RecordKind = iota
	// KindMessage carries one message with its attachments and entities; the
	// writer commits it as a single transaction.
	KindMessage
	// KindFileFinished carries a job's terminal status; the writer backfills
	// the FileReport row.
	KindFileFinished
)

// AttachmentRecord is attachment metadata inside a message record.
type AttachmentRecord struct {
	Name        string
	Size        int64
	ContentType string
}

// EntityRecord is one recognised span inside a message record.
type EntityRecord struct {
	Text  string
	Label string
}

// MessageRecord is the per-message payload of a KindMessage record.
type MessageRecord struct {
	PffIdentifier       *int64
	ProcessingStartTime time.Time
	ProcessingEndTime   time.Time
	Body                *string
	Headers             *string
	Attachments         []AttachmentRecord
	Entities            []EntityRecord
}

// Record is the envelope streamed from workers to the single writer. Which
// fields are meaningful depends on Kind; Path is always set and is the key
// the writer uses to resolve foreign keys.
type Record struct {
	Kind RecordKind
	Path string

	// KindFileStarted
	Name   string
	Size   int64
	MD5    string
	SHA256 string

	// KindMessage
	Message *MessageRecord

	// KindFileFinished
	Status      string
	MsgCount    int64
	ParseErrors int64
	Error       string
}

// WriteError marks a fatal destination-store failure. The writer has no
// safe partial-continuation path, so the run aborts; rows committed before
// the failure remain valid.
type WriteError struct {
	Err error
}

func (e *WriteError) Error() string { return fmt.Sprintf("destination store write: %v", e.Err) }
func (e *WriteError) Unwrap() error { return e.Err }

// Observer receives committed-state notifications from the writer. Progress
// counters are updated only here, never by workers, so observers always see
// durable totals.
type Observer interface {
	MessageCommitted(entityCount int)
	FileFinished(status string, parseErrors int64)
}

// Writer owns the run's only write-capable database handle. It consumes
// records in arrival order until its intake channel closes. Context
// cancellation deliberately does not stop it: everything accepted from
// workers before shutdown is committed.
type Writer struct {
	db     *gorm.DB
	logger *slog.Logger
	obs    Observer

	runID   int64
	fileIDs map[string]int64
	fatal   error
	fatalCh chan struct{}

	messageCount int64
	entityCount  int64
}

// NewWriter wraps db in a single-writer funnel. obs may be nil.
func NewWriter(db *gorm.DB, logger *slog.Logger, obs Observer) *Writer {
	return &Writer{
		db:      db,
		logger:  logger,
		fileIDs: make(map[string]int64),
		obs:     obs,
		fatalCh: make(chan struct{}),
	}
}

// BeginRun inserts the run's (partial) RunReport row. It must be called
// before Run.
func (w *Writer) BeginRun(toolVersion, modelIdentity string, concurrency int, fileCount int) error {
	report := RunReport{
		StartTime:     time.Now().UTC(),
		ToolVersion:   toolVersion,
		ModelIdentity: modelIdentity,
		Concurrency:   concurrency,
		FileCount:     int64(fileCount),
		Status:        "running",
	}
	if err := w.db.Create(&report).Error; err != nil {
		return &WriteError{Err: err}
	}
	w.runID = report.ID
	return nil
}

// Run consumes records until the channel closes. After the first store
// failure it keeps draining without writing, so workers blocked on the
// bounded channel are always released; the failure is reported by Err and
// signalled through Fatal so the dispatcher stops handing out new jobs.
func (w *Writer) Run(records <-chan Record) {
	for rec := range records {
		if w.fatal != nil {
			continue
		}
		if err := w.handle(rec); err != nil {
			w.fatal = &WriteError{Err: err}
			close(w.fatalCh)
			w.logger.Error("store write failed, aborting run", "path", rec.Path, "error", err)
		}
	}
}

// Err reports the fatal write error, if any.
func (w *Writer) Err() error { return w.fatal }

// Fatal is closed when the first store failure occurs during Run.
func (w *Writer) Fatal() <-chan struct{} { return w.fatalCh }

func (w *Writer) handle(rec Record) error {
	switch rec.Kind {
	case KindFileStarted:
		return w.fileStarted(rec)
	case KindMessage:
		return w.message(rec)
	case KindFileFinished:
		return w.fileFinished(rec)
	}
	return fmt.Errorf("unknown record kind %d", rec.Kind)
}

func (w *Writer) fileStarted(rec Record) error {
	report := FileReport{
		Path:   rec.Path,
		Name:   rec.Name,
		Size:   rec.Size,
		MD5:    rec.MD5,
		SHA256: rec.SHA256,
		Status: "running",
	}
	if err := w.db.Create(&report).Error; err != nil {
		return err
	}
	w.fileIDs[rec.Path] = report.ID
	w.logger.Debug("file report created", "path", rec.Path, "file_report_id", report.ID)
	return nil
}

func (w *Writer) message(rec Record) error {
	fileID, ok := w.fileIDs[rec.Path]
	if !ok {
		// Writer ordering guarantees the FileStarted record arrived first on
		// the same channel; a miss means a worker broke protocol.
		return fmt.Errorf("message record for unknown file %s", rec.Path)
	}
	mr := rec.Message

	err := w.db.Transaction(func(tx *gorm.DB) error {
		msg := Message{
			PffIdentifier:       mr.PffIdentifier,
			ProcessingStartTime: mr.ProcessingStartTime,
			ProcessingEndTime:   mr.ProcessingEndTime,
			Body:                mr.Body,
			Headers:             mr.Headers,
			FileReportID:        fileID,
		}
		if err := tx.Create(&msg).Error; err != nil {
			return err
		}
		for _, a := range mr.Attachments {
			att := Attachment{
				Name:        a.Name,
				Size:        a.Size,
				ContentType: a.ContentType,
				MessageID:   msg.ID,
			}
			if err := tx.Create(&att).Error; err != nil {
				return err
			}
		}
		for _, e := range mr.Entities {
			ent := Entity{
				Text:         e.Text,
				Label:        e.Label,
				Filepath:     rec.Path,
				MessageID:    msg.ID,
				FileReportID: fileID,
			}
			if err := tx.Create(&ent).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	w.messageCount++
	w.entityCount += int64(len(mr.Entities))
	if w.obs != nil {
		w.obs.MessageCommitted(len(mr.Entities))
	}
	return nil
}

func (w *Writer) fileFinished(rec Record) error {
	updates := map[string]any{
		"status":    rec.Status,
		"msg_count": rec.MsgCount,
		"error":     rec.Error,
	}

	fileID, ok := w.fileIDs[rec.Path]
	if !ok {
		// A job can fail before its FileStarted record (e.g. the initial
		// scan of an unreadable file); record the failure anyway.
		report := FileReport{
			Path:     rec.Path,
			Name:     rec.Name,
			Status:   rec.Status,
			MsgCount: rec.MsgCount,
			Error:    rec.Error,
		}
		if err := w.db.Create(&report).Error; err != nil {
			return err
		}
		w.fileIDs[rec.Path] = report.ID
	} else if err := w.db.Model(&FileReport{}).Where("id = ?", fileID).Updates(updates).Error; err != nil {
		return err
	}

	if w.obs != nil {
		w.obs.FileFinished(rec.Status, rec.ParseErrors)
	}
	w.logger.Debug("file report finalized",
		"path", rec.Path,
		"status", rec.Status,
		slog.Int64("messages", rec.MsgCount),
	)
	return nil
}

// FinalizeRun writes the run report's end time, counts and terminal status.
// It must be called after Run returns. A fatal write error forces the
// aborted status regardless of the requested one.
func (w *Writer) FinalizeRun(status string) error {
	if w.fatal != nil {
		status = "aborted"
	}
	updates := map[string]any{
		"end_time":      time.Now().UTC(),
		"message_count": w.messageCount,
		"entity_count":  w.entityCount,
		"status":        status,
	}
	if err := w.db.Model(&RunReport{}).Where("id = ?", w.runID).Updates(updates).Error; err != nil {
		if w.fatal == nil {
			w.fatal = &WriteError{Err: err}
		}
		return w.fatal
	}
	return w.fatal
}
