package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/libratom/libratom/internal/config"
	"github.com/libratom/libratom/internal/entities"
	"github.com/libratom/libratom/internal/store"
)

// FileFailure is a per-file failure surfaced in the end-of-run summary.
type FileFailure struct {
	Path   string
	Reason string
}

// processFile runs one file's job end to end: scan, open, iterate, emit.
// It has no side effects beyond sending records; all persistence belongs to
// the writer. Sends never race the writer's lifetime: the writer drains the
// channel until it is closed, which happens only after all workers return.
//
// A panic anywhere in the job (e.g. a corrupt container crashing the
// parsing library) is recovered and converted into a failed job, so one bad
// file never takes down its siblings.
func processFile(
	ctx context.Context,
	cfg config.Config,
	deps Deps,
	recognizer entities.Recognizer,
	job SourceFile,
	records chan<- store.Record,
	logger *slog.Logger,
) (failure *FileFailure) {
	defer func() {
		if r := recover(); r != nil {
			reason := fmt.Sprintf("worker crash: %v", r)
			logger.Error("file job crashed", "path", job.Path, "panic", r)
			records <- store.Record{
				Kind:   store.KindFileFinished,
				Path:   job.Path,
				Status: JobFailed.String(),
				Error:  reason,
			}
			failure = &FileFailure{Path: job.Path, Reason: reason}
		}
	}()

	fail := func(err error) *FileFailure {
		logger.Warn("file job failed", "path", job.Path, "error", err)
		records <- store.Record{
			Kind:   store.KindFileFinished,
			Path:   job.Path,
			Status: JobFailed.String(),
			Error:  err.Error(),
		}
		return &FileFailure{Path: job.Path, Reason: err.Error()}
	}

	info, err := ScanFile(job.Path)
	if err != nil {
		return fail(err)
	}

	records <- store.Record{
		Kind:   store.KindFileStarted,
		Path:   job.Path,
		Name:   info.Name,
		Size:   info.Size,
		MD5:    info.MD5,
		SHA256: info.SHA256,
	}

	archive, err := deps.OpenArchive(job.Path, job.Format)
	if err != nil {
		return fail(fmt.Errorf("open container: %w", err))
	}
	defer archive.Close()

	state := JobCompleted
	var msgCount, parseErrors int64

	for {
		// Cancellation is cooperative and checked at message boundaries
		// only; an in-flight parse or recognition call runs to completion.
		select {
		case <-ctx.Done():
			state = JobCancelled
		default:
		}
		if state == JobCancelled {
			break
		}

		msg, ok, err := archive.Next()
		if !ok {
			break
		}
		if err != nil {
			parseErrors++
			logger.Debug("skipping malformed message", "path", job.Path, "error", err)
			continue
		}

		startTime := time.Now().UTC()

		var spans []entities.Span
		if recognizer != nil {
			body := entities.Truncate(msg.Body, cfg.BodyMaxLength)
			spans, err = recognizer.Recognize(body)
			if err != nil {
				parseErrors++
				logger.Debug("skipping message, recognition failed", "path", job.Path, "error", err)
				continue
			}
		}

		rec := store.MessageRecord{
			PffIdentifier:       msg.Identifier,
			ProcessingStartTime: startTime,
			ProcessingEndTime:   time.Now().UTC(),
		}
		if cfg.IncludeMessageContents {
			body, headers := msg.Body, msg.Headers
			rec.Body = &body
			rec.Headers = &headers
		}
		for _, a := range msg.Attachments {
			rec.Attachments = append(rec.Attachments, store.AttachmentRecord{
				Name:        a.Name,
				Size:        a.Size,
				ContentType: a.ContentType,
			})
		}
		for _, s := range spans {
			rec.Entities = append(rec.Entities, store.EntityRecord{Text: s.Text, Label: s.Label})
		}

		// This send is the pipeline's backpressure point: when the writer
		// falls behind, the bounded channel blocks the worker here.
		records <- store.Record{Kind: store.KindMessage, Path: job.Path, Message: &rec}
		msgCount++
	}

	var reason string
	if parseErrors > 0 {
		reason = fmt.Sprintf("skipped %d malformed message(s)", parseErrors)
	}
	records <- store.Record{
		Kind:        store.KindFileFinished,
		Path:        job.Path,
		Status:      state.String(),
		MsgCount:    msgCount,
		ParseErrors: parseErrors,
		Error:       reason,
	}

	logger.Info("file job finished",
		"path", job.Path,
		"status", state.String(),
		slog.Int64("messages", msgCount),
		slog.Int64("parse_errors", parseErrors),
	)
	return nil
}
