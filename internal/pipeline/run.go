// Package pipeline is the concurrent extraction core: it enumerates
// container files, schedules them across a bounded worker pool, streams
// structured records to the single store writer and tracks progress and
// cancellation.
package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/libratom/libratom/internal/config"
	"github.com/libratom/libratom/internal/entities"
	"github.com/libratom/libratom/internal/mailbag"
	"github.com/libratom/libratom/internal/store"
	"github.com/libratom/libratom/internal/version"
)

// Deps are the pipeline's external collaborators. Tests swap in fakes;
// production code uses DefaultDeps.
type Deps struct {
	OpenArchive    func(path string, format mailbag.Format) (mailbag.Archive, error)
	LoadRecognizer func(name string) (entities.Recognizer, string, error)
	OpenStore      func(path string) (*gorm.DB, error)
}

// DefaultDeps wires the real container readers, recognizer backend and
// destination store.
func DefaultDeps() Deps {
	return Deps{
		OpenArchive:    mailbag.Open,
		LoadRecognizer: entities.Load,
		OpenStore:      store.OpenDB,
	}
}

// Result summarises a finished (or aborted) run.
type Result struct {
	State    RunState
	Failed   []FileFailure
	Counters Snapshot
}

// Run executes the whole pipeline against cfg. It returns a UsageError
// before any job is dispatched for invalid configuration or an unusable
// source, a WriteError if the destination store fails mid-run, and nil
// otherwise. Cancelled runs return nil: their partial results are fully
// committed and reflected in the Result.
func Run(ctx context.Context, cfg config.Config, deps Deps, logger *slog.Logger, tracker *Tracker) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, &UsageError{Err: err}
	}

	files, err := Enumerate(cfg.Source)
	if err != nil {
		return nil, err
	}
	tracker.SetFilesTotal(int64(len(files)))
	logger.Info("enumeration finished", slog.Int("files", len(files)), "source", cfg.Source)

	var recognizer entities.Recognizer
	modelIdentity := "none"
	if cfg.ExtractEntities {
		var err error
		recognizer, modelIdentity, err = deps.LoadRecognizer(cfg.Model)
		if err != nil {
			return nil, &UsageError{Err: err}
		}
		logger.Info("recognizer loaded", "model", modelIdentity)
	}

	db, err := deps.OpenStore(cfg.OutputPath)
	if err != nil {
		return nil, &store.WriteError{Err: err}
	}

	writer := store.NewWriter(db, logger.With(slog.String("component", "writer")), tracker)
	if err := writer.BeginRun(version.Version, modelIdentity, cfg.Jobs, len(files)); err != nil {
		return nil, err
	}

	// runCtx folds the writer's fatal condition into cancellation: on the
	// first store failure no new jobs start and in-flight jobs stop at their
	// next message boundary, while the writer keeps draining.
	runCtx, cancelRun := context.WithCancel(ctx)
	defer cancelRun()

	// The bounded intake channel is the system's only backpressure
	// mechanism; workers block on emission when the writer lags.
	records := make(chan store.Record, cfg.IntakeDepth())
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		writer.Run(records)
	}()
	go func() {
		select {
		case <-writer.Fatal():
			cancelRun()
		case <-writerDone:
		}
	}()

	var failuresMu sync.Mutex
	var failures []FileFailure

	jobs := make(chan SourceFile)
	var workerWg sync.WaitGroup
	for i := 0; i < cfg.Jobs; i++ {
		workerWg.Add(1)
		go func(workerID int) {
			defer workerWg.Done()
			wlog := logger.With(slog.Int("worker_id", workerID), slog.String("component", "worker"))
			for job := range jobs {
				// Jobs claimed before cancellation still run so they can
				// record their own cancelled terminal state; the dispatch
				// loop below stops handing out new files.
				if failure := processFile(runCtx, cfg, deps, recognizer, job, records, wlog); failure != nil {
					failuresMu.Lock()
					failures = append(failures, *failure)
					failuresMu.Unlock()
				}
			}
		}(i)
	}

	// Dispatch in enumeration order; completion order is up to the workers
	// and the writer makes persisted state deterministic regardless.
dispatch:
	for _, f := range files {
		select {
		case <-runCtx.Done():
			logger.Warn("dispatch stopped, no new file jobs will start", "error", runCtx.Err())
			break dispatch
		default:
		}
		select {
		case jobs <- f:
		case <-runCtx.Done():
			logger.Warn("dispatch stopped, no new file jobs will start", "error", runCtx.Err())
			break dispatch
		}
	}
	close(jobs)

	workerWg.Wait()
	close(records)
	<-writerDone

	state := RunCompleted
	switch {
	case writer.Err() != nil:
		state = RunAborted
	case ctx.Err() != nil:
		state = RunCancelled
	}

	finalErr := writer.FinalizeRun(state.String())

	snap := tracker.Snapshot()
	logger.Info("run finished",
		"status", state.String(),
		slog.Int64("files", snap.FilesDone()),
		slog.Int64("messages", snap.Messages),
		slog.Int64("entities", snap.Entities),
		slog.Int("failed_files", len(failures)),
	)

	result := &Result{State: state, Failed: failures, Counters: snap}
	if finalErr != nil {
		return result, finalErr
	}
	return result, nil
}
