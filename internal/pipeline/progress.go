package pipeline

import "sync/atomic"

// Tracker holds the run's aggregate progress counters. Files-total is set
// once by the controller; every other counter is bumped only from the
// writer as records are committed, so readers always observe durable
// totals. All access is atomic; snapshots are plain values safe to hand to
// any observer.
type Tracker struct {
	filesTotal     atomic.Int64
	filesCompleted atomic.Int64
	filesFailed    atomic.Int64
	filesCancelled atomic.Int64
	messages       atomic.Int64
	entities       atomic.Int64
	parseErrors    atomic.Int64
}

// Snapshot is a read-only view of a Tracker at one instant.
type Snapshot struct {
	FilesTotal     int64
	FilesCompleted int64
	FilesFailed    int64
	FilesCancelled int64
	Messages       int64
	Entities       int64
	ParseErrors    int64
}

// FilesDone is the number of jobs that reached a terminal state.
func (s Snapshot) FilesDone() int64 {
	return s.FilesCompleted + s.FilesFailed + s.FilesCancelled
}

// SetFilesTotal records the enumerated file count.
func (t *Tracker) SetFilesTotal(n int64) { t.filesTotal.Store(n) }

// Snapshot returns the current counter values.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		FilesTotal:     t.filesTotal.Load(),
		FilesCompleted: t.filesCompleted.Load(),
		FilesFailed:    t.filesFailed.Load(),
		FilesCancelled: t.filesCancelled.Load(),
		Messages:       t.messages.Load(),
		Entities:       t.entities.Load(),
		ParseErrors:    t.parseErrors.Load(),
	}
}

// MessageCommitted implements store.Observer.
func (t *Tracker) MessageCommitted(entityCount int) {
	t.messages.Add(1)
	t.entities.Add(int64(entityCount))
}

// FileFinished implements store.Observer.
func (t *Tracker) FileFinished(status string, parseErrors int64) {
	switch status {
	case JobFailed.String():
		t.filesFailed.Add(1)
	case JobCancelled.String():
		t.filesCancelled.Add(1)
	default:
		t.filesCompleted.Add(1)
	}
	t.parseErrors.Add(parseErrors)
}
