package pipeline

// JobState is the per-file job state machine:
// pending -> running -> completed | failed | cancelled.
type JobState int

const (
	JobPending JobState = iota
	JobRunning
	JobCompleted
	JobFailed
	JobCancelled
)

func (s JobState) String() string {
	switch s {
	case JobPending:
		return "pending"
	case JobRunning:
		return "running"
	case JobCompleted:
		return "completed"
	case JobFailed:
		return "failed"
	case JobCancelled:
		return "cancelled"
	}
	return "unknown"
}

// Terminal reports whether the state ends a job.
func (s JobState) Terminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// RunState is the pipeline-level state machine:
// initializing -> running -> completed | cancelled | aborted.
type RunState int

const (
	RunInitializing RunState = iota
	RunRunning
	RunCompleted
	RunCancelled
	RunAborted
)

func (s RunState) String() string {
	switch s {
	case RunInitializing:
		return "initializing"
	case RunRunning:
		return "running"
	case RunCompleted:
		return "completed"
	case RunCancelled:
		return "cancelled"
	case RunAborted:
		return "aborted"
	}
	return "unknown"
}
