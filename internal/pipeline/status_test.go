package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestJobStateStrings(t *testing.T) {
	assert.Equal(t, "pending", JobPending.String())
	assert.Equal(t, "running", JobRunning.String())
	assert.Equal(t, "completed", JobCompleted.String())
	assert.Equal(t, "failed", JobFailed.String())
	assert.Equal(t, "cancelled", JobCancelled.String())

	assert.False(t, JobPending.Terminal())
	assert.False(t, JobRunning.Terminal())
	assert.True(t, JobCompleted.Terminal())
	assert.True(t, JobFailed.Terminal())
	assert.True(t, JobCancelled.Terminal())
}

func TestRunStateStrings(t *testing.T) {
	assert.Equal(t, "initializing", RunInitializing.String())
	assert.Equal(t, "running", RunRunning.String())
	assert.Equal(t, "completed", RunCompleted.String())
	assert.Equal(t, "cancelled", RunCancelled.String())
	assert.Equal(t, "aborted", RunAborted.String())
}
