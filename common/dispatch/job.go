package dispatch

import (
	"github.com/google/uuid"
)

// Job is one (chunk, payload) execution unit. A Job exists for a single run:
// it is created when a worker pulls the next chunk from its assignment and
// discarded once staging, execution and cleanup complete.
type Job struct {
	TaskID       string
	ChunkLocator string
	ModelLocator string

	// ExecutionID namespaces the job's working area so that concurrently
	// running jobs never collide on staged file paths.
	ExecutionID string
}

// NewJob creates a job with a fresh execution identity.
func NewJob(taskID, chunkLocator, modelLocator string) (Job, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return Job{}, err
	}
	return Job{
		TaskID:       taskID,
		ChunkLocator: chunkLocator,
		ModelLocator: modelLocator,
		ExecutionID:  id.String(),
	}, nil
}
