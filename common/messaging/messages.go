package messaging

import (
	"fmt"
	"time"

	"github.com/p2pml/training-dispatcher/common/status"
)

// StatusMessage is the wire shape published for each status event.
type StatusMessage struct {
	TaskID    string          `json:"task_id"`
	JobID     string          `json:"job_id,omitempty"`
	Category  status.Category `json:"category"`
	Message   string          `json:"message"`
	Timestamp time.Time       `json:"timestamp"`
}

// Constants for NATS subjects
const (
	SubjectStatusPrefix = "training.status"
)

// StatusSubject returns the subject status events for a task are published on.
func StatusSubject(taskID string) string {
	return fmt.Sprintf("%s.%s", SubjectStatusPrefix, taskID)
}
