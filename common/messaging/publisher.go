package messaging

import (
	"encoding/json"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/p2pml/training-dispatcher/common/status"
)

// Publisher forwards status events to a NATS subject.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// PublishStatuses drains the status stream and publishes every event
// fire-and-forget until the stream is closed. Publish failures are logged
// and the event is dropped; a job's outcome never depends on delivery.
func PublishStatuses(broker Publisher, events <-chan status.Event) {
	for event := range events {
		msg := StatusMessage{
			TaskID:    event.TaskID,
			JobID:     event.JobID,
			Category:  event.Category,
			Message:   event.Message,
			Timestamp: time.Now().UTC(),
		}

		data, err := json.Marshal(msg)
		if err != nil {
			log.Error().Err(err).Str("taskID", event.TaskID).Msg("Failed to marshal status message")
			continue
		}

		if err := broker.Publish(StatusSubject(event.TaskID), data); err != nil {
			log.Warn().Err(err).
				Str("taskID", event.TaskID).
				Str("jobID", event.JobID).
				Msg("Failed to publish status event, dropping")
		}
	}
}
