package messaging

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/p2pml/training-dispatcher/common/status"
)

type fakeBroker struct {
	mu       sync.Mutex
	messages []StatusMessage
	subjects []string
	err      error
}

func (b *fakeBroker) Publish(subject string, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.err != nil {
		return b.err
	}

	var msg StatusMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return err
	}
	b.messages = append(b.messages, msg)
	b.subjects = append(b.subjects, subject)
	return nil
}

func TestPublishStatusesDrainsChannel(t *testing.T) {
	broker := &fakeBroker{}
	ch := status.NewChannel(8)

	ch.Send(status.Event{TaskID: "task-1", JobID: "job-1", Category: status.CategoryInfo, Message: "first"})
	ch.Send(status.Event{TaskID: "task-1", JobID: "job-1", Category: status.CategoryError, Message: "second"})
	ch.Close()

	PublishStatuses(broker, ch.Events())

	if len(broker.messages) != 2 {
		t.Fatalf("Expected 2 published messages, got %d", len(broker.messages))
	}
	if broker.messages[0].Message != "first" || broker.messages[1].Message != "second" {
		t.Errorf("Messages published out of order: %v", broker.messages)
	}
	for _, subject := range broker.subjects {
		if subject != StatusSubject("task-1") {
			t.Errorf("Expected subject %s, got %s", StatusSubject("task-1"), subject)
		}
	}
	if broker.messages[1].Category != status.CategoryError {
		t.Errorf("Expected error category, got %s", broker.messages[1].Category)
	}
}

func TestPublishStatusesDropsOnFailure(t *testing.T) {
	// Publish failures are logged and dropped, never retried; the drain
	// loop must still run to completion.
	broker := &fakeBroker{err: errors.New("broker down")}
	ch := status.NewChannel(4)

	ch.Send(status.Event{TaskID: "task-1", Message: "lost"})
	ch.Close()

	PublishStatuses(broker, ch.Events())

	if len(broker.messages) != 0 {
		t.Errorf("Expected no recorded messages, got %d", len(broker.messages))
	}
}

func TestStatusSubject(t *testing.T) {
	if got := StatusSubject("task-42"); got != "training.status.task-42" {
		t.Errorf("Unexpected subject: %s", got)
	}
}
