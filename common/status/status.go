package status

import (
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog/log"
)

// Category classifies a status event.
type Category string

const (
	CategoryInfo  Category = "info"
	CategoryError Category = "error"
)

// Event is a single progress or failure notification emitted during a job's
// lifecycle. Events from the same job arrive in the order they were sent;
// ordering across jobs is unspecified.
type Event struct {
	TaskID   string   `json:"task_id"`
	JobID    string   `json:"job_id"`
	Category Category `json:"category"`
	Message  string   `json:"message"`
}

// Sink receives status events. Send must never block the caller; delivery is
// best-effort and an undeliverable event is dropped, not retried.
type Sink interface {
	Send(event Event)
}

// Channel is a buffered, non-blocking Sink. A send on a full or closed
// channel drops the event silently; message loss under pressure is the
// accepted trade-off so that emitting status can never stall a running job.
type Channel struct {
	mu      sync.RWMutex
	closed  bool
	events  chan Event
	dropped atomic.Int64
}

// NewChannel creates a status channel with the given buffer capacity.
// A capacity below 1 is raised to 1.
func NewChannel(capacity int) *Channel {
	if capacity < 1 {
		capacity = 1
	}
	return &Channel{
		events: make(chan Event, capacity),
	}
}

// Send delivers the event if there is room, and drops it otherwise.
func (c *Channel) Send(event Event) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if c.closed {
		c.dropped.Add(1)
		return
	}

	select {
	case c.events <- event:
	default:
		c.dropped.Add(1)
		log.Debug().
			Str("taskID", event.TaskID).
			Str("jobID", event.JobID).
			Msg("Status channel full, dropping event")
	}
}

// Events returns the receive side of the channel. It is closed by Close once
// no more events will be produced; consumers drain whatever was accepted
// before closure.
func (c *Channel) Events() <-chan Event {
	return c.events
}

// Close marks the channel closed and closes the event stream. Safe to call
// more than once.
func (c *Channel) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return
	}
	c.closed = true
	close(c.events)
}

// Dropped reports how many events were discarded.
func (c *Channel) Dropped() int64 {
	return c.dropped.Load()
}

// NopSink discards every event.
type NopSink struct{}

func (NopSink) Send(Event) {}
