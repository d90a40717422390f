package status

import (
	"fmt"
	"testing"
	"time"
)

func TestChannelPreservesOrder(t *testing.T) {
	ch := NewChannel(16)

	for i := 0; i < 10; i++ {
		ch.Send(Event{JobID: "job-1", Category: CategoryInfo, Message: fmt.Sprintf("event-%d", i)})
	}
	ch.Close()

	i := 0
	for event := range ch.Events() {
		expected := fmt.Sprintf("event-%d", i)
		if event.Message != expected {
			t.Errorf("Expected %s at position %d, got %s", expected, i, event.Message)
		}
		i++
	}
	if i != 10 {
		t.Errorf("Expected 10 events, got %d", i)
	}
}

func TestChannelDropsWhenFull(t *testing.T) {
	// Message loss on a full channel is the designed behavior: a send must
	// never block the producing job.
	ch := NewChannel(2)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 5; i++ {
			ch.Send(Event{Message: fmt.Sprintf("event-%d", i)})
		}
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Send blocked on a full channel")
	}

	if dropped := ch.Dropped(); dropped != 3 {
		t.Errorf("Expected 3 dropped events, got %d", dropped)
	}

	ch.Close()
	received := 0
	for event := range ch.Events() {
		expected := fmt.Sprintf("event-%d", received)
		if event.Message != expected {
			t.Errorf("Expected %s, got %s", expected, event.Message)
		}
		received++
	}
	if received != 2 {
		t.Errorf("Expected 2 delivered events, got %d", received)
	}
}

func TestChannelSendAfterClose(t *testing.T) {
	ch := NewChannel(4)
	ch.Close()

	// Must not panic or block.
	ch.Send(Event{Message: "late"})

	if dropped := ch.Dropped(); dropped != 1 {
		t.Errorf("Expected 1 dropped event, got %d", dropped)
	}
}

func TestChannelCloseIdempotent(t *testing.T) {
	ch := NewChannel(4)
	ch.Close()
	ch.Close()
}

func TestNopSink(t *testing.T) {
	var sink Sink = NopSink{}
	sink.Send(Event{Message: "ignored"})
}
