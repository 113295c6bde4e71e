package queue

import (
	"testing"
)

func TestEventsEmitAndReceive(t *testing.T) {
	events := NewEvents(4)

	events.EmitProgress("generation-anthropic", "gen-1", 5, 12)

	select {
	case event := <-events.Channel():
		if event.Type != EventProgress {
			t.Errorf("expected progress event, got %s", event.Type)
		}
		if event.Progress == nil || event.Progress.Processed != 5 || event.Progress.Total != 12 {
			t.Errorf("unexpected progress payload: %+v", event.Progress)
		}
		if event.At.IsZero() {
			t.Error("expected timestamp to be set")
		}
	default:
		t.Fatal("expected a buffered event")
	}
}

func TestEventsFullBufferDoesNotBlock(t *testing.T) {
	events := NewEvents(1)

	// Second emit must not block even though nobody is receiving.
	events.emit(Event{Queue: "q", JobID: "gen-1", Type: EventWaiting})
	events.emit(Event{Queue: "q", JobID: "gen-2", Type: EventWaiting})

	event := <-events.Channel()
	if event.JobID != "gen-1" {
		t.Errorf("expected first event kept, got %s", event.JobID)
	}
	select {
	case extra := <-events.Channel():
		t.Errorf("expected overflow event dropped, got %+v", extra)
	default:
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()

	if _, ok := r.Queue("generation-anthropic"); ok {
		t.Error("empty registry must not resolve queues")
	}

	q := &Queue{config: QueueConfig{Name: "generation-anthropic"}}
	if err := r.Register(q, nil); err != nil {
		t.Fatal(err)
	}
	if err := r.Register(q, nil); err == nil {
		t.Error("expected duplicate registration to fail")
	}

	got, ok := r.QueueForProvider("anthropic")
	if !ok || got != q {
		t.Error("QueueForProvider failed to resolve registered queue")
	}
	if names := r.Names(); len(names) != 1 || names[0] != "generation-anthropic" {
		t.Errorf("unexpected names: %v", names)
	}
}
