package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/llmify/llmstxt-service/common/messaging"

	"github.com/rs/zerolog/log"
)

// EventType classifies job lifecycle events
type EventType string

const (
	EventWaiting   EventType = "waiting"
	EventActive    EventType = "active"
	EventProgress  EventType = "progress"
	EventCompleted EventType = "completed"
	EventFailed    EventType = "failed"
	EventCancelled EventType = "cancelled"
)

// Progress is the processed/total counter pair attached to progress events
type Progress struct {
	Processed int `json:"processed"`
	Total     int `json:"total"`
}

// Event is one job lifecycle or progress notification
type Event struct {
	Queue    string    `json:"queue"`
	JobID    string    `json:"job_id"`
	Type     EventType `json:"type"`
	Progress *Progress `json:"progress,omitempty"`
	Error    string    `json:"error,omitempty"`
	At       time.Time `json:"at"`
}

// Events is a buffered fan-in for job events. Emission never blocks the
// pipeline; when the buffer is full the event is dropped and counted.
type Events struct {
	ch chan Event
}

// NewEvents creates an event sink with the given buffer size
func NewEvents(buffer int) *Events {
	if buffer <= 0 {
		buffer = 256
	}
	return &Events{ch: make(chan Event, buffer)}
}

// Channel returns the receive side of the sink
func (e *Events) Channel() <-chan Event {
	return e.ch
}

// EmitProgress publishes a progress event for a job
func (e *Events) EmitProgress(queueName, jobID string, processed, total int) {
	e.emit(Event{
		Queue:    queueName,
		JobID:    jobID,
		Type:     EventProgress,
		Progress: &Progress{Processed: processed, Total: total},
	})
}

func (e *Events) emit(event Event) {
	if event.At.IsZero() {
		event.At = time.Now()
	}
	select {
	case e.ch <- event:
	default:
		log.Warn().Str("jobID", event.JobID).Str("type", string(event.Type)).Msg("Event buffer full, dropping event")
	}
}

// NotifyBridge forwards job events to core NATS notify subjects, where a
// push layer (out of scope here) can subscribe.
type NotifyBridge struct {
	broker *messaging.NatsBroker
	events *Events
}

// NewNotifyBridge creates a bridge from the event sink to NATS
func NewNotifyBridge(broker *messaging.NatsBroker, events *Events) *NotifyBridge {
	return &NotifyBridge{broker: broker, events: events}
}

// Run consumes events until ctx is done. Meant to run in its own goroutine.
func (b *NotifyBridge) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-b.events.Channel():
			if !ok {
				return
			}
			b.forward(event)
		}
	}
}

func (b *NotifyBridge) forward(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Str("jobID", event.JobID).Msg("Failed to encode event")
		return
	}

	subject := fmt.Sprintf("notify.%s.%s", event.Queue, event.Type)
	if err := b.broker.Notify(subject, data); err != nil {
		log.Warn().Err(err).Str("subject", subject).Msg("Failed to forward event")
	}
}
