package pipeline

import "github.com/99souls/sensorwatch/internal/domain"

// EventBus fans out AlarmEvents from the AlarmWorker to whoever assembles
// notification payloads. Publish never blocks: if the bounded channel is
// full, the event is silently dropped, matching the drop-newest
// backpressure policy used throughout the pipeline.
type EventBus struct {
	ch chan domain.AlarmEvent
}

// NewEventBus creates a bus with the given bounded capacity.
func NewEventBus(capacity int) *EventBus {
	return &EventBus{ch: make(chan domain.AlarmEvent, capacity)}
}

// PublishAlarm attempts to enqueue e, dropping it if the bus is full.
func (b *EventBus) PublishAlarm(e domain.AlarmEvent) {
	select {
	case b.ch <- e:
	default:
	}
}

// Events exposes the receive side for the NotifyAdapter stage.
func (b *EventBus) Events() <-chan domain.AlarmEvent { return b.ch }
