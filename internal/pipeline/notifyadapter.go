package pipeline

import (
	"context"
	"time"

	"github.com/99souls/sensorwatch/internal/notify"
	"github.com/99souls/sensorwatch/internal/state"
	"github.com/99souls/sensorwatch/internal/telemetry/logging"
)

// NotifyAdapter drains the EventBus (Q2), assembles a webhook payload from
// each AlarmEvent plus a StateStore snapshot, and emits the resulting
// NotificationRequest onto the Notifier (Q3).
type NotifyAdapter struct {
	bus      *EventBus
	store    *state.Store
	notifier *Notifier
	logger   logging.Logger

	stop chan struct{}
	done chan struct{}
}

// NewNotifyAdapter builds a NotifyAdapter reading from bus and forwarding
// to notifier.
func NewNotifyAdapter(bus *EventBus, store *state.Store, notifier *Notifier, logger logging.Logger) *NotifyAdapter {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &NotifyAdapter{bus: bus, store: store, notifier: notifier, logger: logger, stop: make(chan struct{}), done: make(chan struct{})}
}

// Start launches the adapter loop.
func (a *NotifyAdapter) Start(ctx context.Context) { go a.run(ctx) }

// Stop signals the adapter to terminate.
func (a *NotifyAdapter) Stop() {
	select {
	case <-a.stop:
	default:
		close(a.stop)
	}
}

// Join blocks until the adapter loop has exited.
func (a *NotifyAdapter) Join() { <-a.done }

func (a *NotifyAdapter) run(ctx context.Context) {
	defer close(a.done)
	for {
		select {
		case <-a.stop:
			return
		case ev := <-a.bus.Events():
			req := notify.BuildNotificationRequest(a.store, ev)
			a.notifier.Emit(req)
		case <-time.After(pollTimeout):
		}
		select {
		case <-a.stop:
			return
		default:
		}
	}
}
