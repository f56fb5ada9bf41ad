package pipeline

import (
	"context"
	"time"

	"github.com/99souls/sensorwatch/internal/alarm"
	"github.com/99souls/sensorwatch/internal/state"
	"github.com/99souls/sensorwatch/internal/telemetry/logging"
	"github.com/99souls/sensorwatch/internal/telemetry/tracing"
	"github.com/99souls/sensorwatch/internal/transport"
)

// pollTimeout bounds how long AlarmWorker waits on an empty input queue
// before re-checking the stop signal, keeping shutdown responsive.
const pollTimeout = 500 * time.Millisecond

// AlarmWorker consumes decoded readings from Q1, applies each to the
// StateStore, runs one AlarmEngine evaluation cycle, and publishes the
// resulting events onto the EventBus (Q2). A single worker goroutine
// processes readings strictly in arrival order, preserving the
// per-reading causality guarantee: the store is updated before any event
// it causes is published.
type AlarmWorker struct {
	in     <-chan transport.Message
	store  *state.Store
	engine *alarm.Engine
	bus    *EventBus
	logger logging.Logger
	tracer tracing.Tracer

	stop chan struct{}
	done chan struct{}
}

// NewAlarmWorker builds an AlarmWorker reading from in and writing events to
// bus.
func NewAlarmWorker(in <-chan transport.Message, store *state.Store, engine *alarm.Engine, bus *EventBus, logger logging.Logger, tracer tracing.Tracer) *AlarmWorker {
	if logger == nil {
		logger = logging.NewNop()
	}
	if tracer == nil {
		tracer = tracing.NewNop()
	}
	return &AlarmWorker{
		in: in, store: store, engine: engine, bus: bus,
		logger: logger, tracer: tracer,
		stop: make(chan struct{}), done: make(chan struct{}),
	}
}

// Start launches the worker loop.
func (w *AlarmWorker) Start(ctx context.Context) { go w.run(ctx) }

// Stop signals the worker to terminate after its current iteration.
func (w *AlarmWorker) Stop() {
	select {
	case <-w.stop:
	default:
		close(w.stop)
	}
}

// Join blocks until the worker has exited.
func (w *AlarmWorker) Join() { <-w.done }

func (w *AlarmWorker) run(ctx context.Context) {
	defer close(w.done)
	for {
		select {
		case <-w.stop:
			return
		case msg := <-w.in:
			w.handle(ctx, msg)
		case <-time.After(pollTimeout):
		}
		select {
		case <-w.stop:
			return
		default:
		}
	}
}

// handle performs the atomic update-then-evaluate-then-publish sequence.
// Any failure is logged and swallowed; it never terminates the worker.
func (w *AlarmWorker) handle(ctx context.Context, msg transport.Message) {
	ctx, span := w.tracer.Start(ctx, "alarm_worker.handle")
	defer span.End()

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.logger.ErrorCtx(ctx, "alarm worker: panic recovered", "panic", r)
			}
		}()

		if msg.Scalar != nil {
			w.store.UpdateScalar(*msg.Scalar)
		}
		if msg.Spectral != nil {
			w.store.UpdateSpectrum(*msg.Spectral)
		}

		events := w.engine.RunOnce(ctx, w.store, time.Now())
		span.AddEvent("run_once complete")
		for _, e := range events {
			w.bus.PublishAlarm(e)
		}
	}()
}
