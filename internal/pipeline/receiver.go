// Package pipeline wires the four long-lived workers (Receiver, AlarmWorker,
// NotifyAdapter, Notifier) together around the bounded queues and shared
// StateStore described by the system overview: each stage owns one
// goroutine, consumes from an inbound channel (or a socket, for Receiver),
// and publishes to the next bounded channel without blocking.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/99souls/sensorwatch/internal/domain"
	"github.com/99souls/sensorwatch/internal/telemetry/logging"
	"github.com/99souls/sensorwatch/internal/transport"
)

// connState is the Receiver's connection lifecycle state, mirroring
// §4.1's state machine.
type connState int

const (
	stateDisconnected connState = iota
	stateStreaming
	stateBackoff
	stateStopping
	stateStopped
)

// Receiver owns the outbound TCP connection, decodes NDJSON readings, and
// deposits them on its output queue. It reconnects on any I/O failure and
// drops the newest reading if the output queue is full rather than
// blocking the receive loop.
type Receiver struct {
	host           string
	port           int
	connectTimeout time.Duration
	reconnectDelay time.Duration

	out    chan<- transport.Message
	logger logging.Logger

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu     sync.Mutex
	client *transport.Client
}

// ReceiverConfig bundles the construction parameters named by the Receiver
// contract in §4.1.
type ReceiverConfig struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	ReconnectDelay time.Duration
}

// NewReceiver builds a Receiver that will publish decoded messages onto out.
func NewReceiver(cfg ReceiverConfig, out chan<- transport.Message, logger logging.Logger) *Receiver {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Receiver{
		host:           cfg.Host,
		port:           cfg.Port,
		connectTimeout: cfg.ConnectTimeout,
		reconnectDelay: cfg.ReconnectDelay,
		out:            out,
		logger:         logger,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Start launches the receive loop in its own goroutine.
func (r *Receiver) Start(ctx context.Context) {
	go r.run(ctx)
}

// Stop signals the receive loop to terminate and closes the active socket
// to unblock any in-progress read.
func (r *Receiver) Stop() {
	r.stopOnce.Do(func() { close(r.stop) })
	r.mu.Lock()
	client := r.client
	r.mu.Unlock()
	if client != nil {
		_ = client.Close()
	}
}

// Join blocks until the receive loop has fully exited.
func (r *Receiver) Join() { <-r.done }

func (r *Receiver) stopping() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

func (r *Receiver) run(ctx context.Context) {
	defer close(r.done)
	state := stateDisconnected

	for {
		switch state {
		case stateDisconnected:
			if r.stopping() {
				state = stateStopping
				continue
			}
			client := transport.NewClient(r.host, r.port, r.connectTimeout)
			if err := client.Connect(ctx); err != nil {
				r.logger.WarnCtx(ctx, "receiver: connect failed", "error", err)
				state = stateBackoff
				continue
			}
			r.mu.Lock()
			r.client = client
			r.mu.Unlock()
			state = stateStreaming

		case stateStreaming:
			r.mu.Lock()
			client := r.client
			r.mu.Unlock()
			err := client.Messages(
				func(msg transport.Message) { r.publish(msg) },
				func(err error) { r.logger.WarnCtx(ctx, "receiver: malformed line skipped", "error", err) },
			)
			if err != nil {
				r.logger.WarnCtx(ctx, "receiver: stream ended", "error", err)
			}
			if r.stopping() {
				state = stateStopping
			} else {
				state = stateBackoff
			}

		case stateBackoff:
			select {
			case <-time.After(r.reconnectDelay):
			case <-r.stop:
			}
			if r.stopping() {
				state = stateStopped
			} else {
				state = stateDisconnected
			}

		case stateStopping:
			r.mu.Lock()
			client := r.client
			r.mu.Unlock()
			if client != nil {
				_ = client.Close()
			}
			state = stateStopped

		case stateStopped:
			return
		}
	}
}

// publish performs the non-blocking, drop-on-full enqueue required by
// invariant 6: the receive loop never blocks waiting for queue space.
func (r *Receiver) publish(msg transport.Message) {
	select {
	case r.out <- msg:
	default:
	}
}

// AsReading extracts a domain reading pair from a transport.Message for
// callers that want to branch on kind without re-checking both pointers.
func AsReading(msg transport.Message) (scalar *domain.ScalarReading, spectral *domain.SpectralReading) {
	return msg.Scalar, msg.Spectral
}
