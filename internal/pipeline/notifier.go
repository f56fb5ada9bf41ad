package pipeline

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/99souls/sensorwatch/internal/domain"
	"github.com/99souls/sensorwatch/internal/notify"
	"github.com/99souls/sensorwatch/internal/telemetry/logging"
)

// NotifierConfig bounds the Notifier's Q3 capacity and retry behavior.
type NotifierConfig struct {
	QueueCapacity int
	RetryCount    int
	RetryBackoff  time.Duration
	PollTimeout   time.Duration
}

// DefaultNotifierConfig mirrors the original NotificationThreadConfig
// defaults.
func DefaultNotifierConfig() NotifierConfig {
	return NotifierConfig{QueueCapacity: 2000, RetryCount: 3, RetryBackoff: 500 * time.Millisecond, PollTimeout: 500 * time.Millisecond}
}

// Notifier drains Q3 and delivers each request to every configured sender,
// retrying with exponential backoff before giving up and logging. A
// sentinel request terminates the drain loop on shutdown.
type Notifier struct {
	cfg     NotifierConfig
	senders []notify.Sender
	logger  logging.Logger

	q    chan domain.NotificationRequest
	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// NewNotifier builds a Notifier delivering to senders.
func NewNotifier(cfg NotifierConfig, senders []notify.Sender, logger logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewNop()
	}
	if cfg.QueueCapacity <= 0 {
		cfg.QueueCapacity = DefaultNotifierConfig().QueueCapacity
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = DefaultNotifierConfig().PollTimeout
	}
	return &Notifier{
		cfg: cfg, senders: senders, logger: logger,
		q:    make(chan domain.NotificationRequest, cfg.QueueCapacity),
		stop: make(chan struct{}), done: make(chan struct{}),
	}
}

// Emit enqueues req, dropping it if Q3 is full.
func (n *Notifier) Emit(req domain.NotificationRequest) {
	select {
	case n.q <- req:
	default:
	}
}

// Start launches the drain loop.
func (n *Notifier) Start(ctx context.Context) { go n.run(ctx) }

// Stop signals shutdown and pushes a sentinel to unblock the drain loop.
func (n *Notifier) Stop() {
	n.once.Do(func() {
		close(n.stop)
		select {
		case n.q <- domain.NotificationRequest{Type: domain.StopSentinelType}:
		default:
		}
	})
}

// Join blocks until the drain loop has exited, bounded by a 2s timeout per
// spec.md's shutdown budget; it returns regardless once that elapses.
func (n *Notifier) Join() {
	select {
	case <-n.done:
	case <-time.After(2 * time.Second):
	}
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)
	for {
		select {
		case <-n.stop:
			return
		case req := <-n.q:
			if req.Type == domain.StopSentinelType {
				return
			}
			n.deliver(ctx, req)
		case <-time.After(n.cfg.PollTimeout):
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, req domain.NotificationRequest) {
	for _, s := range n.senders {
		n.sendWithRetries(ctx, s, req)
	}
}

func (n *Notifier) sendWithRetries(ctx context.Context, s notify.Sender, req domain.NotificationRequest) {
	for attempt := 0; attempt <= n.cfg.RetryCount; attempt++ {
		if err := s.Notify(ctx, req.Payload); err == nil {
			return
		} else if attempt >= n.cfg.RetryCount {
			n.logger.WarnCtx(ctx, "notifier: giving up after retries", "delivery_id", req.DeliveryID, "error", err, "attempts", attempt+1)
			return
		} else {
			backoff := time.Duration(float64(n.cfg.RetryBackoff) * math.Pow(2, float64(attempt)))
			select {
			case <-time.After(backoff):
			case <-n.stop:
				return
			}
		}
	}
}
