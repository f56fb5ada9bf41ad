package pipeline

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/sensorwatch/internal/domain"
	"github.com/99souls/sensorwatch/internal/notify"
)

type countingSender struct {
	calls  int32
	failN  int32 // fail this many times before succeeding
	failed int32
}

func (s *countingSender) Notify(ctx context.Context, payload map[string]interface{}) error {
	atomic.AddInt32(&s.calls, 1)
	if atomic.LoadInt32(&s.failed) < s.failN {
		atomic.AddInt32(&s.failed, 1)
		return errBoom
	}
	return nil
}

type boomError string

func (e boomError) Error() string { return string(e) }

const errBoom = boomError("boom")

func TestNotifierDeliversAndRetries(t *testing.T) {
	sender := &countingSender{failN: 2}
	cfg := NotifierConfig{QueueCapacity: 10, RetryCount: 3, RetryBackoff: 10 * time.Millisecond, PollTimeout: 50 * time.Millisecond}
	notifier := NewNotifier(cfg, []notify.Sender{sender}, nil)
	notifier.Start(context.Background())
	defer notifier.Stop()

	notifier.Emit(domain.NotificationRequest{Type: "alarm_event", Payload: map[string]interface{}{}})

	require.Eventually(t, func() bool { return atomic.LoadInt32(&sender.calls) == 3 }, time.Second, 5*time.Millisecond)
}

func TestNotifierStopDrainsSentinelAndJoins(t *testing.T) {
	sender := &countingSender{}
	cfg := DefaultNotifierConfig()
	cfg.PollTimeout = 20 * time.Millisecond
	notifier := NewNotifier(cfg, []notify.Sender{sender}, nil)
	notifier.Start(context.Background())

	start := time.Now()
	notifier.Stop()
	notifier.Join()
	assert.Less(t, time.Since(start), 2*time.Second, "Join must return via the stop/sentinel path, not the 2s fallback")
}

func TestNotifierDropsOnFullQueueWithoutBlocking(t *testing.T) {
	sender := &countingSender{}
	cfg := NotifierConfig{QueueCapacity: 1, RetryCount: 0, RetryBackoff: time.Millisecond, PollTimeout: time.Hour}
	notifier := NewNotifier(cfg, []notify.Sender{sender}, nil)
	// Deliberately do not Start, so the queue fills and Emit must still not
	// block the caller.
	notifier.Emit(domain.NotificationRequest{})
	notifier.Emit(domain.NotificationRequest{})
	assert.True(t, true)
}
