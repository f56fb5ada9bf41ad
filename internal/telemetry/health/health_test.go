package health

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluatorCachingAndRollup(t *testing.T) {
	var calls int
	p := ProbeFunc(func(ctx context.Context) ProbeResult { calls++; return Healthy("unit") })
	ev := NewEvaluator(200*time.Millisecond, p)
	s1 := ev.Evaluate(context.Background())
	s2 := ev.Evaluate(context.Background())
	require.Equal(t, 1, calls)
	assert.Equal(t, StatusHealthy, s1.Overall)
	assert.Equal(t, StatusHealthy, s2.Overall)

	time.Sleep(220 * time.Millisecond)
	_ = ev.Evaluate(context.Background())
	assert.Equal(t, 2, calls)
}

func TestEvaluatorRollupDegraded(t *testing.T) {
	p1 := ProbeFunc(func(ctx context.Context) ProbeResult { return Healthy("a") })
	p2 := ProbeFunc(func(ctx context.Context) ProbeResult { return Degraded("b", "lag") })
	ev := NewEvaluator(0, p1, p2)
	s := ev.Evaluate(context.Background())
	assert.Equal(t, StatusDegraded, s.Overall)
}

func TestEvaluatorRollupUnhealthy(t *testing.T) {
	p1 := ProbeFunc(func(ctx context.Context) ProbeResult { return Healthy("a") })
	p2 := ProbeFunc(func(ctx context.Context) ProbeResult { return Unhealthy("b", "down") })
	ev := NewEvaluator(0, p1, p2)
	s := ev.Evaluate(context.Background())
	assert.Equal(t, StatusUnhealthy, s.Overall)
}
