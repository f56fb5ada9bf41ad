package alarm

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/99souls/sensorwatch/internal/domain"
	"github.com/99souls/sensorwatch/internal/state"
	"github.com/99souls/sensorwatch/internal/telemetry/logging"
)

// DefaultValueEps is the default tolerance used to suppress UPDATED events
// caused by small-amplitude jitter between cycles.
const DefaultValueEps = 0.5

// Engine owns the lifecycle state for every AlarmId it has ever seen and
// converts the stateless decisions produced by its Criteria into ordered
// RAISED/UPDATED/CLEARED events. It is itself stateful and must not be
// shared across goroutines without external serialization — in this
// pipeline only the single AlarmWorker ever calls RunOnce.
type Engine struct {
	criteria []Criterion
	valueEps float64
	logger   logging.Logger

	mu     sync.Mutex
	states map[domain.AlarmId]domain.AlarmState
}

// NewEngine builds an Engine over the given ordered criteria list. A zero
// valueEps falls back to DefaultValueEps.
func NewEngine(criteria []Criterion, valueEps float64, logger logging.Logger) *Engine {
	if valueEps <= 0 {
		valueEps = DefaultValueEps
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Engine{
		criteria: criteria,
		valueEps: valueEps,
		logger:   logger,
		states:   make(map[domain.AlarmId]domain.AlarmState),
	}
}

// RunOnce evaluates every configured criterion against store, applies the
// lifecycle transition table, writes resulting states and events back to
// store, and returns the events in the order they were generated. A zero
// now is replaced with the current wall clock.
//
// A criterion returning an error is logged and skipped for this cycle; it
// never aborts the run or the other criteria.
func (e *Engine) RunOnce(ctx context.Context, store *state.Store, now time.Time) []domain.AlarmEvent {
	if now.IsZero() {
		now = time.Now()
	}
	ec := EvalContext{Now: now}

	var decisions []domain.AlarmDecision
	for _, c := range e.criteria {
		ds, err := c.Evaluate(ctx, store, ec)
		if err != nil {
			e.logger.ErrorCtx(ctx, "criterion evaluation failed", "error", err)
			continue
		}
		decisions = append(decisions, ds...)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	events := make([]domain.AlarmEvent, 0, len(decisions))
	touched := make(map[domain.AlarmId]struct{}, len(decisions))

	for _, d := range decisions {
		prev, hadPrev := e.states[d.ID]
		newState, event := e.applyDecision(d, prev, hadPrev, now)
		e.states[d.ID] = newState
		touched[d.ID] = struct{}{}
		if event != nil {
			events = append(events, *event)
		}
	}

	for _, ev := range events {
		store.AddAlarmEvent(ev)
	}
	for id := range touched {
		store.SetAlarmState(id, e.states[id])
	}

	return events
}

// applyDecision implements the §4.4 transition table for a single decision
// against its previous state (if any), returning the new state and the
// event to emit (nil if none).
func (e *Engine) applyDecision(d domain.AlarmDecision, prev domain.AlarmState, hadPrev bool, ts time.Time) (domain.AlarmState, *domain.AlarmEvent) {
	details := fmt.Sprintf("rule=%s", d.ID.RuleName)

	if !hadPrev {
		st := domain.AlarmState{
			Source:    d.ID.Source,
			AlarmType: d.ID.AlarmType,
			Severity:  d.Severity,
			Active:    d.ShouldBeActive,
			FirstSeen: ts,
			LastSeen:  ts,
			Message:   d.Message,
			LastValue: d.Value,
		}
		if !d.ShouldBeActive {
			return st, nil
		}
		return st, &domain.AlarmEvent{
			Source:     d.ID.Source,
			AlarmType:  d.ID.AlarmType,
			Severity:   d.Severity,
			Transition: domain.TransitionRaised,
			Timestamp:  ts,
			Message:    d.Message,
			Value:      d.Value,
			Details:    details,
		}
	}

	if !prev.Active && d.ShouldBeActive {
		st := prev
		st.Severity = d.Severity
		st.Active = true
		st.FirstSeen = ts
		st.LastSeen = ts
		st.Message = d.Message
		st.LastValue = d.Value
		return st, &domain.AlarmEvent{
			Source:     d.ID.Source,
			AlarmType:  d.ID.AlarmType,
			Severity:   d.Severity,
			Transition: domain.TransitionRaised,
			Timestamp:  ts,
			Message:    d.Message,
			Value:      d.Value,
			Details:    details,
		}
	}

	if prev.Active && !d.ShouldBeActive {
		st := prev
		st.Active = false
		st.LastSeen = ts
		st.Message = d.Message
		st.LastValue = d.Value
		return st, &domain.AlarmEvent{
			Source:     d.ID.Source,
			AlarmType:  d.ID.AlarmType,
			Severity:   prev.Severity, // CLEARED carries the severity in effect when raised
			Transition: domain.TransitionCleared,
			Timestamp:  ts,
			Message:    d.Message,
			Value:      d.Value,
			Details:    details,
		}
	}

	if prev.Active && d.ShouldBeActive {
		st := prev
		st.LastSeen = ts
		st.Message = d.Message
		st.LastValue = d.Value
		changed := d.Message != prev.Message || valueChanged(prev.LastValue, d.Value, e.valueEps)
		if !changed {
			return st, nil
		}
		return st, &domain.AlarmEvent{
			Source:     d.ID.Source,
			AlarmType:  d.ID.AlarmType,
			Severity:   d.Severity,
			Transition: domain.TransitionUpdated,
			Timestamp:  ts,
			Message:    d.Message,
			Value:      d.Value,
			Details:    details,
		}
	}

	// prev inactive, decision inactive: refresh bookkeeping, no event.
	st := prev
	st.LastSeen = ts
	st.Message = d.Message
	st.LastValue = d.Value
	return st, nil
}

// valueChanged implements the None/None-unchanged, None/Some-changed,
// Some/Some-within-eps-unchanged rule used to suppress noisy UPDATED
// events.
func valueChanged(prev, next *float64, eps float64) bool {
	if prev == nil && next == nil {
		return false
	}
	if prev == nil || next == nil {
		return true
	}
	diff := *prev - *next
	if diff < 0 {
		diff = -diff
	}
	return diff > eps
}
