package alarm

import (
	"context"
	"time"

	"github.com/99souls/sensorwatch/internal/domain"
	"github.com/99souls/sensorwatch/internal/state"
)

// EvalContext carries the cycle timestamp a Criterion should evaluate
// against. Its own type, rather than a bare time.Time, leaves room to
// thread additional per-cycle context through later without breaking the
// Criterion signature.
type EvalContext struct {
	Now time.Time
}

// Criterion is a stateless evaluator: given the current store contents and
// a cycle context, it returns zero or more AlarmDecisions. Two consecutive
// calls against identical store contents must return identical decisions —
// criteria hold no state of their own.
type Criterion interface {
	Evaluate(ctx context.Context, store *state.Store, ec EvalContext) ([]domain.AlarmDecision, error)
}
