package alarm

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/99souls/sensorwatch/internal/domain"
	"github.com/99souls/sensorwatch/internal/state"
)

// DefaultFtirAxis is the instrument's fixed, descending wavelength axis
// (~2550 -> 1350 nm, 255 points) used whenever a deployment does not
// supply its own axis via FtirPeakShiftConfig.AxisNm. FtirPeakShiftCriterion
// never samples the wire protocol for an axis; this constant (or an
// operator-supplied override) is the only source for it.
var DefaultFtirAxis = buildDefaultFtirAxis()

func buildDefaultFtirAxis() []float64 {
	const n = 255
	const start, end = 2550.0, 1350.0
	step := (end - start) / float64(n-1)
	axis := make([]float64, n)
	for i := range axis {
		axis[i] = start + step*float64(i)
	}
	return axis
}

// ScalarLimitCriterion checks every configured scalar sensor against its
// low/high limits, always emitting both a LOW_LIMIT and a HIGH_LIMIT
// decision (active or not) so the engine can drive CLEARED when a value
// returns in range.
type ScalarLimitCriterion struct{}

func (ScalarLimitCriterion) Evaluate(_ context.Context, store *state.Store, _ EvalContext) ([]domain.AlarmDecision, error) {
	var out []domain.AlarmDecision
	for _, cfg := range store.ScalarConfigs() {
		r, ok := store.GetLatest(cfg.Name)
		if !ok || r.Status != domain.StatusOK {
			continue
		}
		v := r.Value
		low := domain.AlarmDecision{
			ID:             domain.AlarmId{Source: cfg.Name, AlarmType: domain.AlarmTypeLowLimit, RuleName: "config_low_limit"},
			Severity:       domain.SeverityWarning,
			ShouldBeActive: v < cfg.LowLimit,
			Message:        fmt.Sprintf("%s LOW: %.3f < %.1f %s", cfg.Name, v, cfg.LowLimit, cfg.Units),
			Value:          domain.Float64Ptr(v),
		}
		high := domain.AlarmDecision{
			ID:             domain.AlarmId{Source: cfg.Name, AlarmType: domain.AlarmTypeHighLimit, RuleName: "config_high_limit"},
			Severity:       domain.SeverityWarning,
			ShouldBeActive: v > cfg.HighLimit,
			Message:        fmt.Sprintf("%s HIGH: %.3f > %.1f %s", cfg.Name, v, cfg.HighLimit, cfg.Units),
			Value:          domain.Float64Ptr(v),
		}
		out = append(out, low, high)
	}
	return out, nil
}

// TempDiffCriterion raises when the absolute difference between two named
// temperature sensors exceeds a configured delta.
type TempDiffCriterion struct {
	SensorLower string
	SensorUpper string
	MaxDelta    float64
}

func (c TempDiffCriterion) Evaluate(_ context.Context, store *state.Store, _ EvalContext) ([]domain.AlarmDecision, error) {
	lower, ok := store.GetLatest(c.SensorLower)
	if !ok || lower.Status != domain.StatusOK {
		return nil, nil
	}
	upper, ok := store.GetLatest(c.SensorUpper)
	if !ok || upper.Status != domain.StatusOK {
		return nil, nil
	}
	diff := math.Abs(lower.Value - upper.Value)
	d := domain.AlarmDecision{
		ID: domain.AlarmId{
			Source:    fmt.Sprintf("%s|%s", c.SensorLower, c.SensorUpper),
			AlarmType: domain.AlarmTypeTempDiff,
			RuleName:  "config_high_temp_diff",
		},
		Severity:       domain.SeverityWarning,
		ShouldBeActive: diff > c.MaxDelta,
		Message:        fmt.Sprintf("temp diff %s/%s = %.3f (max %.1f)", c.SensorLower, c.SensorUpper, diff, c.MaxDelta),
		Value:          domain.Float64Ptr(diff),
	}
	return []domain.AlarmDecision{d}, nil
}

// ContractError marks a criterion misconfiguration. It is returned as an
// error, never raised as an alarm. Engine.RunOnce logs it and skips the
// criterion for that cycle; it does not stop the engine or the process.
// config.Validate rejects the same peak/shift length mismatch at load time.
type ContractError struct {
	msg string
}

func (e *ContractError) Error() string { return e.msg }

func newContractError(format string, args ...interface{}) error {
	return &ContractError{msg: fmt.Sprintf(format, args...)}
}

// FtirPeakShiftCriterion is the hardest rule: it searches a fixed,
// descending wavelength axis for the local minimum ("dip") near each
// expected peak, refines its location with a 3-point parabolic fit, and
// raises when any refined peak has shifted beyond its allowed tolerance.
type FtirPeakShiftCriterion struct {
	SensorName        string
	ExpectedPeaksNm   []float64
	MaxAllowedShiftNm []float64
	SearchWindowNm    float64
	RequireLengthMatch bool

	// Axis is the fixed, descending wavelength axis the spectrum values are
	// sampled against (e.g. ~2550 -> 1350 nm). Supplied externally at
	// construction time, not part of the wire protocol.
	Axis []float64
}

const ftirRuleName = "ftir_peak_shift_hardcoded_axis"

func (c FtirPeakShiftCriterion) Evaluate(_ context.Context, store *state.Store, _ EvalContext) ([]domain.AlarmDecision, error) {
	if len(c.ExpectedPeaksNm) != len(c.MaxAllowedShiftNm) {
		return nil, newContractError("ftir criterion: expected_peaks_nm (%d) and max_allowed_shift_nm (%d) length mismatch", len(c.ExpectedPeaksNm), len(c.MaxAllowedShiftNm))
	}

	id := domain.AlarmId{Source: c.SensorName, AlarmType: domain.AlarmTypeWaveShift, RuleName: ftirRuleName}

	reading, ok := store.GetLatestFtir(c.SensorName)
	if !ok || reading.Status != domain.StatusOK {
		return nil, nil
	}
	values := reading.Values

	if c.RequireLengthMatch && len(values) != len(c.Axis) {
		diff := len(c.Axis) - len(values)
		if diff < 0 {
			diff = -diff
		}
		return []domain.AlarmDecision{{
			ID:             id,
			Severity:       domain.SeverityCritical,
			ShouldBeActive: true,
			Message:        fmt.Sprintf("FTIR axis/values length mismatch: axis=%d values=%d", len(c.Axis), len(values)),
			Value:          domain.Float64Ptr(float64(diff)),
		}}, nil
	}

	var violations []string
	worstShift := 0.0

	for i, expected := range c.ExpectedPeaksNm {
		maxShift := c.MaxAllowedShiftNm[i]

		window := windowIndices(c.Axis, expected, c.SearchWindowNm)
		if len(window) == 0 {
			violations = append(violations, fmt.Sprintf("Peak near %g nm not found", expected))
			continue
		}

		i0 := argminOver(values, window)
		refined := refineMinimum(c.Axis, values, i0)
		shift := math.Abs(refined - expected)
		if shift > worstShift {
			worstShift = shift
		}
		if shift > maxShift {
			violations = append(violations, fmt.Sprintf("Peak near %g nm shifted to %.3f nm (Δ=%.3f > %.3f)", expected, refined, shift, maxShift))
		}
	}

	if len(violations) > 0 {
		return []domain.AlarmDecision{{
			ID:             id,
			Severity:       domain.SeverityCritical,
			ShouldBeActive: true,
			Message:        strings.Join(violations, " | "),
			Value:          domain.Float64Ptr(worstShift),
		}}, nil
	}

	return []domain.AlarmDecision{{
		ID:             id,
		Severity:       domain.SeverityWarning,
		ShouldBeActive: false,
		Message:        "FTIR peaks OK",
		Value:          domain.Float64Ptr(0),
	}}, nil
}

// windowIndices returns the indices i where axis[i] falls within
// [expected-window, expected+window].
func windowIndices(axis []float64, expected, window float64) []int {
	var out []int
	lo, hi := expected-window, expected+window
	for i, x := range axis {
		if x >= lo && x <= hi {
			out = append(out, i)
		}
	}
	return out
}

// argminOver returns the index within candidates minimizing values[i].
func argminOver(values []float64, candidates []int) int {
	best := candidates[0]
	for _, i := range candidates[1:] {
		if values[i] < values[best] {
			best = i
		}
	}
	return best
}

// refineMinimum applies the 3-point parabolic sub-sample refinement around
// i0 on the descending axis. At the boundary, or when the parabola is
// degenerate, it falls back to the unrefined axis sample.
func refineMinimum(axis, values []float64, i0 int) float64 {
	n := len(values)
	if i0 == 0 || i0 == n-1 {
		return axis[i0]
	}
	y1, y2, y3 := values[i0-1], values[i0], values[i0+1]
	denom := y1 - 2*y2 + y3
	if math.Abs(denom) < 1e-12 {
		return axis[i0]
	}
	delta := 0.5 * (y1 - y3) / denom
	if delta > 1 {
		delta = 1
	} else if delta < -1 {
		delta = -1
	}
	if delta >= 0 {
		return axis[i0] + delta*(axis[i0+1]-axis[i0])
	}
	return axis[i0] + (-delta)*(axis[i0-1]-axis[i0])
}
