package alarm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/sensorwatch/internal/domain"
	"github.com/99souls/sensorwatch/internal/state"
)

func TestScalarLimitCriterionAlwaysEmitsBothDecisions(t *testing.T) {
	store := state.New()
	store.SetConfig(domain.SensorConfig{Name: "Pressure", Units: "bar", LowLimit: 1.0, HighLimit: 10.0})
	store.UpdateScalar(domain.ScalarReading{Sensor: "Pressure", Value: 5.0, Status: domain.StatusOK})

	c := ScalarLimitCriterion{}
	decisions, err := c.Evaluate(context.Background(), store, EvalContext{})
	require.NoError(t, err)
	require.Len(t, decisions, 2)

	var low, high domain.AlarmDecision
	for _, d := range decisions {
		switch d.ID.AlarmType {
		case domain.AlarmTypeLowLimit:
			low = d
		case domain.AlarmTypeHighLimit:
			high = d
		}
	}
	assert.False(t, low.ShouldBeActive)
	assert.False(t, high.ShouldBeActive)
}

func TestScalarLimitCriterionSkipsFaultyOrMissing(t *testing.T) {
	store := state.New()
	store.SetConfig(domain.SensorConfig{Name: "Pressure", LowLimit: 1.0, HighLimit: 10.0})
	store.UpdateScalar(domain.ScalarReading{Sensor: "Pressure", Value: 5.0, Status: domain.StatusFaulty})

	c := ScalarLimitCriterion{}
	decisions, err := c.Evaluate(context.Background(), store, EvalContext{})
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func TestScalarLimitXORProperty(t *testing.T) {
	cases := []struct {
		value             float64
		wantLow, wantHigh bool
	}{
		{0.5, true, false},
		{5.0, false, false},
		{15.0, false, true},
	}
	for _, tc := range cases {
		store := state.New()
		store.SetConfig(domain.SensorConfig{Name: "Pressure", LowLimit: 1.0, HighLimit: 10.0})
		store.UpdateScalar(domain.ScalarReading{Sensor: "Pressure", Value: tc.value, Status: domain.StatusOK})
		decisions, err := (ScalarLimitCriterion{}).Evaluate(context.Background(), store, EvalContext{})
		require.NoError(t, err)
		var low, high bool
		for _, d := range decisions {
			if d.ID.AlarmType == domain.AlarmTypeLowLimit {
				low = d.ShouldBeActive
			}
			if d.ID.AlarmType == domain.AlarmTypeHighLimit {
				high = d.ShouldBeActive
			}
		}
		assert.Equal(t, tc.wantLow, low)
		assert.Equal(t, tc.wantHigh, high)
	}
}

func TestTempDiffCriterion(t *testing.T) {
	store := state.New()
	store.UpdateScalar(domain.ScalarReading{Sensor: "TLOW", Value: 20.0, Status: domain.StatusOK})
	store.UpdateScalar(domain.ScalarReading{Sensor: "TUP", Value: 30.5, Status: domain.StatusOK})

	c := TempDiffCriterion{SensorLower: "TLOW", SensorUpper: "TUP", MaxDelta: 3.0}
	decisions, err := c.Evaluate(context.Background(), store, EvalContext{})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].ShouldBeActive)
	assert.InDelta(t, 10.5, *decisions[0].Value, 1e-9)
	assert.Equal(t, "TLOW|TUP", decisions[0].ID.Source)
}

func TestTempDiffCriterionMissingReadingEmitsNothing(t *testing.T) {
	store := state.New()
	store.UpdateScalar(domain.ScalarReading{Sensor: "TLOW", Value: 20.0, Status: domain.StatusOK})
	c := TempDiffCriterion{SensorLower: "TLOW", SensorUpper: "TUP", MaxDelta: 3.0}
	decisions, err := c.Evaluate(context.Background(), store, EvalContext{})
	require.NoError(t, err)
	assert.Empty(t, decisions)
}

func buildAxis() []float64 {
	axis := make([]float64, 255)
	start, step := 2550.0, -1200.0/254.0
	for i := range axis {
		axis[i] = start + step*float64(i)
	}
	return axis
}

func TestFtirContractErrorOnLengthMismatch(t *testing.T) {
	c := FtirPeakShiftCriterion{
		SensorName:        "FTIR1",
		ExpectedPeaksNm:   []float64{2000, 1800},
		MaxAllowedShiftNm: []float64{1.0},
		Axis:              buildAxis(),
		RequireLengthMatch: true,
	}
	store := state.New()
	_, err := c.Evaluate(context.Background(), store, EvalContext{})
	require.Error(t, err)
	var ce *ContractError
	require.ErrorAs(t, err, &ce)
}

func TestFtirAxisValuesLengthMismatch(t *testing.T) {
	axis := buildAxis()
	values := make([]float64, len(axis)-5)
	for i := range values {
		values[i] = 1.0
	}
	store := state.New()
	store.UpdateSpectrum(domain.SpectralReading{Sensor: "FTIR1", Values: values, Status: domain.StatusOK})

	c := FtirPeakShiftCriterion{
		SensorName:         "FTIR1",
		ExpectedPeaksNm:    []float64{2000},
		MaxAllowedShiftNm:  []float64{2.0},
		SearchWindowNm:     12,
		RequireLengthMatch: true,
		Axis:               axis,
	}
	decisions, err := c.Evaluate(context.Background(), store, EvalContext{})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.Equal(t, domain.SeverityCritical, decisions[0].Severity)
	assert.True(t, decisions[0].ShouldBeActive)
	assert.Contains(t, decisions[0].Message, "FTIR axis/values length mismatch")
	assert.InDelta(t, 5.0, *decisions[0].Value, 1e-9)
}

func TestFtirPeakFoundWithinThreshold(t *testing.T) {
	axis := buildAxis()
	values := make([]float64, len(axis))
	for i := range values {
		values[i] = 1.0
	}
	targetIdx := 100
	values[targetIdx] = 0.1

	c := FtirPeakShiftCriterion{
		SensorName:         "FTIR1",
		ExpectedPeaksNm:    []float64{axis[targetIdx]},
		MaxAllowedShiftNm:  []float64{2.0},
		SearchWindowNm:     12,
		RequireLengthMatch: true,
		Axis:               axis,
	}
	store := state.New()
	store.UpdateSpectrum(domain.SpectralReading{Sensor: "FTIR1", Values: values, Status: domain.StatusOK})

	decisions, err := c.Evaluate(context.Background(), store, EvalContext{})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.False(t, decisions[0].ShouldBeActive)
	assert.Equal(t, "FTIR peaks OK", decisions[0].Message)
}

func TestFtirPeakShiftedBeyondThreshold(t *testing.T) {
	axis := buildAxis()
	values := make([]float64, len(axis))
	for i := range values {
		values[i] = 1.0
	}
	expectedIdx := 100
	dipIdx := expectedIdx + 5
	values[dipIdx] = 0.1

	c := FtirPeakShiftCriterion{
		SensorName:         "FTIR1",
		ExpectedPeaksNm:    []float64{axis[expectedIdx]},
		MaxAllowedShiftNm:  []float64{0.1},
		SearchWindowNm:     100,
		RequireLengthMatch: true,
		Axis:               axis,
	}
	store := state.New()
	store.UpdateSpectrum(domain.SpectralReading{Sensor: "FTIR1", Values: values, Status: domain.StatusOK})

	decisions, err := c.Evaluate(context.Background(), store, EvalContext{})
	require.NoError(t, err)
	require.Len(t, decisions, 1)
	assert.True(t, decisions[0].ShouldBeActive)
	assert.Equal(t, domain.SeverityCritical, decisions[0].Severity)
}

func TestRefineMinimumBoundaryFallsBackToAxisSample(t *testing.T) {
	axis := []float64{10, 9, 8}
	values := []float64{0.1, 0.2, 0.3}
	assert.Equal(t, axis[0], refineMinimum(axis, values, 0))
	assert.Equal(t, axis[2], refineMinimum(axis, values, 2))
}

func TestRefineMinimumParabolicInterior(t *testing.T) {
	axis := []float64{10, 9, 8}
	values := []float64{1.0, 0.0, 1.0}
	// symmetric dip: delta should be 0, refined == axis[1]
	assert.InDelta(t, axis[1], refineMinimum(axis, values, 1), 1e-9)
}
