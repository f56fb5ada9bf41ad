// Package sim implements a dev-only NDJSON publisher that emits synthetic
// scalar and FTIR readings over the same wire protocol the real sensor
// rig uses, so sensorwatch can be exercised without hardware attached.
package sim

import (
	"math"
	"math/rand"
	"time"
)

// ScalarSample is one simulated scalar tick.
type ScalarSample struct {
	Sensor    string
	Value     float64
	Timestamp time.Time
}

// SpectralSample is one simulated FTIR spectrum tick.
type SpectralSample struct {
	Sensor    string
	Axis      []float64
	Values    []float64
	Timestamp time.Time
}

// Engine steps a small fleet of synthetic sensors forward in simulated
// time, the way the original desktop simulator's SimulatorEngine.step
// advanced its device/sensor models once per tick.
type Engine struct {
	rng *rand.Rand

	tempLower   float64
	tempUpper   float64
	pressure    float64
	vibration   float64

	ftirAxis       []float64
	ftirPeaksNm    []float64
	ftirShiftNm    float64
	lastFtirTick   time.Time
	ftirInterval   time.Duration
}

// NewEngine builds a simulator seeded with plausible starting values.
func NewEngine(seed int64) *Engine {
	axis := make([]float64, 200)
	for i := range axis {
		// descending wavelength axis, 4000 -> 400 nm over 200 points; its
		// range and length differ from alarm.DefaultFtirAxis (2550 -> 1350 nm,
		// 255 points)
		axis[i] = 4000.0 - float64(i)*(4000.0-400.0)/199.0
	}
	return &Engine{
		rng:          rand.New(rand.NewSource(seed)),
		tempLower:    25.0,
		tempUpper:    26.0,
		pressure:     5.0,
		vibration:    1.0,
		ftirAxis:     axis,
		ftirPeaksNm:  []float64{3000, 1700, 1000},
		ftirInterval: 5 * time.Second,
	}
}

// Step advances every sensor by dt and returns whatever readings were
// produced this tick. FTIR spectra are only produced every ftirInterval.
func (e *Engine) Step(now time.Time, dt time.Duration) ([]ScalarSample, []SpectralSample) {
	dtS := dt.Seconds()

	e.tempLower += e.rng.NormFloat64() * 0.05 * math.Max(dtS, 0.01)
	e.tempUpper += e.rng.NormFloat64() * 0.05 * math.Max(dtS, 0.01)
	e.pressure += e.rng.NormFloat64() * 0.02 * math.Max(dtS, 0.01)
	e.vibration = math.Abs(1.0 + e.rng.NormFloat64()*0.3)

	scalars := []ScalarSample{
		{Sensor: "TempLowerMSP", Value: e.tempLower, Timestamp: now},
		{Sensor: "TempUpperMSP", Value: e.tempUpper, Timestamp: now},
		{Sensor: "Pressure", Value: e.pressure, Timestamp: now},
		{Sensor: "Vibration", Value: e.vibration, Timestamp: now},
	}

	var spectra []SpectralSample
	if e.lastFtirTick.IsZero() || now.Sub(e.lastFtirTick) >= e.ftirInterval {
		e.lastFtirTick = now
		// occasionally drift the peaks to exercise FtirPeakShiftCriterion
		if e.rng.Float64() < 0.1 {
			e.ftirShiftNm += e.rng.NormFloat64() * 5
		}
		spectra = append(spectra, SpectralSample{
			Sensor:    "FTNIR",
			Axis:      e.ftirAxis,
			Values:    e.renderSpectrum(),
			Timestamp: now,
		})
	}

	return scalars, spectra
}

func (e *Engine) renderSpectrum() []float64 {
	values := make([]float64, len(e.ftirAxis))
	for i, wl := range e.ftirAxis {
		v := 0.05 + e.rng.Float64()*0.01
		for _, peak := range e.ftirPeaksNm {
			shifted := peak + e.ftirShiftNm
			d := wl - shifted
			v += math.Exp(-(d * d) / (2 * 15 * 15))
		}
		values[i] = v
	}
	return values
}
