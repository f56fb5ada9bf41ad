// Package domain holds the wire- and store-level types shared by every
// stage of the sensor monitoring pipeline: readings, sensor configuration,
// and the alarm lifecycle entities (AlarmId, AlarmDecision, AlarmState,
// AlarmEvent).
package domain

import "time"

// SensorStatus reports whether a reading's originating sensor is healthy.
type SensorStatus string

const (
	StatusOK     SensorStatus = "OK"
	StatusFaulty SensorStatus = "FAULTY"
)

// AlarmType enumerates the families of alarm rule this system evaluates.
type AlarmType string

const (
	AlarmTypeLowLimit    AlarmType = "LOW_LIMIT"
	AlarmTypeHighLimit   AlarmType = "HIGH_LIMIT"
	AlarmTypeWaveShift   AlarmType = "WAVELENGTH_SHIFT"
	AlarmTypeTempDiff    AlarmType = "DIFF_BETWEEN_TEMP_SENSORS"
)

// AlarmSeverity ranks how urgently an alarm should be treated.
type AlarmSeverity string

const (
	SeverityWarning  AlarmSeverity = "WARNING"
	SeverityCritical AlarmSeverity = "CRITICAL"
)

// AlarmTransition is the lifecycle edge an AlarmEvent represents.
type AlarmTransition string

const (
	TransitionRaised  AlarmTransition = "RAISED"
	TransitionUpdated AlarmTransition = "UPDATED"
	TransitionCleared AlarmTransition = "CLEARED"
)

// ScalarReading is a single scalar sample from a named sensor.
type ScalarReading struct {
	Sensor    string
	Value     float64
	Timestamp time.Time
	Status    SensorStatus
}

// SpectralReading is a single FTIR spectrum sample from a named sensor.
type SpectralReading struct {
	Sensor    string
	Values    []float64
	Timestamp time.Time
	Status    SensorStatus
}

// SensorConfig describes a scalar sensor's identity and alarm limits, as
// loaded once at startup.
type SensorConfig struct {
	Name      string
	Units     string
	LowLimit  float64
	HighLimit float64
}

// AlarmId is the immutable composite key identifying one alarm instance
// across evaluation cycles.
type AlarmId struct {
	Source    string
	AlarmType AlarmType
	RuleName  string
}

// AlarmDecision is a per-cycle statement by a Criterion about whether a
// named alarm should currently be active.
type AlarmDecision struct {
	ID              AlarmId
	Severity        AlarmSeverity
	ShouldBeActive  bool
	Message         string
	Value           *float64
}

// AlarmState is the engine's persistent record of an alarm's current
// activity and provenance. One exists per AlarmId ever observed.
type AlarmState struct {
	Source    string
	AlarmType AlarmType
	Severity  AlarmSeverity
	Active    bool
	FirstSeen time.Time
	LastSeen  time.Time
	Message   string
	LastValue *float64
}

// AlarmEvent is a point-in-time lifecycle transition produced by the engine.
type AlarmEvent struct {
	Source     string
	AlarmType  AlarmType
	Severity   AlarmSeverity
	Transition AlarmTransition
	Timestamp  time.Time
	Message    string
	Value      *float64
	Details    string
}

// NotificationRequest is a transient delivery job handed from the
// NotifyAdapter to the Notifier.
type NotificationRequest struct {
	DeliveryID string
	Type       string
	Payload    map[string]interface{}
	Severity   AlarmSeverity
	Source     string
	Timestamp  time.Time
}

// StopSentinelType marks a NotificationRequest used only to unblock a
// Notifier's drain loop on shutdown.
const StopSentinelType = "__stop__"

// Float64Ptr is a small convenience constructor used throughout criteria
// and tests to build AlarmDecision/AlarmState values carrying a value.
func Float64Ptr(v float64) *float64 { return &v }
