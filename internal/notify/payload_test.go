package notify

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/sensorwatch/internal/domain"
	"github.com/99souls/sensorwatch/internal/state"
)

func TestBuildAlarmWebhookPayloadShape(t *testing.T) {
	store := state.New()
	id := domain.AlarmId{Source: "Pressure", AlarmType: domain.AlarmTypeLowLimit, RuleName: "config_low_limit"}
	store.SetAlarmState(id, domain.AlarmState{Source: "Pressure", AlarmType: domain.AlarmTypeLowLimit, Severity: domain.SeverityWarning, Active: true})

	ev := domain.AlarmEvent{
		Source: "Pressure", AlarmType: domain.AlarmTypeLowLimit, Severity: domain.SeverityWarning,
		Transition: domain.TransitionRaised, Timestamp: time.Date(2026, 1, 1, 10, 0, 5, 0, time.UTC),
		Message: "Pressure LOW: 0.500 < 1.0 bar", Value: domain.Float64Ptr(0.5), Details: "rule=config_low_limit",
	}
	store.AddAlarmEvent(ev)

	payload := BuildAlarmWebhookPayload(store, ev)
	require.Equal(t, "alarm_event", payload["type"])

	event := payload["event"].(map[string]interface{})
	assert.Equal(t, "Pressure", event["source"])
	assert.Equal(t, "2026-01-01T10:00:05", event["timestamp"])
	assert.Equal(t, 0.5, event["value"])

	totals := payload["totals"].(map[string]interface{})
	assert.Equal(t, 1, totals["alarm_states_total"])
	assert.Equal(t, 1, totals["alarm_states_active"])
	assert.Equal(t, 1, totals["alarm_events_total"])
}

func TestBuildNotificationRequestCarriesSeverityAndSource(t *testing.T) {
	store := state.New()
	ev := domain.AlarmEvent{Source: "Vibration", Severity: domain.SeverityCritical, Transition: domain.TransitionRaised, Timestamp: time.Now()}
	req := BuildNotificationRequest(store, ev)
	assert.Equal(t, "alarm_event", req.Type)
	assert.Equal(t, domain.SeverityCritical, req.Severity)
	assert.Equal(t, "Vibration", req.Source)
	assert.NotEmpty(t, req.DeliveryID)
	assert.Equal(t, req.DeliveryID, req.Payload["delivery_id"])
}
