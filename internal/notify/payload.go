// Package notify assembles webhook payloads from alarm events and store
// totals, and delivers them over HTTP. A single Notify call makes one
// attempt; retries with backoff are done by pipeline.Notifier.
package notify

import (
	"github.com/google/uuid"

	"github.com/99souls/sensorwatch/internal/domain"
	"github.com/99souls/sensorwatch/internal/state"
)

// BuildAlarmWebhookPayload renders the §4.6 payload shape: the triggering
// event plus snapshot totals computed from the store's current alarm
// states and event history.
func BuildAlarmWebhookPayload(store *state.Store, ev domain.AlarmEvent) map[string]interface{} {
	states := store.AlarmStates()
	events := store.AlarmEvents()

	activeCount := 0
	statesBySeverity := map[string]int{}
	statesByType := map[string]int{}
	for _, st := range states {
		if st.Active {
			activeCount++
		}
		statesBySeverity[string(st.Severity)]++
		statesByType[string(st.AlarmType)]++
	}

	eventsByTransition := map[string]int{}
	eventsBySeverity := map[string]int{}
	eventsByType := map[string]int{}
	for _, e := range events {
		eventsByTransition[string(e.Transition)]++
		eventsBySeverity[string(e.Severity)]++
		eventsByType[string(e.AlarmType)]++
	}

	var value interface{}
	if ev.Value != nil {
		value = *ev.Value
	}

	eventPayload := map[string]interface{}{
		"source":     ev.Source,
		"alarm_type": string(ev.AlarmType),
		"severity":   string(ev.Severity),
		"transition": string(ev.Transition),
		"timestamp":  ev.Timestamp.Format("2006-01-02T15:04:05"),
		"message":    ev.Message,
		"value":      value,
		"details":    ev.Details,
	}

	totalsPayload := map[string]interface{}{
		"alarm_states_total":          len(states),
		"alarm_states_active":        activeCount,
		"alarm_events_total":          len(events),
		"state_counts_by_severity":   statesBySeverity,
		"state_counts_by_type":       statesByType,
		"event_counts_by_transition": eventsByTransition,
		"event_counts_by_severity":   eventsBySeverity,
		"event_counts_by_type":       eventsByType,
	}

	return map[string]interface{}{
		"type":        "alarm_event",
		"delivery_id": uuid.New().String(),
		"event":       eventPayload,
		"totals":      totalsPayload,
	}
}

// BuildNotificationRequest wraps a rendered payload into the transient
// NotificationRequest handed to the Notifier. Each request carries its own
// delivery ID so retries and failures can be correlated in logs even
// though the payload itself is rebuilt fresh each call.
func BuildNotificationRequest(store *state.Store, ev domain.AlarmEvent) domain.NotificationRequest {
	payload := BuildAlarmWebhookPayload(store, ev)
	return domain.NotificationRequest{
		DeliveryID: payload["delivery_id"].(string),
		Type:       "alarm_event",
		Payload:    payload,
		Severity:   ev.Severity,
		Source:     ev.Source,
		Timestamp:  ev.Timestamp,
	}
}
