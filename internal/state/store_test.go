package state

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/sensorwatch/internal/domain"
)

func TestUpdateScalarLastWriteWins(t *testing.T) {
	s := New()
	s.UpdateScalar(domain.ScalarReading{Sensor: "P", Value: 1, Status: domain.StatusOK})
	s.UpdateScalar(domain.ScalarReading{Sensor: "P", Value: 2, Status: domain.StatusOK})

	r, ok := s.GetLatest("P")
	require.True(t, ok)
	assert.Equal(t, 2.0, r.Value)
	assert.Len(t, s.Snapshots(), 1)
}

func TestSnapshotCopyLaw(t *testing.T) {
	s := New()
	s.UpdateScalar(domain.ScalarReading{Sensor: "P", Value: 1, Status: domain.StatusOK})

	snap := s.Snapshots()
	snap["P"] = domain.ScalarReading{Sensor: "P", Value: 999}
	snap["Q"] = domain.ScalarReading{Sensor: "Q", Value: 1}

	again := s.Snapshots()
	assert.Equal(t, 1.0, again["P"].Value)
	_, ok := again["Q"]
	assert.False(t, ok)
}

func TestAlarmEventsOrderAndCopy(t *testing.T) {
	s := New()
	e1 := domain.AlarmEvent{Source: "A", Transition: domain.TransitionRaised}
	e2 := domain.AlarmEvent{Source: "B", Transition: domain.TransitionRaised}
	s.AddAlarmEvent(e1)
	s.AddAlarmEvent(e2)

	events := s.AlarmEvents()
	require.Len(t, events, 2)
	assert.Equal(t, "A", events[0].Source)
	assert.Equal(t, "B", events[1].Source)

	events[0].Source = "mutated"
	assert.Equal(t, "A", s.AlarmEvents()[0].Source)
}

func TestClearAlarmHistory(t *testing.T) {
	s := New()
	s.AddAlarmEvent(domain.AlarmEvent{Source: "A"})
	s.ClearAlarmHistory()
	assert.Empty(t, s.AlarmEvents())
}

func TestActiveAlarmStatesFilter(t *testing.T) {
	s := New()
	active := domain.AlarmId{Source: "A", RuleName: "r1"}
	inactive := domain.AlarmId{Source: "B", RuleName: "r2"}
	s.SetAlarmState(active, domain.AlarmState{Source: "A", Active: true})
	s.SetAlarmState(inactive, domain.AlarmState{Source: "B", Active: false})

	got := s.GetActiveAlarmStates()
	require.Len(t, got, 1)
	assert.Equal(t, "A", got[0].Source)
}

func TestEventHistoryCapsAtMaxHistory(t *testing.T) {
	s := New()
	for i := 0; i < maxHistory+10; i++ {
		s.AddAlarmEvent(domain.AlarmEvent{Timestamp: time.Now()})
	}
	assert.Len(t, s.AlarmEvents(), maxHistory)
}

func TestScalarConfigsSnapshot(t *testing.T) {
	s := New()
	s.SetConfig(domain.SensorConfig{Name: "P"})
	cfgs := s.ScalarConfigs()
	require.Len(t, cfgs, 1)
	cfgs[0].Name = "mutated"
	assert.Equal(t, "P", s.ScalarConfigs()[0].Name)
}
