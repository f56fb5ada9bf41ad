package pipeline

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/99souls/sensorwatch/internal/domain"
)

func TestEventBusDropsOnFullWithoutBlocking(t *testing.T) {
	bus := NewEventBus(2)
	bus.PublishAlarm(domain.AlarmEvent{Source: "a"})
	bus.PublishAlarm(domain.AlarmEvent{Source: "b"})
	bus.PublishAlarm(domain.AlarmEvent{Source: "c"}) // dropped, must not block

	assert.Equal(t, "a", (<-bus.Events()).Source)
	assert.Equal(t, "b", (<-bus.Events()).Source)
}

func TestEventBusConcurrentProducersNeverBlockOrPanic(t *testing.T) {
	bus := NewEventBus(8)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				bus.PublishAlarm(domain.AlarmEvent{Source: "x"})
			}
		}(i)
	}
	assert.NotPanics(t, wg.Wait)
}
