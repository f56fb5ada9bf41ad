package pipeline

import (
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/99souls/sensorwatch/internal/transport"
)

func startFakeServer(t *testing.T, lines []string) (addr string, closeFn func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		for _, l := range lines {
			fmt.Fprintf(conn, "%s\n", l)
		}
		// keep the connection open briefly so the client can read before EOF
		time.Sleep(100 * time.Millisecond)
	}()

	return ln.Addr().String(), func() { ln.Close() }
}

func TestReceiverDecodesAndPublishesReadings(t *testing.T) {
	addr, closeSrv := startFakeServer(t, []string{
		`{"type":"sensor_reading","sensor":"Pressure","value":5.0,"timestamp":"2026-01-01T10:00:00","status":"OK"}`,
	})
	defer closeSrv()

	host, portStr, err := net.SplitHostPort(addr)
	require.NoError(t, err)
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	out := make(chan transport.Message, 10)
	r := NewReceiver(ReceiverConfig{Host: host, Port: port, ConnectTimeout: time.Second, ReconnectDelay: 50 * time.Millisecond}, out, nil)
	r.Start(context.Background())
	defer func() { r.Stop(); r.Join() }()

	select {
	case msg := <-out:
		require.NotNil(t, msg.Scalar)
		assert.Equal(t, "Pressure", msg.Scalar.Sensor)
		assert.Equal(t, 5.0, msg.Scalar.Value)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for reading")
	}
}

func TestReceiverStopUnblocksAndJoins(t *testing.T) {
	addr, closeSrv := startFakeServer(t, nil)
	defer closeSrv()

	host, portStr, _ := net.SplitHostPort(addr)
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	out := make(chan transport.Message, 10)
	r := NewReceiver(ReceiverConfig{Host: host, Port: port, ConnectTimeout: time.Second, ReconnectDelay: 10 * time.Millisecond}, out, nil)
	r.Start(context.Background())

	time.Sleep(30 * time.Millisecond)
	r.Stop()

	done := make(chan struct{})
	go func() { r.Join(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not join after stop")
	}
}

func TestReceiverDropsOnFullOutputQueue(t *testing.T) {
	var lines []string
	for i := 0; i < 5; i++ {
		lines = append(lines, fmt.Sprintf(`{"type":"sensor_reading","sensor":"P","value":%d,"timestamp":"2026-01-01T10:00:00"}`, i))
	}
	addr, closeSrv := startFakeServer(t, lines)
	defer closeSrv()

	host, portStr, _ := net.SplitHostPort(addr)
	var port int
	fmt.Sscanf(portStr, "%d", &port)

	out := make(chan transport.Message, 1) // tiny queue forces drops
	r := NewReceiver(ReceiverConfig{Host: host, Port: port, ConnectTimeout: time.Second, ReconnectDelay: 50 * time.Millisecond}, out, nil)
	r.Start(context.Background())

	time.Sleep(200 * time.Millisecond) // let all 5 readings flood in, nothing draining out

	assert.LessOrEqual(t, len(out), cap(out), "publish() must drop rather than grow the queue past its capacity")

	r.Stop()
	done := make(chan struct{})
	go func() { r.Join(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("receiver did not join after a flood of dropped readings")
	}
}
