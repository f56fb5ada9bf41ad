package sim

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherStreamsNDJSONLines(t *testing.T) {
	engine := NewEngine(42)
	pub := NewPublisher("127.0.0.1", 0, 10*time.Millisecond, engine)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	_, portStr, _ := net.SplitHostPort(ln.Addr().String())
	ln.Close()
	var port int
	_, err = fmt.Sscanf(portStr, "%d", &port)
	require.NoError(t, err)

	pub.port = port

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() { _ = pub.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)

	conn, err := net.DialTimeout("tcp", "127.0.0.1:"+portStr, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	scanner := bufio.NewScanner(conn)
	require.True(t, scanner.Scan())
	line := scanner.Text()
	assert.Contains(t, line, `"type":"sensor_reading"`)
}
