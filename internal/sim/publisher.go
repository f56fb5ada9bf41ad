package sim

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"time"
)

type wireScalar struct {
	Type      string  `json:"type"`
	Sensor    string  `json:"sensor"`
	Value     float64 `json:"value"`
	Timestamp string  `json:"timestamp"`
	Status    string  `json:"status"`
}

type wireSpectral struct {
	Type      string    `json:"type"`
	Sensor    string    `json:"sensor"`
	Values    []float64 `json:"values"`
	Timestamp string    `json:"timestamp"`
	Status    string    `json:"status"`
}

const isoLayout = "2006-01-02T15:04:05"

// Publisher accepts a single TCP client at a time and streams the
// engine's simulated readings to it as NDJSON lines, one connection after
// another, mirroring the original desktop simulator's accept-one loop.
type Publisher struct {
	host   string
	port   int
	tick   time.Duration
	engine *Engine
}

// NewPublisher builds a Publisher over engine, ticking every tick.
func NewPublisher(host string, port int, tick time.Duration, engine *Engine) *Publisher {
	return &Publisher{host: host, port: port, tick: tick, engine: engine}
}

// Run listens on host:port and serves connections until ctx is canceled.
func (p *Publisher) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", fmt.Sprintf("%s:%d", p.host, p.port))
	if err != nil {
		return fmt.Errorf("sim: listen: %w", err)
	}
	defer ln.Close()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				return nil
			default:
				return fmt.Errorf("sim: accept: %w", err)
			}
		}
		p.serve(ctx, conn)
	}
}

func (p *Publisher) serve(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	w := bufio.NewWriter(conn)
	ticker := time.NewTicker(p.tick)
	defer ticker.Stop()

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			dt := now.Sub(last)
			last = now

			scalars, spectra := p.engine.Step(now, dt)
			for _, s := range scalars {
				if err := writeJSONLine(w, wireScalar{
					Type: "sensor_reading", Sensor: s.Sensor, Value: s.Value,
					Timestamp: s.Timestamp.Format(isoLayout), Status: "OK",
				}); err != nil {
					return
				}
			}
			for _, s := range spectra {
				if err := writeJSONLine(w, wireSpectral{
					Type: "ftir_spectrum", Sensor: s.Sensor, Values: s.Values,
					Timestamp: s.Timestamp.Format(isoLayout), Status: "OK",
				}); err != nil {
					return
				}
			}
			if err := w.Flush(); err != nil {
				return
			}
		}
	}
}

func writeJSONLine(w *bufio.Writer, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.Write(b); err != nil {
		return err
	}
	_, err = w.Write([]byte("\n"))
	return err
}
