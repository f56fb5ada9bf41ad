// Package transport implements the inbound wire protocol: newline-delimited
// JSON readings over a TCP connection, tolerant of concatenated objects on
// one line, plus the TCP line client that feeds the Receiver stage. The
// client does not reconnect by itself; the Receiver builds a new one after
// each failure.
package transport

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/99souls/sensorwatch/internal/domain"
)

// isoLayout parses the ISO-8601-without-zone timestamps the simulator and
// original sender emit, e.g. "2026-01-01T10:00:00".
const isoLayout = "2006-01-02T15:04:05"

func parseISO(s string) (time.Time, error) {
	if t, err := time.Parse(isoLayout, s); err == nil {
		return t, nil
	}
	// isoLayout already accepts an optional fractional-seconds field; fall
	// back to RFC 3339 for timestamps that carry a zone offset.
	return time.Parse(time.RFC3339Nano, s)
}

// Message is the decoded union of the two wire record types. Exactly one of
// Scalar/Spectral is set.
type Message struct {
	Scalar   *domain.ScalarReading
	Spectral *domain.SpectralReading
}

type wireEnvelope struct {
	Type      string          `json:"type"`
	Sensor    string          `json:"sensor"`
	Value     json.Number     `json:"value"`
	Values    []float64       `json:"values"`
	Timestamp string          `json:"timestamp"`
	Status    string          `json:"status"`
}

// decodeObj converts a single decoded JSON object into a typed Message.
func decodeObj(raw map[string]interface{}) (Message, error) {
	b, err := json.Marshal(raw)
	if err != nil {
		return Message{}, fmt.Errorf("ndjson: re-marshal object: %w", err)
	}
	var env wireEnvelope
	if err := json.Unmarshal(b, &env); err != nil {
		return Message{}, fmt.Errorf("ndjson: decode envelope: %w", err)
	}

	status := domain.StatusOK
	if env.Status != "" {
		status = domain.SensorStatus(env.Status)
	}
	ts, err := parseISO(env.Timestamp)
	if err != nil {
		return Message{}, fmt.Errorf("ndjson: parse timestamp %q: %w", env.Timestamp, err)
	}

	switch env.Type {
	case "sensor_reading":
		v, err := env.Value.Float64()
		if err != nil {
			return Message{}, fmt.Errorf("ndjson: parse value: %w", err)
		}
		return Message{Scalar: &domain.ScalarReading{
			Sensor: env.Sensor, Value: v, Timestamp: ts, Status: status,
		}}, nil
	case "ftir_spectrum":
		return Message{Spectral: &domain.SpectralReading{
			Sensor: env.Sensor, Values: env.Values, Timestamp: ts, Status: status,
		}}, nil
	default:
		return Message{}, fmt.Errorf("ndjson: unknown message type %q", env.Type)
	}
}

// IterJSONObjects yields every dict-shaped JSON value decoded out of text,
// tolerating multiple objects concatenated without delimiters on one line.
// Non-object JSON values (arrays, scalars) are skipped.
func IterJSONObjects(text string) []map[string]interface{} {
	s := strings.TrimSpace(text)
	if s == "" {
		return nil
	}

	var out []map[string]interface{}
	dec := json.NewDecoder(strings.NewReader(s))
	for {
		var raw interface{}
		if err := dec.Decode(&raw); err != nil {
			break
		}
		if obj, ok := raw.(map[string]interface{}); ok {
			out = append(out, obj)
		}
	}
	return out
}

// DecodeMessage decodes an NDJSON line into a typed Message, returning the
// first dict-shaped JSON object found on the line. Concatenated objects
// after the first are ignored. An error is returned if no object is found
// or the object does not describe a known message type.
func DecodeMessage(line string) (Message, error) {
	objs := IterJSONObjects(line)
	if len(objs) == 0 {
		return Message{}, fmt.Errorf("ndjson: no JSON object found in line")
	}
	return decodeObj(objs[0])
}
