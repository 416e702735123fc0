package eventlog

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// ManualFlushEvent is the name of the sentinel injected by a manual flush.
// It travels through the write stream for ordering but is never persisted.
const ManualFlushEvent = "manual_flush"

const delimiter = '\n'

// Event is a single telemetry event.
type Event struct {
	Name      string       `json:"name"`
	Payload   value.Struct `json:"payload"`
	EventTime time.Time    `json:"eventTime"`
}

// IsSentinel reports whether e is the manual flush marker.
func (e Event) IsSentinel() bool { return e.Name == ManualFlushEvent }

// EncodeRecord serializes e followed by the record delimiter.
func EncodeRecord(e Event) ([]byte, error) {
	b, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("encode event %q: %w", e.Name, err)
	}
	return append(b, delimiter), nil
}

// Parse decodes every complete record in data. Fragments that do not decode
// are dropped.
func Parse(data []byte) []Event {
	var events []Event
	for _, chunk := range bytes.Split(data, []byte{delimiter}) {
		chunk = bytes.TrimSpace(chunk)
		if len(chunk) == 0 {
			continue
		}
		var e Event
		if err := json.Unmarshal(chunk, &e); err != nil || e.Name == "" {
			continue
		}
		events = append(events, e)
	}
	return events
}
