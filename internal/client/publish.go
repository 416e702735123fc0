package client

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/TimurManjosov/goflagship-sdk/internal/eventlog"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

const eventPrefix = "eventDefinitions/"

type wireEvent struct {
	EventDefinition string         `json:"eventDefinition"`
	EventTime       time.Time      `json:"eventTime"`
	Payload         map[string]any `json:"payload"`
}

type publishRequest struct {
	ClientSecret string      `json:"clientSecret"`
	Events       []wireEvent `json:"events"`
	SendTime     time.Time   `json:"sendTime"`
	SDK          SDK         `json:"sdk"`
}

// Publish uploads one batch of events.
func (c *Client) Publish(ctx context.Context, events []eventlog.Event) (Outcome, error) {
	wire := make([]wireEvent, 0, len(events))
	for _, e := range events {
		wire = append(wire, wireEvent{
			EventDefinition: eventPrefix + e.Name,
			EventTime:       e.EventTime.UTC(),
			Payload:         value.PlainMap(e.Payload),
		})
	}
	body := publishRequest{
		ClientSecret: c.secret,
		Events:       wire,
		SendTime:     c.now().UTC(),
		SDK:          c.sdk,
	}
	return c.send(ctx, "flagship.publish", c.eventsURL+PublishPath, body,
		attribute.Int("flagship.events", len(events)))
}
