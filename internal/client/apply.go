package client

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

// AppliedFlag is one exposure reported to the backend.
type AppliedFlag struct {
	Flag      string    `json:"flag"`
	ApplyTime time.Time `json:"applyTime"`
}

type applyRequest struct {
	Flags        []AppliedFlag `json:"flags"`
	SendTime     time.Time     `json:"sendTime"`
	ClientSecret string        `json:"clientSecret"`
	ResolveToken string        `json:"resolveToken"`
	SDK          SDK           `json:"sdk"`
}

// Apply reports that flags resolved under token were used.
func (c *Client) Apply(ctx context.Context, token string, flags []AppliedFlag) (Outcome, error) {
	wire := make([]AppliedFlag, len(flags))
	for i, f := range flags {
		wire[i] = AppliedFlag{Flag: flagPrefix + f.Flag, ApplyTime: f.ApplyTime.UTC()}
	}
	body := applyRequest{
		Flags:        wire,
		SendTime:     c.now().UTC(),
		ClientSecret: c.secret,
		ResolveToken: token,
		SDK:          c.sdk,
	}
	return c.send(ctx, "flagship.apply", c.resolveURL+ApplyPath, body,
		attribute.Int("flagship.flags", len(flags)))
}
