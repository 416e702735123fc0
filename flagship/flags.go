package flagship

import (
	"context"
	"errors"

	"github.com/TimurManjosov/goflagship-sdk/internal/apply"
	"github.com/TimurManjosov/goflagship-sdk/internal/evaluation"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// GetFlag reads key ("flag" or "flag.path.to.field") from the live
// resolution as a T. It never fails: when the value cannot be served, def is
// returned with the reason and error code explaining why. Reading a flag
// reports it as applied, once per resolve token.
func GetFlag[T any](c *Client, key string, def T) Evaluation[T] {
	ev := evaluation.Evaluate(c.eng.cache.Load(), key, def, c.Context(), c.eng.tracker, c.eng.evalOpts)
	c.eng.metrics.ObserveEvaluation(string(ev.Reason))
	if ev.Failed() {
		c.log.V(1).Info("flag evaluation served default", "key", key,
			"reason", string(ev.Reason), "errorCode", string(ev.ErrorCode), "message", ev.ErrorMessage)
	}
	return ev
}

// GetBool reads a boolean flag value.
func (c *Client) GetBool(key string, def bool) Evaluation[bool] { return GetFlag(c, key, def) }

// GetString reads a string flag value.
func (c *Client) GetString(key string, def string) Evaluation[string] { return GetFlag(c, key, def) }

// GetInt reads an integer flag value.
func (c *Client) GetInt(key string, def int64) Evaluation[int64] { return GetFlag(c, key, def) }

// GetFloat reads a numeric flag value. Integers are widened.
func (c *Client) GetFloat(key string, def float64) Evaluation[float64] { return GetFlag(c, key, def) }

// GetStruct reads a struct flag value.
func (c *Client) GetStruct(key string, def Struct) Evaluation[Struct] { return GetFlag(c, key, def) }

// GetValue reads any flag value without conversion.
func (c *Client) GetValue(key string, def Value) Evaluation[Value] { return GetFlag(c, key, def) }

// Flags evaluates every flag of the live resolution as a whole struct.
func (c *Client) Flags() map[string]Evaluation[Struct] {
	return evaluation.EvaluateAll(c.eng.cache.Load(), c.Context(), c.eng.tracker, c.eng.evalOpts)
}

// Activate makes the last persisted resolution live.
func (c *Client) Activate() {
	c.eng.cache.Activate()
}

// FetchAndActivate resolves flags for the current context, persists the
// result and makes it live.
func (c *Client) FetchAndActivate(ctx context.Context) error {
	if c.eng.stopped.Load() {
		return ErrStopped
	}
	return c.fetch(ctx, c.Context(), true)
}

// AsyncFetch resolves and persists flags for the current context in the
// background without activating them. The returned channel receives the
// outcome once.
func (c *Client) AsyncFetch() <-chan error {
	out := make(chan error, 1)
	if c.eng.stopped.Load() {
		out <- ErrStopped
		return out
	}
	evalCtx := c.Context()
	c.eng.wg.Add(1)
	go func() {
		defer c.eng.wg.Done()
		err := c.fetch(c.eng.ctx, evalCtx, false)
		if err != nil && !errors.Is(err, ErrSuperseded) {
			c.log.Error(err, "background fetch failed")
		}
		out <- err
	}()
	return out
}

// Resolution returns a copy of the live resolution, or nil before one is
// activated.
func (c *Client) Resolution() *FlagResolution {
	res := c.eng.cache.Load()
	if res == nil {
		return nil
	}
	cp := *res
	cp.Context = res.Context.Copy()
	cp.Flags = append([]ResolvedFlag(nil), res.Flags...)
	return &cp
}

// Stale reports whether the live resolution was made for a context other
// than this client's current one.
func (c *Client) Stale() bool {
	res := c.eng.cache.Load()
	return res != nil && !res.IsEmpty() && !value.Equal(res.Context, c.Context())
}

// Subscribe notifies the returned channel with the resolve token each time
// a new resolution becomes live.
func (c *Client) Subscribe() (<-chan string, func()) {
	return c.eng.cache.Subscribe()
}

// PendingApplies returns how many flag reads are still waiting to be
// reported to the backend.
func (c *Client) PendingApplies(ctx context.Context) (int, error) {
	m, err := c.eng.tracker.Pending(ctx)
	if errors.Is(err, apply.ErrClosed) {
		return 0, ErrStopped
	}
	if err != nil {
		return 0, err
	}
	return m.Count(), nil
}
