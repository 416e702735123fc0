package flagship

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/TimurManjosov/goflagship-sdk/internal/eventlog"
	"github.com/TimurManjosov/goflagship-sdk/internal/validation"
	"github.com/TimurManjosov/goflagship-sdk/internal/value"
)

// ErrInvalidEvent is returned by Track for an empty, malformed or reserved
// event name.
var ErrInvalidEvent = errors.New("flagship: invalid event name")

// ContextPayloadKey is the payload key under which Track stores the context.
const ContextPayloadKey = "context"

// Update is one item produced by a Producer. A non-nil Context is merged
// into the client's context, Null values removing their key. A non-empty
// Event is tracked with Payload. Flush uploads everything tracked so far.
type Update struct {
	Context Struct
	Event   string
	Payload Struct
	Flush   bool
}

// Producer is an external source of context changes and events, such as a
// lifecycle listener.
type Producer interface {
	Updates() <-chan Update
	Stop()
}

// Track records an event. The payload is stamped with the client's full
// context at call time.
func (c *Client) Track(name string, payload Struct) error {
	if c.eng.stopped.Load() {
		return ErrStopped
	}
	if res := validation.ValidateEventName(name); !res.Valid {
		return fmt.Errorf("%w: %s", ErrInvalidEvent, res.Error())
	}
	p := payload.Copy()
	p[ContextPayloadKey] = c.Context()
	err := c.eng.pipeline.Emit(eventlog.Event{Name: name, Payload: p, EventTime: time.Now().UTC()})
	if err != nil {
		return ErrStopped
	}
	return nil
}

// Flush seals the events tracked so far into a batch and uploads it.
func (c *Client) Flush() error {
	if c.eng.stopped.Load() {
		return ErrStopped
	}
	if err := c.eng.pipeline.Flush(); err != nil {
		return ErrStopped
	}
	return nil
}

// Backlog returns the tracked events not yet sealed into a batch and the
// sealed batches still waiting for upload.
func (c *Client) Backlog() (events, batches int, err error) {
	return c.eng.pipeline.Backlog()
}

type producerRun struct {
	p        Producer
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// TrackProducer consumes p's updates until p's channel closes or the client
// stops, at which point p.Stop is called.
func (c *Client) TrackProducer(p Producer) {
	run := &producerRun{p: p, stop: make(chan struct{}), done: make(chan struct{})}
	c.producerMu.Lock()
	c.producers = append(c.producers, run)
	c.producerMu.Unlock()
	c.eng.producerMu.Lock()
	c.eng.producers = append(c.eng.producers, run)
	c.eng.producerMu.Unlock()

	go func() {
		defer close(run.done)
		defer p.Stop()
		updates := p.Updates()
		for {
			select {
			case <-run.stop:
				return
			case u, ok := <-updates:
				if !ok {
					return
				}
				c.handleUpdate(u)
			}
		}
	}()
}

func (c *Client) handleUpdate(u Update) {
	if len(u.Context) > 0 {
		set := value.Struct{}
		var remove []string
		for k, v := range u.Context {
			if v == nil || v.Kind() == value.KindNull {
				remove = append(remove, k)
				continue
			}
			set[k] = v
		}
		if err := c.patch(set, remove); err != nil {
			c.log.V(1).Info("dropping producer context update", "error", err.Error())
		}
	}
	if u.Event != "" {
		if err := c.Track(u.Event, u.Payload); err != nil {
			c.log.V(1).Info("dropping producer event", "event", u.Event, "error", err.Error())
		}
	}
	if u.Flush {
		_ = c.Flush()
	}
}

func (r *producerRun) halt() {
	r.stopOnce.Do(func() { close(r.stop) })
	<-r.done
}

func (c *Client) stopProducers() {
	c.producerMu.Lock()
	runs := c.producers
	c.producers = nil
	c.producerMu.Unlock()
	for _, r := range runs {
		r.halt()
	}
}

func (e *engine) stopAllProducers() {
	e.producerMu.Lock()
	runs := e.producers
	e.producers = nil
	e.producerMu.Unlock()
	for _, r := range runs {
		r.halt()
	}
}
