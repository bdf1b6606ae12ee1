/*
Package notify fans out state-change events to external channels.

PURPOSE:
  The core calls the dispatcher after every request state change and for
  coverage escalations. Delivery is best-effort, at-least-once and
  asynchronous: the caller never waits for, and is never failed by, a
  notification. Sink failures are logged and swallowed at this boundary.

SEE ALSO:
  - workflow/: dispatches after each committed transition
*/
package notify

import (
	"sync"

	"go.uber.org/zap"
)

// =============================================================================
// EVENTS
// =============================================================================

type Event string

const (
	EventSubmitted            Event = "request.submitted"
	EventIntermediateApproved Event = "request.intermediate_approved"
	EventApproved             Event = "request.approved"
	EventRejected             Event = "request.rejected"
	EventCancelled            Event = "request.cancelled"
	EventSubstituteAssigned   Event = "substitute.assigned"
	EventNoSubstitute         Event = "substitute.unavailable"
)

type Payload map[string]string

// Dispatcher is the boundary the core depends on. Implementations must
// return promptly; delivery happens off the caller's path.
type Dispatcher interface {
	Dispatch(event Event, payload Payload)
}

// Sink delivers one event to one channel (mail relay, chat webhook, ...).
type Sink interface {
	Deliver(event Event, payload Payload) error
}

// =============================================================================
// ASYNC DISPATCHER - Production wiring
// =============================================================================

// Async fans each event out to every sink on its own goroutine. Failures
// are logged, never propagated.
type Async struct {
	log   *zap.Logger
	sinks []Sink
	wg    sync.WaitGroup
}

func NewAsync(log *zap.Logger, sinks ...Sink) *Async {
	return &Async{log: log, sinks: sinks}
}

func (a *Async) Dispatch(event Event, payload Payload) {
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		for _, sink := range a.sinks {
			if err := sink.Deliver(event, payload); err != nil {
				a.log.Warn("notification delivery failed",
					zap.String("event", string(event)),
					zap.Error(err))
			}
		}
	}()
}

// Drain blocks until every in-flight dispatch has finished. Used on
// shutdown and in tests.
func (a *Async) Drain() {
	a.wg.Wait()
}

// =============================================================================
// LOG SINK - Default channel when no external channel is configured
// =============================================================================

type LogSink struct {
	Log *zap.Logger
}

func (s *LogSink) Deliver(event Event, payload Payload) error {
	fields := make([]zap.Field, 0, len(payload)+1)
	fields = append(fields, zap.String("event", string(event)))
	for k, v := range payload {
		fields = append(fields, zap.String(k, v))
	}
	s.Log.Info("notification", fields...)
	return nil
}

// =============================================================================
// CAPTURE DISPATCHER - Synchronous, for tests
// =============================================================================

type Record struct {
	Event   Event
	Payload Payload
}

// Capture records every dispatched event in order.
type Capture struct {
	mu     sync.Mutex
	events []Record
}

func NewCapture() *Capture {
	return &Capture{}
}

func (c *Capture) Dispatch(event Event, payload Payload) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, Record{Event: event, Payload: payload})
}

func (c *Capture) Events() []Record {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Record, len(c.events))
	copy(out, c.events)
	return out
}

func (c *Capture) Count(event Event) int {
	n := 0
	for _, r := range c.Events() {
		if r.Event == event {
			n++
		}
	}
	return n
}
