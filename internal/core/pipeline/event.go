package pipeline

import (
	"context"
	"fmt"
	"time"
)

// EventKind identifies what an Event carries.
type EventKind int

const (
	EventProgress EventKind = iota
	EventFragments
	EventError
	EventDone
)

var eventKindNames = [...]string{
	EventProgress:  "progress",
	EventFragments: "result",
	EventError:     "error",
	EventDone:      "done",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// MarshalText encodes the kind by name.
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *EventKind) UnmarshalText(text []byte) error {
	for i, name := range eventKindNames {
		if name == string(text) {
			*k = EventKind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// Status is how a job ended.
type Status string

const (
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusCancelled Status = "cancelled"
)

// Outcome is the final result of a job.
type Outcome struct {
	JobID      string        `json:"job_id"`
	Status     Status        `json:"status"`
	Transcript string        `json:"transcript,omitempty"`
	Kind       Kind          `json:"kind,omitempty"`
	Message    string        `json:"message,omitempty"`
	Elapsed    time.Duration `json:"elapsed"`
}

// Event is one notification from a running job. Seq increases by one per
// event of a job, starting at 1.
type Event struct {
	Seq     uint64    `json:"seq"`
	JobID   string    `json:"job_id"`
	Kind    EventKind `json:"kind"`
	Time    time.Time `json:"time"`
	Percent int       `json:"percent,omitempty"`
	Message string    `json:"message,omitempty"`
	Text    string    `json:"text,omitempty"`
	Err     *Error    `json:"-"`
	Outcome *Outcome  `json:"outcome,omitempty"`
}

func (e Event) String() string {
	switch e.Kind {
	case EventProgress:
		return fmt.Sprintf("#%d progress %d%% %s", e.Seq, e.Percent, e.Message)
	case EventFragments:
		return fmt.Sprintf("#%d result (%d bytes)", e.Seq, len(e.Text))
	case EventError:
		return fmt.Sprintf("#%d error %s", e.Seq, e.Message)
	case EventDone:
		status := Status("")
		if e.Outcome != nil {
			status = e.Outcome.Status
		}
		return fmt.Sprintf("#%d done %s", e.Seq, status)
	}
	return fmt.Sprintf("#%d %s", e.Seq, e.Kind)
}

// EventSink observes a job. Dispatch calls it from a single goroutine, one
// event at a time, in job order.
type EventSink interface {
	OnProgress(message string, percent int)
	OnFragmentsAggregated(text string)
	OnError(message string)
	OnDone(outcome Outcome)
}

// SinkFuncs adapts functions to EventSink. Nil fields are skipped.
type SinkFuncs struct {
	Progress  func(message string, percent int)
	Fragments func(text string)
	Error     func(message string)
	Done      func(outcome Outcome)
}

func (s SinkFuncs) OnProgress(message string, percent int) {
	if s.Progress != nil {
		s.Progress(message, percent)
	}
}

func (s SinkFuncs) OnFragmentsAggregated(text string) {
	if s.Fragments != nil {
		s.Fragments(text)
	}
}

func (s SinkFuncs) OnError(message string) {
	if s.Error != nil {
		s.Error(message)
	}
}

func (s SinkFuncs) OnDone(outcome Outcome) {
	if s.Done != nil {
		s.Done(outcome)
	}
}

// Deliver invokes the sink method matching e.
func Deliver(e Event, sink EventSink) {
	switch e.Kind {
	case EventProgress:
		sink.OnProgress(e.Message, e.Percent)
	case EventFragments:
		sink.OnFragmentsAggregated(e.Text)
	case EventError:
		sink.OnError(e.Message)
	case EventDone:
		if e.Outcome != nil {
			sink.OnDone(*e.Outcome)
		}
	}
}

// Dispatch drains events into sink on the calling goroutine until the
// channel closes after the done event, or ctx ends.
func Dispatch(ctx context.Context, events <-chan Event, sink EventSink) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case e, ok := <-events:
			if !ok {
				return nil
			}
			Deliver(e, sink)
		}
	}
}
