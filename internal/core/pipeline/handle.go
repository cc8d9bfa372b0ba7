package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/guiyumin/textube/internal/core/ai/transcriber"
)

// Handle is the caller's view of a running job.
type Handle struct {
	id        string
	sourceRef string
	selector  transcriber.Selector
	started   time.Time

	queue  *eventQueue
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	outcome *Outcome
}

// ID returns the job's run handle.
func (h *Handle) ID() string {
	return h.id
}

// SourceRef returns the source the job transcribes.
func (h *Handle) SourceRef() string {
	return h.sourceRef
}

// Selector returns the engine selection of the job.
func (h *Handle) Selector() transcriber.Selector {
	return h.selector
}

// Started returns when the job was accepted.
func (h *Handle) Started() time.Time {
	return h.started
}

// Events returns the job's event stream. It is closed after the done
// event. Events are buffered until read. If Wait returns before anyone
// called Events, the stream is dropped and Events returns a closed channel.
func (h *Handle) Events() <-chan Event {
	h.queue.watch()
	return h.queue.out
}

// Cancel asks the job to stop. The job ends with StatusCancelled unless it
// already finished.
func (h *Handle) Cancel() {
	h.cancel()
}

// Done is closed when the job has finished and released its files.
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Outcome returns the final outcome once the job is done.
func (h *Handle) Outcome() (Outcome, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.outcome == nil {
		return Outcome{}, false
	}
	return *h.outcome, true
}

// Wait blocks until the job finishes or ctx ends.
func (h *Handle) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-h.done:
		h.queue.abandon()
		out, _ := h.Outcome()
		return out, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

func (h *Handle) finish(out Outcome) {
	h.mu.Lock()
	h.outcome = &out
	h.mu.Unlock()
}
