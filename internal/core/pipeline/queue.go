package pipeline

import (
	"sync"
	"time"
)

// eventQueue buffers a job's events without bound and forwards them in
// order to a single channel, so the job never waits on its observer.
type eventQueue struct {
	jobID string

	mu     sync.Mutex
	seq    uint64
	items  []Event
	closed  bool
	watched bool
	wake    chan struct{}

	// quit is closed when the stream is abandoned unread.
	quit     chan struct{}
	quitOnce sync.Once

	out chan Event
}

func newEventQueue(jobID string) *eventQueue {
	q := &eventQueue{
		jobID: jobID,
		wake:  make(chan struct{}, 1),
		quit:  make(chan struct{}),
		out:   make(chan Event),
	}
	go q.forward()
	return q
}

// push stamps e with the next sequence number and enqueues it.
func (q *eventQueue) push(e Event) Event {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return e
	}
	q.seq++
	e.Seq = q.seq
	e.JobID = q.jobID
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	q.items = append(q.items, e)
	q.mu.Unlock()

	q.signal()
	return e
}

// close ends the stream once buffered events are delivered.
func (q *eventQueue) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.signal()
}

// watch marks the stream as read by someone, which keeps abandon from
// dropping it.
func (q *eventQueue) watch() {
	q.mu.Lock()
	q.watched = true
	q.mu.Unlock()
}

// abandon drops undelivered events and closes the stream if nobody asked
// for it. It reports whether the stream was dropped.
func (q *eventQueue) abandon() bool {
	q.mu.Lock()
	if q.watched {
		q.mu.Unlock()
		return false
	}
	q.items = nil
	q.closed = true
	q.mu.Unlock()

	q.quitOnce.Do(func() { close(q.quit) })
	return true
}

func (q *eventQueue) signal() {
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

func (q *eventQueue) forward() {
	for {
		q.mu.Lock()
		if len(q.items) == 0 {
			closed := q.closed
			q.mu.Unlock()
			if closed {
				close(q.out)
				return
			}
			select {
			case <-q.wake:
			case <-q.quit:
			}
			continue
		}
		e := q.items[0]
		q.items[0] = Event{}
		q.items = q.items[1:]
		q.mu.Unlock()

		select {
		case q.out <- e:
		case <-q.quit:
			close(q.out)
			return
		}
	}
}
