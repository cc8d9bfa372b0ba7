package server

import (
	"sort"
	"sync"
	"time"

	"github.com/guiyumin/textube/internal/core/ai/transcriber"
	"github.com/guiyumin/textube/internal/core/pipeline"
)

// JobStatus is the API view of a job's lifecycle.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

// Job is a transcription job as reported by the API.
type Job struct {
	ID         string               `json:"id"`
	Source     string               `json:"source"`
	Selector   transcriber.Selector `json:"selector"`
	Status     JobStatus            `json:"status"`
	Progress   int                  `json:"progress"`
	Message    string               `json:"message,omitempty"`
	Transcript string               `json:"transcript,omitempty"`
	Error      string               `json:"error,omitempty"`
	ErrorKind  pipeline.Kind        `json:"error_kind,omitempty"`
	CreatedAt  time.Time            `json:"created_at"`
	UpdatedAt  time.Time            `json:"updated_at"`
}

func (j *Job) finished() bool {
	return j.Status != JobStatusRunning
}

// record is a job plus its event history for stream replay.
type record struct {
	job    Job
	handle *pipeline.Handle
	events []pipeline.Event
	// changed is closed and replaced whenever the record changes
	changed chan struct{}
}

// JobStore keeps the current job and recent history. It is the only
// consumer of each job's event stream.
type JobStore struct {
	mu            sync.RWMutex
	jobs          map[string]*record
	retention     time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
}

// NewJobStore creates a store that forgets finished jobs after retention.
func NewJobStore(retention time.Duration) *JobStore {
	if retention <= 0 {
		retention = time.Hour
	}
	return &JobStore{
		jobs:        make(map[string]*record),
		retention:   retention,
		stopCleanup: make(chan struct{}),
	}
}

// Start begins the cleanup routine (every 10 minutes).
func (js *JobStore) Start() {
	js.cleanupTicker = time.NewTicker(10 * time.Minute)
	go js.cleanupLoop()
}

// Stop ends the cleanup routine.
func (js *JobStore) Stop() {
	close(js.stopCleanup)
	if js.cleanupTicker != nil {
		js.cleanupTicker.Stop()
	}
}

func (js *JobStore) cleanupLoop() {
	for {
		select {
		case <-js.cleanupTicker.C:
			js.cleanupOldJobs()
		case <-js.stopCleanup:
			return
		}
	}
}

func (js *JobStore) cleanupOldJobs() {
	js.mu.Lock()
	defer js.mu.Unlock()

	cutoff := time.Now().Add(-js.retention)
	for id, r := range js.jobs {
		if r.job.finished() && r.job.UpdatedAt.Before(cutoff) {
			delete(js.jobs, id)
		}
	}
}

// Track registers a started job and consumes its events in the background.
func (js *JobStore) Track(h *pipeline.Handle) Job {
	now := time.Now()
	r := &record{
		job: Job{
			ID:        h.ID(),
			Source:    h.SourceRef(),
			Selector:  h.Selector(),
			Status:    JobStatusRunning,
			CreatedAt: now,
			UpdatedAt: now,
		},
		handle:  h,
		changed: make(chan struct{}),
	}

	js.mu.Lock()
	js.jobs[r.job.ID] = r
	js.mu.Unlock()

	go js.consume(r, h.Events())
	return r.job
}

func (js *JobStore) consume(r *record, events <-chan pipeline.Event) {
	for e := range events {
		js.mu.Lock()
		r.events = append(r.events, e)
		applyEvent(&r.job, e)
		close(r.changed)
		r.changed = make(chan struct{})
		js.mu.Unlock()
	}
}

func applyEvent(j *Job, e pipeline.Event) {
	j.UpdatedAt = e.Time
	switch e.Kind {
	case pipeline.EventProgress:
		j.Progress = e.Percent
		j.Message = e.Message
	case pipeline.EventFragments:
		j.Transcript = e.Text
	case pipeline.EventError:
		j.Error = e.Message
	case pipeline.EventDone:
		if e.Outcome == nil {
			return
		}
		switch e.Outcome.Status {
		case pipeline.StatusSucceeded:
			j.Status = JobStatusCompleted
		case pipeline.StatusCancelled:
			j.Status = JobStatusCancelled
		default:
			j.Status = JobStatusFailed
			j.ErrorKind = e.Outcome.Kind
			if j.Error == "" {
				j.Error = e.Outcome.Message
			}
		}
	}
}

// Get returns a snapshot of a job.
func (js *JobStore) Get(id string) (Job, bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()
	r, ok := js.jobs[id]
	if !ok {
		return Job{}, false
	}
	return r.job, true
}

// List returns all jobs, newest first.
func (js *JobStore) List() []Job {
	js.mu.RLock()
	jobs := make([]Job, 0, len(js.jobs))
	for _, r := range js.jobs {
		jobs = append(jobs, r.job)
	}
	js.mu.RUnlock()

	sort.Slice(jobs, func(i, k int) bool {
		return jobs[i].CreatedAt.After(jobs[k].CreatedAt)
	})
	return jobs
}

// Cancel asks a running job to stop. It reports whether the job exists.
func (js *JobStore) Cancel(id string) bool {
	js.mu.RLock()
	r, ok := js.jobs[id]
	js.mu.RUnlock()
	if !ok {
		return false
	}
	r.handle.Cancel()
	return true
}

// Remove deletes a finished job from history.
func (js *JobStore) Remove(id string) bool {
	js.mu.Lock()
	defer js.mu.Unlock()

	r, ok := js.jobs[id]
	if !ok || !r.job.finished() {
		return false
	}
	delete(js.jobs, id)
	return true
}

// ClearHistory removes all finished jobs.
func (js *JobStore) ClearHistory() int {
	js.mu.Lock()
	defer js.mu.Unlock()

	count := 0
	for id, r := range js.jobs {
		if r.job.finished() {
			delete(js.jobs, id)
			count++
		}
	}
	return count
}

// EventsAfter returns the events with Seq > after, whether the stream is
// complete, and a channel closed on the next change. ok is false for an
// unknown job.
func (js *JobStore) EventsAfter(id string, after uint64) (events []pipeline.Event, complete bool, changed <-chan struct{}, ok bool) {
	js.mu.RLock()
	defer js.mu.RUnlock()

	r, found := js.jobs[id]
	if !found {
		return nil, false, nil, false
	}
	for _, e := range r.events {
		if e.Seq > after {
			events = append(events, e)
		}
	}
	complete = len(r.events) > 0 && r.events[len(r.events)-1].Kind == pipeline.EventDone
	return events, complete, r.changed, true
}
