// Package pipeline runs transcription jobs: acquire the audio, cut it into
// chunks, recognize each chunk and join the results, reporting progress to
// an observer through an ordered event stream.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/guiyumin/textube/internal/core/acquire"
	"github.com/guiyumin/textube/internal/core/ai/transcriber"
	"github.com/guiyumin/textube/internal/core/segment"
	"github.com/rs/zerolog"
)

// Acquirer fetches and normalizes a source into a local asset.
type Acquirer interface {
	Acquire(ctx context.Context, runID, sourceRef string) (*acquire.Asset, error)
	Release(asset *acquire.Asset) error
}

// Segmenter cuts an asset into chunk files.
type Segmenter interface {
	Segment(ctx context.Context, asset *acquire.Asset, runID string) ([]segment.Chunk, error)
}

// EngineProvider returns the recognition engine for a selector.
type EngineProvider interface {
	Engine(sel transcriber.Selector) (transcriber.Engine, error)
}

// Orchestrator runs at most one job at a time.
type Orchestrator struct {
	acquirer  Acquirer
	segmenter Segmenter
	engines   EngineProvider
	log       zerolog.Logger

	// replaced in tests
	newID  func() string
	remove func(path string) error

	mu     sync.Mutex
	state  State
	active *Handle
}

// New creates an idle orchestrator.
func New(acquirer Acquirer, segmenter Segmenter, engines EngineProvider, log zerolog.Logger) *Orchestrator {
	return &Orchestrator{
		acquirer:  acquirer,
		segmenter: segmenter,
		engines:   engines,
		log:       log,
		newID:     uuid.NewString,
		remove:    os.Remove,
		state:     StateIdle,
	}
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Active returns the running job, or nil.
func (o *Orchestrator) Active() *Handle {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active
}

// ValidateSource checks that ref looks like something a fetcher could use.
func ValidateSource(ref string) error {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return errors.New("source reference is empty")
	}
	u, err := url.Parse(ref)
	if err != nil {
		return fmt.Errorf("malformed source reference: %w", err)
	}
	if u.Scheme == "" {
		return fmt.Errorf("source reference %q has no scheme", ref)
	}
	return nil
}

// StartJob validates the request and starts a job in the background.
// It fails with KindInvalidInput for a bad source or selector and with
// KindBusy while another job is running; neither emits any event.
func (o *Orchestrator) StartJob(ctx context.Context, sourceRef string, sel transcriber.Selector) (*Handle, error) {
	sourceRef = strings.TrimSpace(sourceRef)
	if err := ValidateSource(sourceRef); err != nil {
		return nil, newError(KindInvalidInput, StageStart, err)
	}
	sel, err := sel.Normalize()
	if err != nil {
		return nil, newError(KindInvalidInput, StageStart, err)
	}

	o.mu.Lock()
	if o.state != StateIdle {
		activeID := ""
		if o.active != nil {
			activeID = o.active.id
		}
		o.mu.Unlock()
		return nil, newError(KindBusy, StageStart, fmt.Errorf("job %s is running", activeID))
	}

	jobCtx, cancel := context.WithCancel(ctx)
	id := o.newID()
	h := &Handle{
		id:        id,
		sourceRef: sourceRef,
		selector:  sel,
		started:   time.Now(),
		queue:     newEventQueue(id),
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	o.state = StateAcquiring
	o.active = h
	o.mu.Unlock()

	o.log.Info().
		Str("job", id).
		Str("source", sourceRef).
		Str("engine", sel.String()).
		Msg("job started")

	go o.run(jobCtx, h)
	return h, nil
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// job is the mutable state of one run.
type job struct {
	h        *Handle
	log      zerolog.Logger
	progress progressTracker
	asset    *acquire.Asset
	chunks   []segment.Chunk
	// consumed counts chunks whose files were already removed
	consumed int
}

func (o *Orchestrator) emitProgress(j *job, percent int, message string) {
	percent = j.progress.advance(percent)
	j.h.queue.push(Event{Kind: EventProgress, Percent: percent, Message: message})
	j.log.Debug().Int("percent", percent).Msg(message)
}

func (o *Orchestrator) run(ctx context.Context, h *Handle) {
	j := &job{h: h, log: o.log.With().Str("job", h.id).Logger()}
	defer h.cancel()

	transcript, jerr := o.execute(ctx, j)

	out := Outcome{JobID: h.id, Elapsed: time.Since(h.started)}
	switch {
	case jerr != nil && ctx.Err() != nil:
		o.setState(StateCancelled)
		out.Status = StatusCancelled
		j.log.Info().Msg("job cancelled")
		o.cleanup(j)

	case jerr != nil:
		o.setState(StateFailed)
		out.Status = StatusFailed
		out.Kind = jerr.Kind
		out.Message = jerr.Error()
		j.log.Error().Err(jerr).Str("kind", string(jerr.Kind)).Msg("job failed")
		h.queue.push(Event{Kind: EventError, Message: jerr.Error(), Err: jerr})
		o.cleanup(j)

	default:
		h.queue.push(Event{Kind: EventFragments, Text: transcript})
		o.emitProgress(j, PercentComplete, MsgComplete)
		o.setState(StateCompleted)
		out.Status = StatusSucceeded
		out.Transcript = transcript
		o.cleanup(j)
		j.log.Info().Dur("elapsed", out.Elapsed).Int("chunks", len(j.chunks)).Msg("job completed")
	}

	h.finish(out)

	o.mu.Lock()
	o.state = StateIdle
	o.active = nil
	o.mu.Unlock()

	h.queue.push(Event{Kind: EventDone, Outcome: &out})
	h.queue.close()
	close(h.done)
}

// execute runs the stages in order and returns the transcript.
func (o *Orchestrator) execute(ctx context.Context, j *job) (string, *Error) {
	h := j.h

	// Acquisition
	o.emitProgress(j, PercentAcquireStart, MsgAcquireStart)
	engine, err := o.engines.Engine(h.selector)
	if err != nil {
		return "", newError(KindRecognition, StageEngine, err)
	}
	asset, err := o.acquirer.Acquire(ctx, h.id, h.sourceRef)
	if err != nil {
		return "", newError(KindAcquisition, StageAcquisition, err)
	}
	j.asset = asset
	o.emitProgress(j, PercentAcquireDone, MsgAcquireDone)
	if err := ctx.Err(); err != nil {
		return "", newError(KindAcquisition, StageAcquisition, err)
	}

	// Segmentation
	o.setState(StateSegmenting)
	o.emitProgress(j, PercentSegmentStart, MsgSegmentStart)
	if asset.SampleRate != engine.SampleRate() {
		return "", newError(KindFormat, StageSegment,
			fmt.Errorf("asset is %d Hz, %s engine needs %d Hz", asset.SampleRate, engine.Name(), engine.SampleRate()))
	}
	chunks, err := o.segmenter.Segment(ctx, asset, h.id)
	if err != nil {
		kind := KindIO
		if errors.Is(err, segment.ErrFormat) {
			kind = KindFormat
		}
		return "", newError(kind, StageSegment, err)
	}
	j.chunks = chunks
	o.emitProgress(j, PercentSegmentDone, MsgSegmentDone)
	j.log.Info().Int("chunks", len(chunks)).Dur("duration", asset.Duration).Msg("audio segmented")

	// Recognition
	o.setState(StateRecognizing)
	n := len(chunks)
	fragments := make([]string, 0, n)
	for i, c := range chunks {
		if err := ctx.Err(); err != nil {
			return "", newError(KindRecognition, StageRecognition, err)
		}
		o.emitProgress(j, ChunkPercent(i+1, n), ChunkMessage(i+1, n))

		start := time.Now()
		text, err := engine.Transcribe(ctx, c.Path)
		if err != nil {
			return "", newError(KindRecognition, StageRecognition, fmt.Errorf("chunk %d of %d: %w", i+1, n, err))
		}
		fragments = append(fragments, text)
		j.log.Debug().
			Int("chunk", i).
			Dur("elapsed", time.Since(start)).
			Int("chars", len(text)).
			Msg("chunk recognized")

		o.removeFile(j, c.Path)
		j.consumed = i + 1
	}
	if err := ctx.Err(); err != nil {
		return "", newError(KindRecognition, StageRecognition, err)
	}

	// Aggregation
	o.setState(StateAggregating)
	o.emitProgress(j, PercentAggregate, MsgAggregate)
	return Aggregate(fragments), nil
}

// Aggregate joins fragments in order, each followed by a newline.
func Aggregate(fragments []string) string {
	var b strings.Builder
	for _, f := range fragments {
		b.WriteString(f)
		b.WriteByte('\n')
	}
	return b.String()
}

// cleanup removes the asset and every chunk not yet consumed. Failures are
// logged only.
func (o *Orchestrator) cleanup(j *job) {
	for _, c := range j.chunks[j.consumed:] {
		o.removeFile(j, c.Path)
	}
	j.consumed = len(j.chunks)

	if j.asset != nil {
		if err := o.acquirer.Release(j.asset); err != nil {
			j.log.Warn().Err(newError(KindIO, StageCleanup, err)).Msg("failed to release asset")
		}
		j.asset = nil
	}
}

func (o *Orchestrator) removeFile(j *job, path string) {
	if err := o.remove(path); err != nil && !os.IsNotExist(err) {
		j.log.Warn().Err(newError(KindIO, StageCleanup, err)).Str("path", path).Msg("failed to remove chunk")
	}
}
