package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/guiyumin/textube/internal/core/acquire"
	"github.com/guiyumin/textube/internal/core/ai/transcriber"
	"github.com/guiyumin/textube/internal/core/segment"
	"github.com/rs/zerolog"
)

type fakeAcquirer struct {
	dir string
	err error
	// block waits for ctx to end before returning
	block bool

	mu       sync.Mutex
	released int
}

func (a *fakeAcquirer) Acquire(ctx context.Context, runID, ref string) (*acquire.Asset, error) {
	if a.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if a.err != nil {
		return nil, a.err
	}
	path := filepath.Join(a.dir, runID+".asset.wav")
	if err := os.WriteFile(path, []byte("asset"), 0644); err != nil {
		return nil, err
	}
	return &acquire.Asset{
		Path:       path,
		SampleRate: transcriber.SampleRate,
		Channels:   1,
		BitDepth:   16,
		NumSamples: 16000 * 65,
		Duration:   65 * time.Second,
	}, nil
}

func (a *fakeAcquirer) Release(asset *acquire.Asset) error {
	a.mu.Lock()
	a.released++
	a.mu.Unlock()
	if err := os.Remove(asset.Path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

type fakeSegmenter struct {
	n   int
	err error
}

func (s *fakeSegmenter) Segment(ctx context.Context, asset *acquire.Asset, runID string) ([]segment.Chunk, error) {
	if s.err != nil {
		return nil, s.err
	}
	dir := filepath.Dir(asset.Path)
	chunks := make([]segment.Chunk, s.n)
	for i := range chunks {
		path := segment.ChunkPath(dir, runID, i)
		if err := os.WriteFile(path, []byte(fmt.Sprintf("f%d", i)), 0644); err != nil {
			return nil, err
		}
		chunks[i] = segment.Chunk{Index: i, Path: path, SampleRate: asset.SampleRate}
	}
	return chunks, nil
}

// fakeEngine returns the content of each chunk file as its fragment.
type fakeEngine struct {
	rate int
	// failAt makes the chunk with this 0-based position fail; -1 disables
	failAt int
	// onChunk runs before each chunk is transcribed
	onChunk func(i int)

	mu    sync.Mutex
	calls int
}

func (e *fakeEngine) Name() string    { return "fake" }
func (e *fakeEngine) SampleRate() int { return e.rate }
func (e *fakeEngine) Close() error    { return nil }

func (e *fakeEngine) Transcribe(ctx context.Context, path string) (string, error) {
	e.mu.Lock()
	i := e.calls
	e.calls++
	e.mu.Unlock()

	if e.onChunk != nil {
		e.onChunk(i)
	}
	if i == e.failAt {
		return "", errors.New("decoder exploded")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

type fakeProvider struct {
	engine transcriber.Engine
	err    error
}

func (p *fakeProvider) Engine(sel transcriber.Selector) (transcriber.Engine, error) {
	if p.err != nil {
		return nil, p.err
	}
	return p.engine, nil
}

type fixture struct {
	dir      string
	acquirer *fakeAcquirer
	segm     *fakeSegmenter
	engine   *fakeEngine
	provider *fakeProvider
	orch     *Orchestrator
}

func newFixture(t *testing.T, chunks int) *fixture {
	t.Helper()
	dir := t.TempDir()
	f := &fixture{
		dir:      dir,
		acquirer: &fakeAcquirer{dir: dir},
		segm:     &fakeSegmenter{n: chunks},
		engine:   &fakeEngine{rate: transcriber.SampleRate, failAt: -1},
	}
	f.provider = &fakeProvider{engine: f.engine}
	f.orch = New(f.acquirer, f.segm, f.provider, zerolog.Nop())
	ids := 0
	f.orch.newID = func() string {
		ids++
		return fmt.Sprintf("run%d", ids)
	}
	return f
}

// collect drains a job's events until the stream closes.
func collect(t *testing.T, h *Handle) []Event {
	t.Helper()
	var events []Event
	timeout := time.After(10 * time.Second)
	for {
		select {
		case e, ok := <-h.Events():
			if !ok {
				return events
			}
			events = append(events, e)
		case <-timeout:
			t.Fatalf("timed out waiting for events, got %v", events)
		}
	}
}

func kindsOf(events []Event) []EventKind {
	kinds := make([]EventKind, len(events))
	for i, e := range events {
		kinds[i] = e.Kind
	}
	return kinds
}

func countKind(events []Event, kind EventKind) int {
	n := 0
	for _, e := range events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

func dirEntries(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
