package transcriber

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
)

var errEngineClosed = errors.New("engine closed")

// BatchModel transcribes one whole WAV file per call. Calls are
// independent of each other.
type BatchModel interface {
	Transcribe(ctx context.Context, wavPath string) (string, error)
	Close() error
}

// ModelLoader loads a batch model.
type ModelLoader func() (BatchModel, error)

// BatchEngine transcribes each chunk independently with a model that is
// loaded on first use and kept for the life of the engine.
type BatchEngine struct {
	name string
	tier Tier
	load ModelLoader

	once sync.Once

	// mu is held for reading across a model call, so Close waits for
	// in-flight transcriptions.
	mu      sync.RWMutex
	model   BatchModel
	loadErr error
	closed  bool
}

// NewBatchEngine creates an engine that loads its model lazily.
func NewBatchEngine(name string, tier Tier, load ModelLoader) *BatchEngine {
	return &BatchEngine{name: name, tier: tier, load: load}
}

func (e *BatchEngine) Name() string {
	return e.name
}

// Tier returns the model tier.
func (e *BatchEngine) Tier() Tier {
	return e.tier
}

func (e *BatchEngine) SampleRate() int {
	return SampleRate
}

// Loaded reports whether the model has been loaded.
func (e *BatchEngine) Loaded() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model != nil
}

func (e *BatchEngine) loadOnce() {
	e.once.Do(func() {
		e.mu.RLock()
		closed := e.closed
		e.mu.RUnlock()
		if closed {
			return
		}

		model, err := e.load()

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.closed {
			if model != nil {
				model.Close()
			}
			return
		}
		e.model, e.loadErr = model, err
	})
}

// Transcribe checks the chunk layout and hands it to the model.
func (e *BatchEngine) Transcribe(ctx context.Context, chunkPath string) (string, error) {
	r, err := openChunk(chunkPath)
	if err != nil {
		return "", err
	}
	rate := r.rate
	r.Close()
	if rate != SampleRate {
		return "", fmt.Errorf("%w: chunk is %d Hz, want %d Hz", ErrSampleRate, rate, SampleRate)
	}

	e.loadOnce()

	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.closed {
		return "", errEngineClosed
	}
	if e.model == nil {
		return "", fmt.Errorf("failed to load %s model: %w", e.tier, e.loadErr)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	text, err := e.model.Transcribe(ctx, chunkPath)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Close releases the model if it was loaded. It waits for running
// transcriptions, and later calls to Transcribe fail.
func (e *BatchEngine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	if e.model == nil {
		return nil
	}
	err := e.model.Close()
	e.model = nil
	return err
}
