//go:build cgo

package transcriber

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"
)

// whisperModel implements BatchModel using the whisper.cpp Go bindings.
type whisperModel struct {
	model    whisper.Model
	language string
	threads  int
	// whisper contexts share the model weights but not their compute
	// buffers; one at a time keeps memory flat
	mu sync.Mutex
}

// newWhisperModel loads a ggml model file.
func newWhisperModel(modelPath, language string, threads int) (*whisperModel, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("whisper model not found: %s", modelPath)
	}

	model, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load whisper model: %w", err)
	}

	return &whisperModel{model: model, language: language, threads: threads}, nil
}

// Transcribe converts a 16 kHz mono WAV to text.
func (w *whisperModel) Transcribe(ctx context.Context, wavPath string) (string, error) {
	samples, err := readChunkSamples(wavPath, SampleRate)
	if err != nil {
		return "", err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	wctx, err := w.model.NewContext()
	if err != nil {
		return "", fmt.Errorf("failed to create whisper context: %w", err)
	}

	if w.language != "" && w.language != "auto" {
		if err := wctx.SetLanguage(w.language); err != nil {
			return "", fmt.Errorf("failed to set language: %w", err)
		}
	}
	if w.threads > 0 {
		wctx.SetThreads(uint(w.threads))
	}

	// Process audio (callbacks: encoder begin, segment, progress)
	if err := wctx.Process(samples, nil, nil, nil); err != nil {
		return "", fmt.Errorf("failed to process audio: %w", err)
	}

	var text strings.Builder
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		segment, err := wctx.NextSegment()
		if err != nil {
			break
		}
		text.WriteString(segment.Text)
		text.WriteString(" ")
	}

	return cleanTranscriptText(text.String()), nil
}

// Close releases the model resources.
func (w *whisperModel) Close() error {
	if w.model != nil {
		return w.model.Close()
	}
	return nil
}
