package transcriber

import (
	"context"
	"fmt"
	"io"
	"strings"
)

// StreamFrameSize is the number of samples fed to the recognizer per call.
const StreamFrameSize = 4000

// StreamRecognizer holds decoding state for one chunk.
type StreamRecognizer interface {
	// AcceptWaveform feeds samples and reports whether an utterance
	// endpoint was reached.
	AcceptWaveform(samples []float32) bool
	// Result returns the text of the utterance that just ended and resets
	// the utterance state.
	Result() string
	// FinalResult flushes remaining audio and returns its text.
	FinalResult() string
	Close()
}

// StreamModel creates a fresh recognizer per chunk.
type StreamModel interface {
	NewStream() (StreamRecognizer, error)
	Close() error
}

// StreamingEngine feeds a chunk to an incremental recognizer frame by
// frame and joins the utterances it reports.
type StreamingEngine struct {
	model     StreamModel
	frameSize int
}

// NewStreamingEngine wraps model.
func NewStreamingEngine(model StreamModel) *StreamingEngine {
	return &StreamingEngine{model: model, frameSize: StreamFrameSize}
}

func (e *StreamingEngine) Name() string {
	return "streaming"
}

func (e *StreamingEngine) SampleRate() int {
	return SampleRate
}

// Transcribe runs the recognizer over the chunk. Recognizer state never
// carries over between chunks.
func (e *StreamingEngine) Transcribe(ctx context.Context, chunkPath string) (string, error) {
	r, err := openChunk(chunkPath)
	if err != nil {
		return "", err
	}
	defer r.Close()

	if r.rate != SampleRate {
		return "", fmt.Errorf("%w: chunk is %d Hz, streaming engine needs %d Hz", ErrSampleRate, r.rate, SampleRate)
	}

	stream, err := e.model.NewStream()
	if err != nil {
		return "", fmt.Errorf("failed to create stream: %w", err)
	}
	defer stream.Close()

	var parts []string
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		frame, err := r.Next(e.frameSize)
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
		if stream.AcceptWaveform(frame) {
			parts = append(parts, stream.Result())
		}
	}
	parts = append(parts, stream.FinalResult())

	return joinNonEmpty(parts), nil
}

func (e *StreamingEngine) Close() error {
	return e.model.Close()
}

func joinNonEmpty(parts []string) string {
	kept := parts[:0:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, " ")
}
