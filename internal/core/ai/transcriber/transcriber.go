// Package transcriber provides the speech recognition engines that turn a
// chunk of 16 kHz mono PCM audio into text.
package transcriber

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// SampleRate is the rate every engine expects its input at.
const SampleRate = 16000

var (
	// ErrUndecodable reports a chunk that is not mono 16-bit PCM WAV.
	ErrUndecodable = errors.New("chunk is not decodable")
	// ErrSampleRate reports a chunk at a rate the engine cannot consume.
	ErrSampleRate = errors.New("unsupported sample rate")
	// ErrUnavailable reports a backend not compiled into this build.
	ErrUnavailable = errors.New("engine not available in this build")
)

// Engine converts an audio chunk to text.
type Engine interface {
	// Name returns the engine name for logs and events.
	Name() string
	// SampleRate returns the input rate the engine requires.
	SampleRate() int
	// Transcribe returns the text spoken in the WAV file at chunkPath.
	Transcribe(ctx context.Context, chunkPath string) (string, error)
	// Close releases model resources.
	Close() error
}

// chunkReader streams a mono 16-bit chunk as float32 frames.
type chunkReader struct {
	file    *os.File
	decoder *wav.Decoder
	rate    int
	left    int64
}

// openChunk validates the chunk header and positions the reader at the
// first sample.
func openChunk(path string) (*chunkReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		f.Close()
		return nil, fmt.Errorf("%w: %s is not a WAV file", ErrUndecodable, path)
	}
	if d.WavAudioFormat != 1 || d.NumChans != 1 || d.BitDepth != 16 {
		f.Close()
		return nil, fmt.Errorf("%w: want mono 16-bit PCM, got format %d, %d ch, %d-bit",
			ErrUndecodable, d.WavAudioFormat, d.NumChans, d.BitDepth)
	}
	if err := d.FwdToPCM(); err != nil {
		f.Close()
		return nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}

	return &chunkReader{
		file:    f,
		decoder: d,
		rate:    int(d.SampleRate),
		left:    int64(d.PCMSize) / 2,
	}, nil
}

// Next returns up to size samples scaled to [-1, 1), or io.EOF.
func (r *chunkReader) Next(size int) ([]float32, error) {
	if r.left <= 0 {
		return nil, io.EOF
	}
	n := int(min(int64(size), r.left))
	buf := &audio.IntBuffer{Data: make([]int, n)}
	got, err := r.decoder.PCMBuffer(buf)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	if got == 0 {
		return nil, fmt.Errorf("%w: truncated PCM data", ErrUndecodable)
	}
	r.left -= int64(got)

	const maxInt16 = 32768.0
	samples := make([]float32, got)
	for i := 0; i < got; i++ {
		samples[i] = float32(buf.Data[i]) / maxInt16
	}
	return samples, nil
}

// ReadAll returns every remaining sample.
func (r *chunkReader) ReadAll() ([]float32, error) {
	all := make([]float32, 0, r.left)
	for {
		s, err := r.Next(32 * 1024)
		if err == io.EOF {
			return all, nil
		}
		if err != nil {
			return nil, err
		}
		all = append(all, s...)
	}
}

func (r *chunkReader) Close() error {
	return r.file.Close()
}

// readChunkSamples loads a whole chunk, checking it matches rate.
func readChunkSamples(path string, rate int) ([]float32, error) {
	r, err := openChunk(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if r.rate != rate {
		return nil, fmt.Errorf("%w: chunk is %d Hz, want %d Hz", ErrSampleRate, r.rate, rate)
	}
	return r.ReadAll()
}
