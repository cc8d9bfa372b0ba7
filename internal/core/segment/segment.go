// Package segment splits a normalized asset into fixed-duration WAV chunks.
package segment

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/guiyumin/textube/internal/core/acquire"
	"github.com/guiyumin/textube/internal/core/config"
	"github.com/rs/zerolog"
)

// ErrFormat reports an asset that is not non-empty mono 16-bit PCM.
var ErrFormat = errors.New("unsupported audio format")

// Chunk is one contiguous slice of an asset, stored in its own WAV file.
type Chunk struct {
	Index       int
	Path        string
	StartSample int64
	NumSamples  int64
	SampleRate  int
	Duration    time.Duration
}

// Segmenter cuts assets into chunks of a fixed duration.
type Segmenter struct {
	chunkMs int
	log     zerolog.Logger
}

// New creates a Segmenter. A non-positive chunkMs selects the default
// of 30 seconds.
func New(chunkMs int, log zerolog.Logger) *Segmenter {
	if chunkMs <= 0 {
		chunkMs = config.DefaultChunkDurationMs
	}
	return &Segmenter{chunkMs: chunkMs, log: log}
}

// ChunkDurationMs returns the configured chunk length.
func (s *Segmenter) ChunkDurationMs() int {
	return s.chunkMs
}

// ChunkPath returns the file path of chunk i for a run.
func ChunkPath(dir, runID string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("%s.chunk_%d.wav", runID, i))
}

// ChunkCount returns how many chunks total samples produce.
func ChunkCount(total, perChunk int64) int64 {
	if total <= 0 || perChunk <= 0 {
		return 0
	}
	return (total + perChunk - 1) / perChunk
}

// Segment writes the asset's samples into consecutive chunk files next to
// the asset and returns them in order. The last chunk holds the remainder.
// Every call writes new files; on error the files written so far are
// removed.
func (s *Segmenter) Segment(ctx context.Context, asset *acquire.Asset, runID string) (chunks []Chunk, err error) {
	f, err := os.Open(asset.Path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s: not a WAV file: %w", asset.Path, ErrFormat)
	}
	switch {
	case d.WavAudioFormat != 1:
		return nil, fmt.Errorf("encoding %d is not PCM: %w", d.WavAudioFormat, ErrFormat)
	case d.NumChans != 1:
		return nil, fmt.Errorf("%d channels, want mono: %w", d.NumChans, ErrFormat)
	case d.BitDepth != 16:
		return nil, fmt.Errorf("%d-bit samples, want 16-bit: %w", d.BitDepth, ErrFormat)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("locating PCM data: %v: %w", err, ErrFormat)
	}

	rate := int(d.SampleRate)
	total := int64(d.PCMSize) / 2
	if total == 0 {
		return nil, fmt.Errorf("empty asset: %w", ErrFormat)
	}
	perChunk := int64(rate) * int64(s.chunkMs) / 1000
	if perChunk <= 0 {
		return nil, fmt.Errorf("chunk of %d ms at %d Hz holds no samples: %w", s.chunkMs, rate, ErrFormat)
	}

	defer func() {
		if err != nil {
			if rerr := Release(chunks); rerr != nil {
				s.log.Warn().Err(rerr).Msg("failed to remove partial chunks")
			}
			chunks = nil
		}
	}()

	dir := filepath.Dir(asset.Path)
	count := ChunkCount(total, perChunk)
	s.log.Debug().
		Int64("samples", total).
		Int64("per_chunk", perChunk).
		Int64("chunks", count).
		Msg("segmenting")

	format := &audio.Format{NumChannels: 1, SampleRate: rate}
	var start int64
	for i := 0; int64(i) < count; i++ {
		if err := ctx.Err(); err != nil {
			return chunks, err
		}

		n := min(perChunk, total-start)
		buf := &audio.IntBuffer{Data: make([]int, n), Format: format, SourceBitDepth: 16}
		if err := readFull(d, buf); err != nil {
			return chunks, fmt.Errorf("reading chunk %d: %v: %w", i, err, ErrFormat)
		}

		c := Chunk{
			Index:       i,
			Path:        ChunkPath(dir, runID, i),
			StartSample: start,
			NumSamples:  n,
			SampleRate:  rate,
			Duration:    time.Duration(n) * time.Second / time.Duration(rate),
		}
		if err := writeChunk(c.Path, buf, rate); err != nil {
			os.Remove(c.Path)
			return chunks, fmt.Errorf("writing chunk %d: %w", i, err)
		}
		chunks = append(chunks, c)
		start += n
	}

	return chunks, nil
}

// readFull fills buf.Data from the decoder's PCM stream.
func readFull(d *wav.Decoder, buf *audio.IntBuffer) error {
	want := buf.Data
	var got int
	for got < len(want) {
		part := &audio.IntBuffer{Data: want[got:]}
		n, err := d.PCMBuffer(part)
		if err != nil {
			return err
		}
		if n == 0 {
			return fmt.Errorf("truncated PCM data after %d of %d samples", got, len(want))
		}
		got += n
	}
	return nil
}

func writeChunk(path string, buf *audio.IntBuffer, rate int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := wav.NewEncoder(f, rate, 16, 1, 1)
	if err := enc.Write(buf); err != nil {
		f.Close()
		return err
	}
	if err := enc.Close(); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Release removes chunk files. Missing files are ignored; other failures
// are joined into the returned error.
func Release(chunks []Chunk) error {
	var errs []error
	for _, c := range chunks {
		if err := os.Remove(c.Path); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
