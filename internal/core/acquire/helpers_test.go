package acquire

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/rs/zerolog"
)

// writeTestWAV writes interleaved 16-bit samples to path.
func writeTestWAV(t *testing.T, path string, rate, channels int, data []int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	enc := wav.NewEncoder(f, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("close encoder: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close %s: %v", path, err)
	}
}

// readTestWAV returns the raw samples of a WAV file.
func readTestWAV(t *testing.T, path string) []int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return buf.Data
}

func ramp(n int) []int {
	data := make([]int, n)
	for i := range data {
		data[i] = (i*37)%20000 - 10000
	}
	return data
}

// listDir returns the names of the files in dir.
func listDir(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

// fakeFetcher copies a fixture file into place.
type fakeFetcher struct {
	name    string
	match   func(string) bool
	fixture string
	ext     string
	err     error
	calls   int
}

func (f *fakeFetcher) Name() string { return f.name }

func (f *fakeFetcher) Match(ref string) bool {
	if f.match == nil {
		return true
	}
	return f.match(ref)
}

func (f *fakeFetcher) Fetch(ctx context.Context, ref, destBase string) (string, error) {
	f.calls++
	if f.err != nil {
		// leave a partial download behind like a real fetcher would
		os.WriteFile(destBase+".part", []byte("partial"), 0644)
		return "", f.err
	}
	dst := destBase + f.ext
	if err := copyFile(f.fixture, dst); err != nil {
		return "", err
	}
	return dst, nil
}

func newTestNormalizer() *Normalizer {
	n := NewNormalizer(filepath.Join(os.TempDir(), "textube-no-such-ffmpeg"), nil, zerolog.Nop())
	n.wasmFallback = false
	return n
}
