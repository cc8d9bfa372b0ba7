package segment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
	"github.com/guiyumin/textube/internal/core/acquire"
	"github.com/rs/zerolog"
)

func writeAsset(t *testing.T, dir string, rate, channels, bitDepth int, data []int) *acquire.Asset {
	t.Helper()
	path := filepath.Join(dir, "run.asset.wav")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	enc := wav.NewEncoder(f, rate, bitDepth, channels, 1)
	buf := &audio.IntBuffer{
		Data:           data,
		Format:         &audio.Format{NumChannels: channels, SampleRate: rate},
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatal(err)
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
	f.Close()
	return &acquire.Asset{Path: path, SampleRate: rate, Channels: channels, BitDepth: bitDepth}
}

func readSamples(t *testing.T, path string) []int {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	buf, err := wav.NewDecoder(f).FullPCMBuffer()
	if err != nil {
		t.Fatal(err)
	}
	return buf.Data
}

func samples(n int) []int {
	data := make([]int, n)
	for i := range data {
		data[i] = (i*131)%30000 - 15000
	}
	return data
}

func TestSegment65Seconds(t *testing.T) {
	dir := t.TempDir()
	// 1 kHz keeps the fixture small; the arithmetic is rate independent
	data := samples(65000)
	asset := writeAsset(t, dir, 1000, 1, 16, data)

	chunks, err := New(30000, zerolog.Nop()).Segment(context.Background(), asset, "run")
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(chunks) != 3 {
		t.Fatalf("got %d chunks, want 3", len(chunks))
	}

	wantDur := []time.Duration{30 * time.Second, 30 * time.Second, 5 * time.Second}
	var joined []int
	for i, c := range chunks {
		if c.Index != i {
			t.Errorf("chunk %d has Index %d", i, c.Index)
		}
		if c.Path != ChunkPath(dir, "run", i) {
			t.Errorf("chunk %d path = %q", i, c.Path)
		}
		if c.Duration != wantDur[i] {
			t.Errorf("chunk %d duration = %v, want %v", i, c.Duration, wantDur[i])
		}
		if c.StartSample != int64(i)*30000 {
			t.Errorf("chunk %d StartSample = %d", i, c.StartSample)
		}
		joined = append(joined, readSamples(t, c.Path)...)
	}

	if len(joined) != len(data) {
		t.Fatalf("joined %d samples, want %d", len(joined), len(data))
	}
	for i := range data {
		if joined[i] != data[i] {
			t.Fatalf("sample %d = %d, want %d", i, joined[i], data[i])
		}
	}

	if err := Release(chunks); err != nil {
		t.Fatalf("Release: %v", err)
	}
	for _, c := range chunks {
		if _, err := os.Stat(c.Path); !os.IsNotExist(err) {
			t.Errorf("chunk %d still present", c.Index)
		}
	}
}

func TestSegmentChunkCount(t *testing.T) {
	tests := []struct {
		name     string
		samples  int
		chunkMs  int
		want     int
		lastSize int64
	}{
		{"exact multiple", 60000, 30000, 2, 30000},
		{"shorter than one chunk", 1200, 30000, 1, 1200},
		{"single trailing sample", 30001, 30000, 2, 1},
		{"small chunks", 10000, 3000, 4, 1000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			asset := writeAsset(t, t.TempDir(), 1000, 1, 16, samples(tt.samples))
			chunks, err := New(tt.chunkMs, zerolog.Nop()).Segment(context.Background(), asset, "r")
			if err != nil {
				t.Fatalf("Segment: %v", err)
			}
			if len(chunks) != tt.want {
				t.Fatalf("got %d chunks, want %d", len(chunks), tt.want)
			}
			if got := chunks[len(chunks)-1].NumSamples; got != tt.lastSize {
				t.Errorf("last chunk = %d samples, want %d", got, tt.lastSize)
			}
			var sum int64
			for _, c := range chunks {
				sum += c.NumSamples
			}
			if sum != int64(tt.samples) {
				t.Errorf("chunks hold %d samples, want %d", sum, tt.samples)
			}
		})
	}
}

func TestChunkCount(t *testing.T) {
	tests := []struct {
		total, per, want int64
	}{
		{0, 10, 0},
		{1, 10, 1},
		{10, 10, 1},
		{11, 10, 2},
		{65000, 30000, 3},
		{5, 0, 0},
	}
	for _, tt := range tests {
		if got := ChunkCount(tt.total, tt.per); got != tt.want {
			t.Errorf("ChunkCount(%d, %d) = %d, want %d", tt.total, tt.per, got, tt.want)
		}
	}
}

func TestSegmentRejectsFormat(t *testing.T) {
	tests := []struct {
		name     string
		channels int
		bitDepth int
		data     []int
	}{
		{"stereo", 2, 16, samples(2000)},
		{"8-bit", 1, 8, []int{1, 2, 3, 4}},
		{"empty", 1, 16, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			asset := writeAsset(t, dir, 1000, tt.channels, tt.bitDepth, tt.data)
			chunks, err := New(30000, zerolog.Nop()).Segment(context.Background(), asset, "r")
			if !errors.Is(err, ErrFormat) {
				t.Fatalf("err = %v, want ErrFormat", err)
			}
			if chunks != nil {
				t.Errorf("got %d chunks on error", len(chunks))
			}
			entries, _ := os.ReadDir(dir)
			if len(entries) != 1 {
				t.Errorf("work dir has %d entries, want only the asset", len(entries))
			}
		})
	}
}

func TestSegmentCancelledRemovesChunks(t *testing.T) {
	dir := t.TempDir()
	asset := writeAsset(t, dir, 1000, 1, 16, samples(5000))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	chunks, err := New(1000, zerolog.Nop()).Segment(ctx, asset, "r")
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if chunks != nil {
		t.Errorf("got chunks on cancel")
	}
	matches, _ := filepath.Glob(filepath.Join(dir, "r.chunk_*"))
	if len(matches) != 0 {
		t.Errorf("leftover chunks: %v", matches)
	}
}

func TestSegmentProducesFreshFilesPerCall(t *testing.T) {
	dir := t.TempDir()
	asset := writeAsset(t, dir, 1000, 1, 16, samples(2500))
	s := New(1000, zerolog.Nop())

	first, err := s.Segment(context.Background(), asset, "a")
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.Segment(context.Background(), asset, "b")
	if err != nil {
		t.Fatal(err)
	}
	if first[0].Path == second[0].Path {
		t.Error("runs share chunk paths")
	}
	if err := Release(first); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(second[0].Path); err != nil {
		t.Errorf("releasing one run touched the other: %v", err)
	}
}

func TestNewDefaultsChunkDuration(t *testing.T) {
	if got := New(0, zerolog.Nop()).ChunkDurationMs(); got != 30000 {
		t.Errorf("ChunkDurationMs = %d, want 30000", got)
	}
}
