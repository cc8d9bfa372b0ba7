package acquire

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"
)

// TargetSampleRate is the rate every normalized asset is written at.
const TargetSampleRate = 16000

// ErrNotPCM reports a file that is not an integer PCM WAV.
var ErrNotPCM = errors.New("not a PCM WAV file")

// Asset is a normalized audio file on local disk: mono, 16-bit integer PCM
// WAV at TargetSampleRate. It is owned by the run that created it and is
// removed by Release.
type Asset struct {
	Path       string
	SampleRate int
	Channels   int
	BitDepth   int
	// NumSamples is the number of samples per channel.
	NumSamples int64
	Duration   time.Duration
}

// DurationMs returns the asset length in milliseconds.
func (a *Asset) DurationMs() int64 {
	if a.SampleRate <= 0 {
		return 0
	}
	return a.NumSamples * 1000 / int64(a.SampleRate)
}

// Conforms reports whether the asset has the layout recognition expects.
func (a *Asset) Conforms(sampleRate int) error {
	switch {
	case a.Channels != 1:
		return fmt.Errorf("expected mono audio, got %d channels", a.Channels)
	case a.BitDepth != 16:
		return fmt.Errorf("expected 16-bit samples, got %d-bit", a.BitDepth)
	case a.SampleRate != sampleRate:
		return fmt.Errorf("expected %d Hz, got %d Hz", sampleRate, a.SampleRate)
	}
	return nil
}

// ProbeAsset reads the WAV header of path and describes it.
func ProbeAsset(path string) (*Asset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	d := wav.NewDecoder(f)
	if !d.IsValidFile() {
		return nil, fmt.Errorf("%s: %w", path, ErrNotPCM)
	}
	if d.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%s: encoding %d: %w", path, d.WavAudioFormat, ErrNotPCM)
	}
	if err := d.FwdToPCM(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	a := &Asset{
		Path:       path,
		SampleRate: int(d.SampleRate),
		Channels:   int(d.NumChans),
		BitDepth:   int(d.BitDepth),
	}
	if frameSize := int64(a.BitDepth/8) * int64(a.Channels); frameSize > 0 {
		a.NumSamples = int64(d.PCMSize) / frameSize
	}
	if a.SampleRate > 0 {
		a.Duration = time.Duration(a.NumSamples) * time.Second / time.Duration(a.SampleRate)
	}
	return a, nil
}
