package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"codeberg.org/gruf/go-ffmpreg/ffmpreg"
	"codeberg.org/gruf/go-ffmpreg/wasm"
	"github.com/guiyumin/textube/internal/core/proc"
	"github.com/rs/zerolog"
	"github.com/tetratelabs/wazero"
)

// Normalizer converts fetched media into a mono 16-bit PCM WAV.
//
// WAV, MP3 and FLAC are decoded in pure Go. Everything else goes through
// ffmpeg: the system binary when installed, otherwise the embedded WASM
// build.
type Normalizer struct {
	sampleRate int
	ffmpegPath string
	runner     proc.Runner
	// wasmFallback enables the embedded ffmpeg when no binary is found
	wasmFallback bool
	log          zerolog.Logger
}

// NewNormalizer creates a normalizer targeting TargetSampleRate.
func NewNormalizer(ffmpegPath string, runner proc.Runner, log zerolog.Logger) *Normalizer {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if runner == nil {
		runner = proc.ExecRunner{}
	}
	return &Normalizer{
		sampleRate:   TargetSampleRate,
		ffmpegPath:   ffmpegPath,
		runner:       runner,
		wasmFallback: true,
		log:          log,
	}
}

// Normalize writes src as a conforming WAV to dst.
func (n *Normalizer) Normalize(ctx context.Context, src, dst string) error {
	if a, err := ProbeAsset(src); err == nil && a.Conforms(n.sampleRate) == nil {
		n.log.Debug().Str("src", src).Msg("source already conforms, copying")
		return copyFile(src, dst)
	}

	var decode func(string) ([]float32, int, error)
	switch strings.ToLower(filepath.Ext(src)) {
	case ".wav":
		decode = readWAVSamples
	case ".mp3":
		decode = readMP3Samples
	case ".flac":
		decode = readFLACSamples
	}

	if decode != nil {
		samples, rate, err := decode(src)
		if err == nil {
			n.log.Debug().
				Str("src", src).
				Int("rate", rate).
				Int("samples", len(samples)).
				Msg("decoded in process")
			return writeWAV(dst, resample(samples, rate, n.sampleRate), n.sampleRate)
		}
		n.log.Debug().Err(err).Str("src", src).Msg("in-process decode failed, trying ffmpeg")
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return n.convertWithFFmpeg(ctx, src, dst)
}

func (n *Normalizer) ffmpegArgs(src, dst string) []string {
	return []string{
		"-nostdin", "-hide_banner", "-loglevel", "error",
		"-i", src,
		"-vn",
		"-ar", strconv.Itoa(n.sampleRate),
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-f", "wav",
		"-y",
		dst,
	}
}

func (n *Normalizer) convertWithFFmpeg(ctx context.Context, src, dst string) error {
	if proc.Available(n.ffmpegPath) {
		res, err := n.runner.Run(ctx, n.ffmpegPath, n.ffmpegArgs(src, dst)...)
		if err != nil {
			if tail := proc.Tail(res.Stderr); tail != "" {
				return fmt.Errorf("ffmpeg: %s: %w", tail, err)
			}
			return fmt.Errorf("ffmpeg: %w", err)
		}
		return nil
	}
	if !n.wasmFallback {
		return errors.New("ffmpeg not found")
	}
	return n.convertWithWASM(ctx, src, dst)
}

// convertWithWASM runs the embedded ffmpeg build.
func (n *Normalizer) convertWithWASM(ctx context.Context, src, dst string) error {
	absInput, err := filepath.Abs(src)
	if err != nil {
		return err
	}
	absOutput, err := filepath.Abs(dst)
	if err != nil {
		return err
	}

	inputDir := filepath.Dir(absInput)
	outputDir := filepath.Dir(absOutput)

	n.log.Info().Str("src", src).Msg("converting audio using embedded ffmpeg")

	args := wasm.Args{
		Stderr: io.Discard,
		Stdout: io.Discard,
		Args:   n.ffmpegArgs(absInput, absOutput),
		Config: func(cfg wazero.ModuleConfig) wazero.ModuleConfig {
			return cfg.WithFSConfig(wazero.NewFSConfig().
				WithDirMount(inputDir, inputDir).
				WithDirMount(outputDir, outputDir))
		},
	}

	rc, err := ffmpreg.Ffmpeg(ctx, args)
	if err != nil {
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	if rc != 0 {
		return fmt.Errorf("ffmpeg exited with code %d", rc)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
