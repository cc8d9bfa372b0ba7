package acquire

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/guiyumin/textube/internal/core/proc"
)

// YTDLPFetcher resolves page URLs (YouTube and every other site yt-dlp
// supports) and extracts the best audio stream.
type YTDLPFetcher struct {
	binary     string
	format     string
	ffmpegPath string
	runner     proc.Runner
}

// NewYTDLPFetcher creates a yt-dlp backed fetcher.
func NewYTDLPFetcher(binary, format, ffmpegPath string, runner proc.Runner) *YTDLPFetcher {
	if binary == "" {
		binary = "yt-dlp"
	}
	if format == "" {
		format = "bestaudio/best"
	}
	if runner == nil {
		runner = proc.ExecRunner{}
	}
	return &YTDLPFetcher{binary: binary, format: format, ffmpegPath: ffmpegPath, runner: runner}
}

func (f *YTDLPFetcher) Name() string {
	return "yt-dlp"
}

func (f *YTDLPFetcher) Match(ref string) bool {
	_, ok := isHTTPURL(ref)
	return ok
}

func (f *YTDLPFetcher) Fetch(ctx context.Context, ref, destBase string) (string, error) {
	args := []string{
		"-f", f.format,
		"-x", "--audio-format", "wav",
		"--no-playlist",
		"--no-progress",
		"--quiet",
		"-o", destBase + ".%(ext)s",
	}
	if f.ffmpegPath != "" && f.ffmpegPath != "ffmpeg" {
		args = append(args, "--ffmpeg-location", f.ffmpegPath)
	}
	args = append(args, ref)

	res, err := f.runner.Run(ctx, f.binary, args...)
	if err != nil {
		if tail := proc.Tail(res.Stderr); tail != "" {
			return "", fetchError(f.Name(), fmt.Errorf("%s: %w", tail, err))
		}
		return "", fetchError(f.Name(), err)
	}

	wavPath := destBase + ".wav"
	if _, err := os.Stat(wavPath); err == nil {
		return wavPath, nil
	}

	// Post-processing was skipped; take whatever yt-dlp wrote.
	for _, m := range downloadResidue(destBase) {
		if strings.HasSuffix(m, ".part") || strings.HasSuffix(m, ".ytdl") {
			continue
		}
		return m, nil
	}
	return "", fetchError(f.Name(), fmt.Errorf("no output produced for %s", ref))
}
