// Package acquire fetches a remote media source into the working directory
// and normalizes it into a mono 16-bit PCM WAV asset.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/guiyumin/textube/internal/core/config"
	"github.com/guiyumin/textube/internal/core/logging"
	"github.com/guiyumin/textube/internal/core/proc"
	"github.com/rs/zerolog"
)

var (
	// ErrUnsupportedSource means no fetcher accepts the reference.
	ErrUnsupportedSource = errors.New("unsupported source")
	// ErrFetch wraps failures to retrieve the source.
	ErrFetch = errors.New("fetch failed")
	// ErrDecode wraps failures to turn fetched media into PCM.
	ErrDecode = errors.New("decode failed")
	// ErrStorage wraps working directory failures.
	ErrStorage = errors.New("working directory")
)

// Acquirer turns a source reference into a local Asset.
type Acquirer struct {
	workDir    string
	fetchers   []Fetcher
	normalizer *Normalizer
	timeout    time.Duration
	log        zerolog.Logger
}

// New creates an Acquirer with the default fetcher chain:
// WebDAV, direct HTTP, then yt-dlp.
func New(cfg *config.Config, log zerolog.Logger) *Acquirer {
	runner := proc.ExecRunner{}
	log = logging.Component(log, "acquire")
	fetchers := []Fetcher{
		NewWebDAVFetcher(cfg.WebDAVServers),
		NewDirectFetcher(&http.Client{}),
		NewYTDLPFetcher(cfg.Acquire.YTDLPPath, cfg.Acquire.Format, cfg.Acquire.FFmpegPath, runner),
	}
	a := NewWithFetchers(cfg.WorkDir, NewNormalizer(cfg.Acquire.FFmpegPath, runner, log), log, fetchers...)
	a.timeout = cfg.Acquire.Timeout
	return a
}

// NewWithFetchers creates an Acquirer with an explicit fetcher chain.
func NewWithFetchers(workDir string, normalizer *Normalizer, log zerolog.Logger, fetchers ...Fetcher) *Acquirer {
	if workDir == "" {
		workDir = config.DefaultWorkDir()
	}
	if normalizer == nil {
		normalizer = NewNormalizer("", nil, log)
	}
	return &Acquirer{
		workDir:    workDir,
		fetchers:   fetchers,
		normalizer: normalizer,
		log:        log,
	}
}

// WorkDir returns the directory assets are written to.
func (a *Acquirer) WorkDir() string {
	return a.workDir
}

// AssetPath returns the final asset path for a run.
func (a *Acquirer) AssetPath(runID string) string {
	return filepath.Join(a.workDir, runID+".asset.wav")
}

// fetcherFor returns the first fetcher that accepts ref.
func (a *Acquirer) fetcherFor(ref string) Fetcher {
	for _, f := range a.fetchers {
		if f.Match(ref) {
			return f
		}
	}
	return nil
}

// Acquire fetches sourceRef and returns a normalized asset named after runID.
// Any file already at the asset path is replaced. Intermediate files are
// removed on every return path and a partially written asset is never
// returned.
func (a *Acquirer) Acquire(ctx context.Context, runID, sourceRef string) (*Asset, error) {
	sourceRef = strings.TrimSpace(sourceRef)
	fetcher := a.fetcherFor(sourceRef)
	if fetcher == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedSource, sourceRef)
	}

	if err := os.MkdirAll(a.workDir, 0755); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}

	log := a.log.With().Str("run", runID).Str("fetcher", fetcher.Name()).Logger()
	destBase := filepath.Join(a.workDir, runID+".download")
	defer a.removeAll(downloadResidue, destBase)

	log.Info().Str("source", sourceRef).Msg("fetching")
	start := time.Now()
	fetched, err := fetcher.Fetch(ctx, sourceRef, destBase)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}
	log.Debug().Str("file", fetched).Dur("elapsed", time.Since(start)).Msg("fetched")

	final := a.AssetPath(runID)
	staging := final + ".part"
	defer a.remove(staging)

	if err := a.normalizer.Normalize(ctx, fetched, staging); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	asset, err := ProbeAsset(staging)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}
	if err := asset.Conforms(TargetSampleRate); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := os.Rename(staging, final); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	asset.Path = final

	log.Info().
		Dur("duration", asset.Duration).
		Int("rate", asset.SampleRate).
		Msg("asset ready")
	return asset, nil
}

// Release removes the asset file. A missing file is not an error.
func (a *Acquirer) Release(asset *Asset) error {
	if asset == nil || asset.Path == "" {
		return nil
	}
	if err := os.Remove(asset.Path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return nil
}

func (a *Acquirer) remove(path string) {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		a.log.Warn().Err(err).Str("path", path).Msg("failed to remove temp file")
	}
}

func (a *Acquirer) removeAll(list func(string) []string, base string) {
	for _, p := range list(base) {
		a.remove(p)
	}
}
