package acquire

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// Fetcher retrieves a source reference into local storage.
type Fetcher interface {
	// Name returns the fetcher name for logs
	Name() string
	// Match returns true if this fetcher can handle the reference
	Match(ref string) bool
	// Fetch downloads ref to a file whose name starts with destBase and
	// returns its path.
	Fetch(ctx context.Context, ref, destBase string) (string, error)
}

// mediaExtensions are file extensions downloaded directly instead of
// being resolved through yt-dlp.
var mediaExtensions = map[string]bool{
	// Audio
	".mp3": true, ".m4a": true, ".aac": true, ".ogg": true, ".opus": true,
	".wav": true, ".flac": true, ".wma": true,
	// Video
	".mp4": true, ".webm": true, ".mov": true, ".mkv": true, ".m4v": true,
	".avi": true, ".flv": true,
}

// mediaExtension returns the lower-cased extension of a URL path when it
// names a known media container, or "".
func mediaExtension(p string) string {
	ext := strings.ToLower(path.Ext(p))
	if mediaExtensions[ext] {
		return ext
	}
	return ""
}

// IsMediaFile reports whether name has a media extension the fetchers
// download directly.
func IsMediaFile(name string) bool {
	return mediaExtension(name) != ""
}

// isHTTPURL reports whether ref parses as an absolute http(s) URL.
func isHTTPURL(ref string) (*url.URL, bool) {
	u, err := url.Parse(ref)
	if err != nil {
		return nil, false
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, false
	}
	return u, true
}

// writeStream copies r to dst, aborting when ctx is cancelled.
func writeStream(ctx context.Context, r io.Reader, dst string) error {
	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	_, err = io.Copy(f, &ctxReader{ctx: ctx, r: r})
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(dst)
		return err
	}
	return nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// downloadResidue lists files left under destBase by a fetcher.
func downloadResidue(destBase string) []string {
	matches, err := filepath.Glob(destBase + "*")
	if err != nil {
		return nil
	}
	return matches
}

func fetchError(name string, err error) error {
	return fmt.Errorf("%s: %w", name, err)
}
