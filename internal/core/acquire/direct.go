package acquire

import (
	"context"
	"fmt"
	"net/http"
)

// DefaultUserAgent is the User-Agent header sent with direct downloads
const DefaultUserAgent = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// DirectFetcher downloads http(s) URLs that point straight at a media file.
type DirectFetcher struct {
	client    *http.Client
	userAgent string
}

// NewDirectFetcher creates a fetcher using client, or http.DefaultClient.
func NewDirectFetcher(client *http.Client) *DirectFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &DirectFetcher{client: client, userAgent: DefaultUserAgent}
}

func (f *DirectFetcher) Name() string {
	return "direct"
}

func (f *DirectFetcher) Match(ref string) bool {
	u, ok := isHTTPURL(ref)
	return ok && mediaExtension(u.Path) != ""
}

func (f *DirectFetcher) Fetch(ctx context.Context, ref, destBase string) (string, error) {
	u, ok := isHTTPURL(ref)
	if !ok {
		return "", fetchError(f.Name(), fmt.Errorf("not an http URL: %s", ref))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return "", fetchError(f.Name(), err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fetchError(f.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fetchError(f.Name(), fmt.Errorf("HTTP %d", resp.StatusCode))
	}

	dst := destBase + mediaExtension(u.Path)
	if err := writeStream(ctx, resp.Body, dst); err != nil {
		return "", fetchError(f.Name(), err)
	}
	return dst, nil
}
