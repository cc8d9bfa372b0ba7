package acquire

import (
	"context"
	"path"

	"github.com/guiyumin/textube/internal/core/config"
	"github.com/guiyumin/textube/internal/core/webdav"
)

// WebDAVFetcher reads files from webdav:// URLs and configured remotes.
type WebDAVFetcher struct {
	servers map[string]config.WebDAVServer
}

// NewWebDAVFetcher creates a fetcher that knows the given named servers.
func NewWebDAVFetcher(servers map[string]config.WebDAVServer) *WebDAVFetcher {
	return &WebDAVFetcher{servers: servers}
}

func (f *WebDAVFetcher) Name() string {
	return "webdav"
}

func (f *WebDAVFetcher) Match(ref string) bool {
	return webdav.IsWebDAVURL(ref)
}

func (f *WebDAVFetcher) Fetch(ctx context.Context, ref, destBase string) (string, error) {
	client, filePath, err := webdav.Resolve(ref, f.servers)
	if err != nil {
		return "", fetchError(f.Name(), err)
	}

	reader, _, err := client.Open(ctx, filePath)
	if err != nil {
		return "", fetchError(f.Name(), err)
	}
	defer reader.Close()

	dst := destBase + path.Ext(webdav.ExtractFilename(filePath))
	if err := writeStream(ctx, reader, dst); err != nil {
		return "", fetchError(f.Name(), err)
	}
	return dst, nil
}
