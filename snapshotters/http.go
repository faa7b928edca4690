package snapshotters

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/brettbedarf/vfs"
	"github.com/brettbedarf/vfs/internal/util"
	"github.com/cespare/xxhash/v2"
	"github.com/hanwen/go-fuse/v2/fuse"
)

// HTTPSource contains http-specific source fields
type HTTPSource struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// HTTPClient is the subset of [http.Client] used by [HTTPSnapshotter]
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// HTTPProvider builds [HTTPSnapshotter]s sharing one client
type HTTPProvider struct {
	Client HTTPClient
}

func (p *HTTPProvider) NewSnapshotter(raw []byte) (vfs.Snapshotter, error) {
	var src HTTPSource
	if err := json.Unmarshal(raw, &src); err != nil {
		return nil, fmt.Errorf("invalid http source: %w", err)
	}
	u, err := validateURL(src.URL)
	if err != nil {
		return nil, err
	}
	src.URL = u
	return &HTTPSnapshotter{client: p.Client, source: src}, nil
}

func validateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", raw, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", fmt.Errorf("invalid url %q: scheme must be http or https", raw)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid url %q: missing host", raw)
	}
	if u.User != nil {
		return "", fmt.Errorf("invalid url %q: user info not allowed, use headers", raw)
	}
	return u.String(), nil
}

// HTTPSnapshotter snapshots a single remote resource. The path passed to
// Snapshot only names the result; the configured URL is always fetched.
//
// The ETag is used as the fingerprint when the server sends one, otherwise
// the body is downloaded and hashed.
type HTTPSnapshotter struct {
	client HTTPClient
	source HTTPSource
}

func (h *HTTPSnapshotter) newRequest(ctx context.Context, method string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, h.source.URL, nil)
	if err != nil {
		return nil, err
	}
	for k, v := range h.source.Headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func (h *HTTPSnapshotter) Snapshot(ctx context.Context, path string) (*vfs.Snapshot, error) {
	logger := util.GetLogger("HTTPSnapshotter").With().Str("url", h.source.URL).Logger()

	req, err := h.newRequest(ctx, http.MethodHead)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	resp.Body.Close()

	if resp.StatusCode == http.StatusMethodNotAllowed {
		logger.Debug().Msg("HEAD not allowed, falling back to GET")
		return h.snapshotBody(ctx, path)
	}
	if missing(resp.StatusCode) {
		return vfs.NewSnapshot(path, vfs.Missing, fuse.Attr{}, 0), nil
	}
	if err := h.checkStatus(resp); err != nil {
		return nil, err
	}

	etag := resp.Header.Get("ETag")
	if etag == "" {
		logger.Trace().Msg("No ETag, hashing body")
		return h.snapshotBody(ctx, path)
	}

	snap := vfs.NewSnapshot(path, vfs.RegularFile, responseAttr(resp, -1), xxhash.Sum64String(etag))
	snap.ETag = etag
	return snap, nil
}

func (h *HTTPSnapshotter) snapshotBody(ctx context.Context, path string) (*vfs.Snapshot, error) {
	req, err := h.newRequest(ctx, http.MethodGet)
	if err != nil {
		return nil, err
	}
	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if missing(resp.StatusCode) {
		return vfs.NewSnapshot(path, vfs.Missing, fuse.Attr{}, 0), nil
	}
	if err := h.checkStatus(resp); err != nil {
		return nil, err
	}

	d := xxhash.New()
	n, err := io.Copy(d, resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", h.source.URL, err)
	}
	snap := vfs.NewSnapshot(path, vfs.RegularFile, responseAttr(resp, n), d.Sum64())
	snap.ETag = resp.Header.Get("ETag")
	return snap, nil
}

func missing(status int) bool {
	return status == http.StatusNotFound || status == http.StatusGone
}

func (h *HTTPSnapshotter) checkStatus(resp *http.Response) error {
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, h.source.URL)
	}
	return nil
}

// responseAttr builds file metadata from response headers. read is the
// number of body bytes consumed, or -1 when the body was not read.
func responseAttr(resp *http.Response, read int64) fuse.Attr {
	attr := fuse.Attr{Mode: fuse.S_IFREG | 0o444, Nlink: 1}
	switch {
	case resp.ContentLength >= 0:
		attr.Size = uint64(resp.ContentLength)
	case read >= 0:
		attr.Size = uint64(read)
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			attr.SetTimes(nil, &t, nil)
		}
	}
	return attr
}

var _ vfs.Snapshotter = (*HTTPSnapshotter)(nil)
