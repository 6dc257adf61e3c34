// Package assets loads caption images from data URIs, HTTP(S) URLs and
// local files.
package assets

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"

	"github.com/bft-labs/subcast/internal/domain"
	"github.com/bft-labs/subcast/internal/ports"
)

const (
	// DefaultMaxBytes bounds a single fetched asset.
	DefaultMaxBytes = 16 << 20

	// DefaultMaxPixels bounds the decoded size of a single asset.
	DefaultMaxPixels = 8192 * 8192
)

// HTTPClient is the subset of *http.Client the loader uses.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient sets the client used for http and https sources.
func WithHTTPClient(c HTTPClient) Option {
	return func(l *Loader) {
		l.client = c
	}
}

// WithBaseDir enables file sources. Relative paths and file URLs resolve
// inside dir; without a base dir file sources are rejected.
func WithBaseDir(dir string) Option {
	return func(l *Loader) {
		l.baseDir = dir
	}
}

// WithTimeout bounds each load.
func WithTimeout(d time.Duration) Option {
	return func(l *Loader) {
		l.timeout = d
	}
}

// WithMaxBytes bounds the size of a fetched or read asset.
func WithMaxBytes(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxBytes = n
		}
	}
}

// WithMaxPixels bounds width times height of a decoded asset. Headers are
// checked before any pixel data is allocated.
func WithMaxPixels(n int64) Option {
	return func(l *Loader) {
		if n > 0 {
			l.maxPixels = n
		}
	}
}

// Loader implements ports.Loader.
type Loader struct {
	client    HTTPClient
	baseDir   string
	timeout   time.Duration
	maxBytes  int64
	maxPixels int64
}

// New creates a loader.
func New(opts ...Option) *Loader {
	l := &Loader{
		client:    http.DefaultClient,
		maxBytes:  DefaultMaxBytes,
		maxPixels: DefaultMaxPixels,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Load fetches and decodes src.
func (l *Loader) Load(ctx context.Context, src string) (ports.Asset, error) {
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	data, err := l.fetch(ctx, src)
	if err != nil {
		return nil, err
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", describe(src), err)
	}
	if px := int64(cfg.Width) * int64(cfg.Height); px > l.maxPixels {
		return nil, fmt.Errorf("decode %s: %dx%d exceeds %d pixels: %w",
			describe(src), cfg.Width, cfg.Height, l.maxPixels, domain.ErrImageTooLarge)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", describe(src), err)
	}
	return img, nil
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		data, err := decodeDataURI(src)
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > l.maxBytes {
			return nil, fmt.Errorf("data uri: asset exceeds %d bytes", l.maxBytes)
		}
		return data, nil
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetchHTTP(ctx, src)
	case strings.HasPrefix(src, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", src, err)
		}
		return l.readFile(u.Path)
	case strings.Contains(src, "://"):
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedSource, describe(src))
	default:
		return l.readFile(src)
	}
}

func (l *Loader) fetchHTTP(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", src, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch %s: unexpected status %d", src, resp.StatusCode)
	}
	return l.readAll(resp.Body, src)
}

func (l *Loader) readFile(path string) ([]byte, error) {
	if l.baseDir == "" {
		return nil, fmt.Errorf("%w: file sources disabled", domain.ErrUnsupportedSource)
	}
	clean := filepath.Clean("/" + filepath.FromSlash(path))
	f, err := os.Open(filepath.Join(l.baseDir, clean))
	if err != nil {
		return nil, fmt.Errorf("open asset: %w", err)
	}
	defer f.Close()
	return l.readAll(f, path)
}

func (l *Loader) readAll(r io.Reader, src string) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, l.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", src, err)
	}
	if int64(len(data)) > l.maxBytes {
		return nil, fmt.Errorf("read %s: asset exceeds %d bytes", src, l.maxBytes)
	}
	return data, nil
}

// decodeDataURI decodes data:[<mediatype>][;base64],<data>.
func decodeDataURI(src string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(src, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("data uri: missing payload separator")
	}
	if strings.HasSuffix(meta, ";base64") {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			// Some senders strip padding.
			data, err = base64.RawStdEncoding.DecodeString(strings.TrimRight(payload, "="))
		}
		if err != nil {
			return nil, fmt.Errorf("data uri: %w", err)
		}
		return data, nil
	}
	data, err := url.PathUnescape(payload)
	if err != nil {
		return nil, fmt.Errorf("data uri: %w", err)
	}
	return []byte(data), nil
}

// describe shortens inline payloads for error messages.
func describe(src string) string {
	if strings.HasPrefix(src, "data:") {
		meta, _, _ := strings.Cut(src, ",")
		return meta
	}
	return src
}

var _ ports.Loader = (*Loader)(nil)
