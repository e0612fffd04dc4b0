package truefx

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"

	"fxgym/internal/model"
	"fxgym/internal/provider"
)

const (
	maxRetries = 3
	retryDelay = 5 * time.Second

	// DefaultDownloadTimeout bounds one archive download.
	DefaultDownloadTimeout = 2 * time.Minute
)

// LogFunc emits a log line. When set, used instead of slog (fan-in logger).
type LogFunc func(msg string)

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	BaseURL     string
	ArchiveRoot string        // downloaded archives are kept here and reused
	Timeout     time.Duration // per download
	MinInterval time.Duration // pacing between downloads; 0 disables
}

// Client fetches monthly TrueFX tick archives, reusing copies already on disk.
type Client struct {
	http        *resty.Client
	baseURL     string
	archiveRoot string
	limiter     *rate.Limiter
	LogFunc     LogFunc
}

// NewClient constructs a Client.
func NewClient(opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	limit := rate.Inf
	if opts.MinInterval > 0 {
		limit = rate.Every(opts.MinInterval)
	}
	base := opts.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	return &Client{
		http:        newHTTPClient(timeout),
		baseURL:     base,
		archiveRoot: opts.ArchiveRoot,
		limiter:     rate.NewLimiter(limit, 1),
	}
}

func (c *Client) logf(format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if c.LogFunc != nil {
		c.LogFunc(msg)
	} else {
		slog.Info(msg)
	}
}

// GetName returns provider name
func (c *Client) GetName() string { return "truefx" }

// Close closes idle connections.
func (c *Client) Close() error {
	c.http.GetClient().CloseIdleConnections()
	return nil
}

// Fetch returns the archive for symbol/period, downloading it when it is not stored yet.
func (c *Client) Fetch(ctx context.Context, symbol string, p model.Period) ([]byte, error) {
	var path string
	if c.archiveRoot != "" {
		path = provider.ArchivePath(c.archiveRoot, symbol, p)
		data, err := os.ReadFile(path)
		switch {
		case err == nil && looksLikeZip(data):
			c.logf("[%s] %s archive already stored: %s", model.NormalizeSymbol(symbol), p, path)
			return data, nil
		case err != nil && !errors.Is(err, fs.ErrNotExist):
			return nil, fmt.Errorf("read archive %s: %w", path, err)
		}
	}

	data, err := c.download(ctx, symbol, p)
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := provider.WriteArchive(path, data); err != nil {
			return nil, fmt.Errorf("store archive %s: %w", path, err)
		}
	}
	return data, nil
}

func (c *Client) download(ctx context.Context, symbol string, p model.Period) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	u := ArchiveURL(c.baseURL, symbol, p)
	c.logf("[%s] %s downloading %s", model.NormalizeSymbol(symbol), p, u)
	start := time.Now()
	resp, err := c.http.R().SetContext(ctx).Get(u)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: download %s after %d attempts: %v", provider.ErrSourceUnavailable, u, maxRetries+1, err)
	}
	if resp.StatusCode() != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %s", provider.ErrSourceUnavailable, u, resp.Status())
	}
	body := resp.Body()
	if !looksLikeZip(body) {
		return nil, fmt.Errorf("%w: %s did not return a zip archive", provider.ErrSourceUnavailable, u)
	}
	c.logf("[%s] %s downloaded %d bytes in %.2fs", model.NormalizeSymbol(symbol), p, len(body), time.Since(start).Seconds())
	return body, nil
}
