package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/yourusername/mediabridge-go/internal/domain"
	"go.uber.org/zap"
)

// BrowserUserAgent is sent on direct media downloads; several CDNs reject
// requests without a browser-looking agent
const BrowserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

// maxDownloadBytes caps a single in-memory download
const maxDownloadBytes = 2 << 30

// FetchedMedia is the body of a successful direct download
type FetchedMedia struct {
	Data               []byte
	ContentType        string
	ContentDisposition string
}

// Fetcher downloads media bytes from a direct URL
type Fetcher struct {
	client  *http.Client
	timeout time.Duration
	logger  *zap.Logger
}

// NewFetcher creates a fetcher with a per-download timeout
func NewFetcher(client *http.Client, timeout time.Duration, logger *zap.Logger) *Fetcher {
	if client == nil {
		client = &http.Client{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{client: client, timeout: timeout, logger: logger}
}

// Fetch GETs rawURL and returns the body. Upstream status codes are not
// trusted: a declared zero Content-Length and an empty body both fail.
func (f *Fetcher) Fetch(ctx context.Context, rawURL, referer string) (*FetchedMedia, *domain.Failure) {
	if f.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, domain.NewFailure(domain.KindUnknown, "invalid media url: %v", err)
	}
	req.Header.Set("User-Agent", BrowserUserAgent)
	req.Header.Set("Accept", "*/*")
	if referer != "" {
		req.Header.Set("Referer", referer)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, transportFailure(ctx, err)
	}
	defer resp.Body.Close()

	if failure := statusFailure(resp.StatusCode); failure != nil {
		return nil, failure
	}
	if declaredEmpty(resp) {
		return nil, domain.NewFailure(domain.KindZeroLength, "upstream declared Content-Length 0")
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxDownloadBytes))
	if err != nil {
		return nil, transportFailure(ctx, err)
	}
	if len(data) == 0 {
		return nil, domain.NewFailure(domain.KindEmptyContent, "upstream returned an empty body")
	}

	f.logger.Debug("Fetched media",
		zap.String("url", rawURL),
		zap.Int("bytes", len(data)),
		zap.String("content_type", resp.Header.Get("Content-Type")))

	return &FetchedMedia{
		Data:               data,
		ContentType:        resp.Header.Get("Content-Type"),
		ContentDisposition: resp.Header.Get("Content-Disposition"),
	}, nil
}

func declaredEmpty(resp *http.Response) bool {
	if resp.ContentLength == 0 {
		return true
	}
	n, err := strconv.ParseInt(resp.Header.Get("Content-Length"), 10, 64)
	return err == nil && n == 0
}

// statusFailure maps a non-2xx HTTP status to a failure, nil for 2xx
func statusFailure(code int) *domain.Failure {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusTooManyRequests:
		return domain.NewFailure(domain.KindRateLimited, "upstream returned HTTP 429")
	case code >= 500:
		return domain.NewFailure(domain.KindUpstreamUnavailable, "upstream returned HTTP %d", code)
	default:
		return domain.NewFailure(domain.KindUnknown, "upstream returned HTTP %d", code)
	}
}

// transportFailure classifies a client-side HTTP error: a timeout, or an
// unreachable upstream
func transportFailure(ctx context.Context, err error) *domain.Failure {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return domain.NewFailure(domain.KindTimeout, "request timed out: %v", err)
	}
	var netErr interface{ Timeout() bool }
	if errors.As(err, &netErr) && netErr.Timeout() {
		return domain.NewFailure(domain.KindTimeout, "request timed out: %v", err)
	}
	// the error text carries the request URL, which is caller input, so it is
	// never matched against the classifier table
	return domain.NewFailure(domain.KindUpstreamUnavailable, "%s", fmt.Sprint(err))
}
