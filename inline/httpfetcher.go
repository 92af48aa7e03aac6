package inline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dnorman/domcorder/assets"
)

// HTTPFetcher is the production Fetcher: a single bounded GET per asset,
// adapted from fetcher.Fetcher's client setup (timeout, User-Agent header,
// capped body read) from page-fetching to asset-fetching. The default
// client has no CookieJar and the recording browser's cookies are not
// copied into it, so asset fetches carry no session credentials unless a
// client with a populated jar is supplied via WithClient.
type HTTPFetcher struct {
	client *http.Client
	ua     string
	logger *slog.Logger
}

// HTTPFetcherOption configures an HTTPFetcher.
type HTTPFetcherOption func(*HTTPFetcher)

func WithClient(c *http.Client) HTTPFetcherOption {
	return func(f *HTTPFetcher) { f.client = c }
}

func WithUserAgent(ua string) HTTPFetcherOption {
	return func(f *HTTPFetcher) { f.ua = ua }
}

func WithLogger(l *slog.Logger) HTTPFetcherOption {
	return func(f *HTTPFetcher) { f.logger = l }
}

// maxAssetBytes caps a single asset fetch to prevent a runaway download
// from stalling the whole fetch phase: 20MB, twice fetcher.Fetch's 10MB cap.
const maxAssetBytes = 20 << 20

func NewHTTPFetcher(opts ...HTTPFetcherOption) *HTTPFetcher {
	f := &HTTPFetcher{
		client: &http.Client{Timeout: 20 * time.Second},
		ua:     "Mozilla/5.0 (compatible; domcorder/1.0)",
		logger: slog.Default(),
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func (f *HTTPFetcher) Fetch(ctx context.Context, url string) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, "", fmt.Errorf("inline: new request: %w", err)
	}
	req.Header.Set("User-Agent", f.ua)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, "", &fetchNetworkError{err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, "", &fetchHTTPError{status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAssetBytes))
	if err != nil {
		return nil, "", fmt.Errorf("inline: read body: %w", err)
	}

	mime := resp.Header.Get("Content-Type")
	f.logger.Debug("inline: fetched asset", "url", url, "status", resp.StatusCode, "size", len(body))
	return body, mime, nil
}

type fetchNetworkError struct{ err error }

func (e *fetchNetworkError) Error() string { return "inline: network error: " + e.err.Error() }
func (e *fetchNetworkError) Unwrap() error { return e.err }

type fetchHTTPError struct{ status int }

func (e *fetchHTTPError) Error() string { return fmt.Sprintf("inline: http status %d", e.status) }

// classifyFetchError maps a Fetch error into the closed FetchError wire
// enum (assets.FetchError), per spec.md §4.3 step 14's error taxonomy.
func classifyFetchError(err error) (assets.FetchError, string) {
	var netErr *fetchNetworkError
	if errors.As(err, &netErr) {
		return assets.FetchErrorNetwork, netErr.Error()
	}
	var httpErr *fetchHTTPError
	if errors.As(err, &httpErr) {
		return assets.FetchErrorHTTP, httpErr.Error()
	}
	return assets.FetchErrorUnknown, err.Error()
}
