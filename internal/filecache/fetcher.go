package filecache

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	hinterrors "codehint/internal/errors"
	"codehint/internal/version"
)

// DefaultMaxBytes caps a single fetched file.
const DefaultMaxBytes = 16 << 20

// Fetcher retrieves the contents of a network file.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context, name string) (string, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context, name string) (string, error) {
	return f(ctx, name)
}

// HTTPFetcher fetches files with plain GET requests.
type HTTPFetcher struct {
	Client   *http.Client
	MaxBytes int64
}

// NewHTTPFetcher returns a fetcher whose requests time out after timeout.
func NewHTTPFetcher(timeout time.Duration) *HTTPFetcher {
	return &HTTPFetcher{
		Client:   &http.Client{Timeout: timeout},
		MaxBytes: DefaultMaxBytes,
	}
}

// Fetch implements Fetcher.
func (f *HTTPFetcher) Fetch(ctx context.Context, name string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, name, nil)
	if err != nil {
		return "", hinterrors.New(hinterrors.InvalidName, "bad file URL", err)
	}
	req.Header.Set("Accept", "text/plain, application/javascript, application/json;q=0.9, */*;q=0.5")
	req.Header.Set("User-Agent", version.UserAgent())

	client := f.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return "", hinterrors.New(hinterrors.FileReadFailure, "fetch "+name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", hinterrors.Newf(hinterrors.FileReadFailure, "fetch %s: HTTP %d", name, resp.StatusCode).
			WithDetails(map[string]interface{}{"status": resp.StatusCode})
	}

	limit := f.MaxBytes
	if limit <= 0 {
		limit = DefaultMaxBytes
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return "", hinterrors.New(hinterrors.FileReadFailure, "read "+name, err)
	}
	if int64(len(body)) > limit {
		return "", hinterrors.New(hinterrors.FileReadFailure,
			fmt.Sprintf("fetch %s: body exceeds %d bytes", name, limit), nil)
	}
	return string(body), nil
}
