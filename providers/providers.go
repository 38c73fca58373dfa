package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// Provider ID should be within 6 bytes
const (
	HTTPProviderID   = "http"
	FileProviderID   = "file"
	LRCLIBProviderID = "lrclib"
)

var (
	ErrNetworkFailure = errors.New("network failure")
	ErrNotFound       = errors.New("not found")
	ErrRateLimit      = errors.New("rate limited")
	ErrUnsupported    = errors.New("unsupported url")
	ErrTooLarge       = errors.New("response too large")
)

type Provider interface {
	ID() string
	Supports(url string) bool
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Chain delegates to the first provider that supports a URL.
type Chain []Provider

func (Chain) ID() string {
	return "chain"
}

func (c Chain) pick(url string) Provider {
	for _, p := range c {
		if p.Supports(url) {
			return p
		}
	}
	return nil
}

func (c Chain) Supports(url string) bool {
	return c.pick(url) != nil
}

func (c Chain) Fetch(ctx context.Context, url string) ([]byte, error) {
	p := c.pick(url)
	if p == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, url)
	}
	slog.Debug("fetching", "provider", p.ID(), "url", url)
	return p.Fetch(ctx, url)
}

// Decode turns fetched bytes into text, honouring a UTF-8 or UTF-16 BOM.
// Input without a BOM is read as UTF-8.
func Decode(b []byte) string {
	dec := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	out, _, err := transform.Bytes(dec, b)
	if err != nil {
		return string(b)
	}
	return string(out)
}

func get(ctx context.Context, client *http.Client, url string, headers ...string) (*http.Response, error) {
	var resp *http.Response
	var err error
	slog.Debug("http get", "url", url)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupported, err)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	for range 5 {
		resp, err = client.Do(req)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return nil, err
			}
			continue
		}
		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			return nil, ErrRateLimit
		}
		break
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}
	return resp, nil
}

// readAll reads at most max bytes; max <= 0 disables the limit.
func readAll(r io.Reader, max int64) ([]byte, error) {
	if max <= 0 {
		return io.ReadAll(r)
	}
	b, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, err
	}
	if int64(len(b)) > max {
		return nil, ErrTooLarge
	}
	return b, nil
}
