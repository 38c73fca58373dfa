package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

const userAgent = "apron"

type HTTPProvider struct {
	client   *http.Client
	maxBytes int64
}

func NewHTTPProvider(client *http.Client, maxBytes int64) *HTTPProvider {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPProvider{client: client, maxBytes: maxBytes}
}

func (*HTTPProvider) ID() string {
	return HTTPProviderID
}

func (*HTTPProvider) Supports(url string) bool {
	return strings.HasPrefix(url, "http://") || strings.HasPrefix(url, "https://")
}

func (p *HTTPProvider) Fetch(ctx context.Context, url string) ([]byte, error) {
	resp, err := get(ctx, p.client, url, "User-Agent", userAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrNotFound, url, resp.StatusCode)
	}
	return readAll(resp.Body, p.maxBytes)
}
