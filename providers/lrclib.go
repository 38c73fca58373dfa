package providers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

const LRCLIBBaseURL = "https://lrclib.net"

// LRCLIBProvider resolves `lrclib:?track_name=...&artist_name=...` URLs to the
// synced lyrics of the exact match.
type LRCLIBProvider struct {
	client  *http.Client
	baseURL string
}

type LRCLIBResponse struct {
	TrackName    string  `json:"trackName"`
	ArtistName   string  `json:"artistName"`
	SyncedLyrics string  `json:"syncedLyrics"`
	Duration     float64 `json:"duration"`
}

func NewLRCLIBProvider(client *http.Client, baseURL string) *LRCLIBProvider {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = LRCLIBBaseURL
	}
	return &LRCLIBProvider{client: client, baseURL: strings.TrimSuffix(baseURL, "/")}
}

func (*LRCLIBProvider) ID() string {
	return LRCLIBProviderID
}

func (*LRCLIBProvider) Supports(u string) bool {
	return strings.HasPrefix(u, "lrclib:")
}

func (p *LRCLIBProvider) Fetch(ctx context.Context, u string) ([]byte, error) {
	query, err := url.ParseQuery(strings.TrimPrefix(strings.TrimPrefix(u, "lrclib:"), "?"))
	if err != nil || query.Get("track_name") == "" {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, u)
	}
	resp, err := get(ctx, p.client, p.baseURL+"/api/get?"+query.Encode(), "User-Agent", userAgent)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, query.Get("track_name"))
	}
	body := LRCLIBResponse{}
	err = json.NewDecoder(resp.Body).Decode(&body)
	if err != nil {
		return nil, err
	}
	if body.SyncedLyrics == "" {
		return nil, fmt.Errorf("%w: no synced lyrics for %s", ErrNotFound, body.TrackName)
	}
	return []byte(body.SyncedLyrics), nil
}
