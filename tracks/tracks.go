// Package tracks loads subtitle and lyrics text tracks through providers.
package tracks

import (
	"context"
	"errors"
	"fmt"

	"apron/models"
	"apron/providers"
	"apron/utils"
)

var (
	ErrNoTrack   = errors.New("no track")
	ErrNotSynced = errors.New("lyrics have no timed lines")
)

// LoadWebVtt fetches a subtitle file and returns it as WebVTT text, converting
// SRT by file extension.
func LoadWebVtt(ctx context.Context, p providers.Provider, url string) (string, error) {
	return fetchText(ctx, p, url, models.TrackSubtitle)
}

func LoadLyrics(ctx context.Context, p providers.Provider, url string) (models.Lines, error) {
	text, err := fetchText(ctx, p, url, models.TrackLyrics)
	if err != nil {
		return nil, err
	}
	return parse(text, models.TrackLyrics)
}

func fetchText(ctx context.Context, p providers.Provider, url string, kind models.TrackKind) (string, error) {
	if url == "" {
		return "", ErrNoTrack
	}
	b, err := p.Fetch(ctx, url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", kind, err)
	}
	text := providers.Decode(b)
	if kind == models.TrackSubtitle && utils.IsSrtFile(url) {
		text = utils.SrtToWebVtt(text)
	}
	return text, nil
}

func parse(text string, kind models.TrackKind) (models.Lines, error) {
	if kind == models.TrackSubtitle {
		return utils.ParseWebVtt(text), nil
	}
	lines := utils.ParseLrc(text)
	if len(lines) == 0 {
		return nil, ErrNotSynced
	}
	return lines, nil
}
