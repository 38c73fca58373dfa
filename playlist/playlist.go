// Package playlist normalizes the polymorphic source description into a
// canonical playlist.
package playlist

import (
	"slices"
	"strconv"

	"apron/models"

	"github.com/samber/lo"
)

const DefaultTitlePrefix = "Item"

type Options struct {
	Kind models.Kind
	// TitlePrefix names bare URLs as "{prefix} {n}".
	TitlePrefix string
	// Single-source auxiliary props, ignored once a playlist is active.
	Poster      string
	SubtitleURL string
	LyricsURL   string
}

// Resolved is either a playlist, a single item, or nothing playable.
type Resolved struct {
	playlist []models.PlaylistItem
	single   *models.PlaylistItem
}

// Resolve applies the precedence rules: an explicit src always wins and
// disables playlist mode; then a single string source (video only); then a
// list of URLs or items. Empty lists resolve to nothing playable.
func Resolve(src string, source models.Source, opt Options) *Resolved {
	if src != "" {
		return singleOf(src, opt)
	}
	prefix := opt.TitlePrefix
	if prefix == "" {
		prefix = DefaultTitlePrefix
	}
	switch s := source.(type) {
	case models.Single:
		if opt.Kind == models.KindAudio || s == "" {
			return &Resolved{}
		}
		return singleOf(string(s), opt)
	case models.URLList:
		if len(s) == 0 {
			return &Resolved{}
		}
		return &Resolved{playlist: lo.Map(s, func(url string, i int) models.PlaylistItem {
			return models.PlaylistItem{Title: prefix + " " + strconv.Itoa(i+1), URL: url}
		})}
	case models.ItemList:
		if len(s) == 0 {
			return &Resolved{}
		}
		return &Resolved{playlist: slices.Clone([]models.PlaylistItem(s))}
	}
	return &Resolved{}
}

func singleOf(url string, opt Options) *Resolved {
	return &Resolved{single: &models.PlaylistItem{
		URL:         url,
		Poster:      opt.Poster,
		SubtitleURL: opt.SubtitleURL,
		LyricsURL:   opt.LyricsURL,
	}}
}

func (r *Resolved) HasPlaylist() bool {
	return r != nil && r.playlist != nil
}

func (r *Resolved) Playable() bool {
	return r != nil && (r.single != nil || len(r.playlist) > 0)
}

// Len is the number of playable items: the playlist length, 1 in single mode.
func (r *Resolved) Len() int {
	switch {
	case r == nil:
		return 0
	case r.single != nil:
		return 1
	}
	return len(r.playlist)
}

// Items returns a copy of the playlist, nil unless a playlist is active.
func (r *Resolved) Items() []models.PlaylistItem {
	if !r.HasPlaylist() {
		return nil
	}
	return slices.Clone(r.playlist)
}

// Item returns the item at index. In single mode every index maps to the
// single item.
func (r *Resolved) Item(index int) (models.PlaylistItem, bool) {
	if r == nil {
		return models.PlaylistItem{}, false
	}
	if r.single != nil {
		return *r.single, true
	}
	if index < 0 || index >= len(r.playlist) {
		return models.PlaylistItem{}, false
	}
	return r.playlist[index], true
}

func (r *Resolved) URL(index int) string {
	item, _ := r.Item(index)
	return item.URL
}

func (r *Resolved) Poster(index int) string {
	item, _ := r.Item(index)
	return item.Poster
}

func (r *Resolved) SubtitleURL(index int) string {
	item, _ := r.Item(index)
	return item.SubtitleURL
}

func (r *Resolved) LyricsURL(index int) string {
	item, _ := r.Item(index)
	return item.LyricsURL
}
