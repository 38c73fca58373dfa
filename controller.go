package main

import (
	"log/slog"
	"sync"
	"time"

	"apron/models"
	"apron/player"
	"apron/playlist"
	"apron/providers"
	"apron/publishers"
	"apron/tracks"
	"apron/utils"
)

type PublisherEntry struct {
	publishers.Publisher
	ch        chan *models.Frame
	done      chan struct{}
	Offset    int
	SentIndex int
	sent      frameKey
}

// frameKey is what a publisher has last been told, apart from the line.
type frameKey struct {
	status  models.PlaybackStatus
	index   int
	volume  string
	loading bool
	valid   bool
}

func NewPublisherEntry(publisher publishers.Publisher, offset int) *PublisherEntry {
	p := &PublisherEntry{
		Publisher: publisher,
		ch:        make(chan *models.Frame, 16),
		done:      make(chan struct{}),
		Offset:    offset,
		SentIndex: -1,
	}
	go func() {
		defer close(p.done)
		for frame := range p.ch {
			err := p.Publisher.Send(frame)
			if err != nil {
				slog.Error("failed to send", "error", err, "publisher", p.ID())
			}
		}
	}()
	return p
}

func (p *PublisherEntry) Send(frame *models.Frame) {
	select {
	case p.ch <- frame:
	default:
		slog.Debug("publisher busy, frame dropped", "publisher", p.ID())
	}
}

// We send a nil frame to tell adapters that nothing is playable
func (p *PublisherEntry) Clear() {
	p.Send(nil)
	p.SentIndex = -1
	p.sent = frameKey{}
}

func (p *PublisherEntry) Exit() {
	close(p.ch)
	<-p.done
	err := p.Publisher.Exit()
	if err != nil {
		slog.Warn("failed to close publisher", "error", err, "publisher", p.ID())
	}
}

// Controller follows the playback controller, keeps the text tracks of the
// current item loaded and publishes frames.
type Controller struct {
	player       *player.Controller
	subtitles    *tracks.Loader
	lyrics       *tracks.Loader
	publishers   []*PublisherEntry
	kind         models.Kind
	primaryColor string

	mu       sync.Mutex
	index    int
	resolved *playlist.Resolved
	cleared  bool
	// closed is set by Exit; publisher channels are closed after it.
	closed   bool
	remove   func()
}

type ControllerOptions struct {
	player       *player.Controller
	provider     providers.Provider
	publishers   []*PublisherEntry
	kind         models.Kind
	primaryColor string
	fetchTimeout time.Duration
	filters      []string
	urlBlacklist []string
	cache        tracks.Cache
}

func NewController(opt *ControllerOptions) *Controller {
	topt := tracks.Options{
		Cache:     opt.cache,
		Filter:    utils.NewStringMatcher(opt.filters),
		Blacklist: utils.NewStringMatcher(opt.urlBlacklist),
		Timeout:   opt.fetchTimeout,
	}
	c := &Controller{
		player:       opt.player,
		subtitles:    tracks.NewLoader(models.TrackSubtitle, opt.provider, topt),
		lyrics:       tracks.NewLoader(models.TrackLyrics, opt.provider, topt),
		publishers:   opt.publishers,
		kind:         opt.kind,
		primaryColor: opt.primaryColor,
		index:        -1,
	}
	c.subtitles.OnLoaded(c.onTrackLoaded)
	c.lyrics.OnLoaded(c.onTrackLoaded)
	return c
}

func (c *Controller) Serve() {
	remove := c.player.OnChange(c.onChange)
	c.mu.Lock()
	c.remove = remove
	c.mu.Unlock()
	c.onChange(c.player.State())
}

func (c *Controller) onChange(state models.PlaybackState) {
	resolved := c.player.Resolved()
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	switched := state.CurrentIndex != c.index || resolved != c.resolved
	if switched {
		c.index = state.CurrentIndex
		c.resolved = resolved
		for _, p := range c.publishers {
			p.SentIndex = -1
		}
	}
	c.mu.Unlock()

	if switched {
		item, _ := resolved.Item(state.CurrentIndex)
		slog.Info("playback changed", "item", utils.FormatItem(&item, state.CurrentIndex))
		subtitle, lyrics := item.SubtitleURL, item.LyricsURL
		if c.kind == models.KindAudio {
			subtitle = ""
		} else {
			lyrics = ""
		}
		c.subtitles.Select(subtitle)
		c.lyrics.Select(lyrics)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.publish(state)
}

func (c *Controller) onTrackLoaded(url string, lines models.Lines) {
	state := c.player.State()
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.publishers {
		p.SentIndex = -1
		p.sent = frameKey{}
	}
	c.publish(state)
}

func (c *Controller) activeLines() models.Lines {
	if c.kind == models.KindAudio {
		return c.lyrics.Lines()
	}
	if !c.player.ShowSubtitles() {
		return nil
	}
	return c.subtitles.Lines()
}

// publish sends a frame to every publisher whose view is out of date. Called
// with c.mu held.
func (c *Controller) publish(state models.PlaybackState) {
	if c.closed {
		return
	}
	item, ok := c.player.CurrentItem()
	if !ok {
		if !c.cleared {
			slog.Info("nothing playable")
			for _, p := range c.publishers {
				p.Clear()
			}
			c.cleared = true
		}
		return
	}
	c.cleared = false
	key := frameKey{
		status:  c.player.Status(),
		index:   state.CurrentIndex,
		volume:  utils.FormatVolume(state.Volume, state.IsMuted),
		loading: state.IsLoading,
		valid:   true,
	}
	lines := c.activeLines()
	for _, p := range c.publishers {
		idx := lines.IndexOf(state.CurrentTime, p.Offset)
		if idx == p.SentIndex && key == p.sent {
			continue
		}
		p.SentIndex = idx
		p.sent = key
		p.Send(c.frame(state, key, item, lines, idx))
	}
}

func (c *Controller) frame(state models.PlaybackState, key frameKey, item models.PlaylistItem, lines models.Lines, idx int) *models.Frame {
	return &models.Frame{
		Status:       key.status.String(),
		State:        state,
		CurrentTime:  utils.FormatDisplayTime(state.CurrentTime),
		Duration:     utils.FormatDisplayTime(state.Duration),
		Progress:     player.Progress(state),
		Volume:       key.volume,
		Loading:      state.IsLoading,
		Index:        state.CurrentIndex,
		Item:         item,
		LineIndex:    idx,
		Line:         lines.Get(idx),
		PrimaryColor: c.primaryColor,
	}
}

func (c *Controller) Exit() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	remove := c.remove
	c.remove = nil
	c.mu.Unlock()
	if remove != nil {
		remove()
	}
	c.subtitles.Close()
	c.lyrics.Close()
	for _, p := range c.publishers {
		p.Exit()
	}
}
