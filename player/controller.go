// Package player implements the playback/playlist state machine. The state is
// only ever derived from element events or explicit commands.
package player

import (
	"errors"
	"log/slog"
	"math"
	"sync"

	"apron/models"
	"apron/playlist"
	"apron/utils"

	"github.com/samber/lo"
)

var (
	ErrNotAttached = errors.New("no element attached")
	ErrInvalidRate = errors.New("playback rate must be positive")
	ErrOutOfRange  = errors.New("index out of range")
)

type Options struct {
	// Autoplay arms the resume intent so the first canplay starts playback.
	Autoplay bool
	Muted    bool
	// Volume in 0..100; 0 keeps the default of 100.
	Volume       int
	PlaybackRate float64
}

type Controller struct {
	mu        sync.Mutex
	resolved  *playlist.Resolved
	state     models.PlaybackState
	ready     bool
	started   bool
	resume    bool
	showSubs  bool
	el        Element
	unsub     func()
	listeners map[int]func(models.PlaybackState)
	nextID    int
	// pending holds states not yet delivered, oldest first. Only the goroutine
	// that set draining delivers them.
	pending  []models.PlaybackState
	draining bool
}

func New(resolved *playlist.Resolved, opt Options) *Controller {
	state := models.NewPlaybackState()
	if opt.Volume > 0 {
		state.Volume = lo.Clamp(opt.Volume, 0, 100)
	}
	if opt.PlaybackRate > 0 {
		state.PlaybackRate = opt.PlaybackRate
	}
	state.IsMuted = opt.Muted
	return &Controller{
		resolved:  resolved,
		state:     state,
		resume:    opt.Autoplay,
		showSubs:  true,
		listeners: map[int]func(models.PlaybackState){},
	}
}

// Attach subscribes to el, pushes the current volume, mute and rate to it and
// loads the current item. The returned detach is idempotent.
func (c *Controller) Attach(el Element) (func(), error) {
	if el == nil {
		return nil, ErrNotAttached
	}
	c.mu.Lock()
	if c.unsub != nil {
		c.unsub()
	}
	c.el = el
	c.ready = false
	c.started = false
	c.state.IsPlaying = false
	c.mu.Unlock()

	unsub := el.Subscribe(c.handle)

	c.mu.Lock()
	if c.el != el {
		// Replaced while subscribing.
		c.mu.Unlock()
		unsub()
		return func() {}, nil
	}
	c.unsub = unsub
	state := c.state
	url := c.resolved.URL(state.CurrentIndex)
	c.mu.Unlock()

	c.apply(el, state)
	if url != "" {
		err := el.Load(url)
		if err != nil {
			slog.Warn("failed to load", "error", err, "url", url)
		}
	}
	var once sync.Once
	return func() { once.Do(func() { c.detach(el) }) }, nil
}

func (c *Controller) apply(el Element, state models.PlaybackState) {
	errs := []error{
		el.SetVolume(float64(state.Volume) / 100),
		el.SetMuted(state.IsMuted),
		el.SetPlaybackRate(state.PlaybackRate),
	}
	if err := errors.Join(errs...); err != nil {
		slog.Warn("failed to apply element settings", "error", err)
	}
}

func (c *Controller) detach(el Element) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.el != el {
		return
	}
	if c.unsub != nil {
		c.unsub()
		c.unsub = nil
	}
	c.el = nil
}

// OnChange registers fn to receive the state after every mutation.
func (c *Controller) OnChange(fn func(models.PlaybackState)) (remove func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	id := c.nextID
	c.nextID++
	c.listeners[id] = fn
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		delete(c.listeners, id)
	}
}

// unlockAndNotify queues the state observed under c.mu and releases the lock.
// Listeners see states in mutation order: if another goroutine is already
// delivering, it picks this state up after the ones queued before it.
// Listeners always run without c.mu held.
func (c *Controller) unlockAndNotify() {
	c.pending = append(c.pending, c.state)
	if c.draining {
		c.mu.Unlock()
		return
	}
	c.draining = true
	for len(c.pending) > 0 {
		state := c.pending[0]
		c.pending = c.pending[1:]
		fns := make([]func(models.PlaybackState), 0, len(c.listeners))
		for _, fn := range c.listeners {
			fns = append(fns, fn)
		}
		c.mu.Unlock()
		for _, fn := range fns {
			fn(state)
		}
		c.mu.Lock()
	}
	c.pending = nil
	c.draining = false
	c.mu.Unlock()
}

func (c *Controller) handle(ev models.Event) {
	slog.Debug("element event", "event", ev.Type)
	c.mu.Lock()
	resume := false
	advance := false
	switch ev.Type {
	case models.EventPlay:
		c.state.IsPlaying = true
		c.started = true
	case models.EventPause:
		c.state.IsPlaying = false
	case models.EventTimeUpdate:
		c.state.CurrentTime = ev.Time
	case models.EventDurationChange:
		c.state.Duration = ev.Duration
	case models.EventVolumeChange:
		c.state.Volume = lo.Clamp(int(math.Round(ev.Volume*100)), 0, 100)
		c.state.IsMuted = ev.Muted
	case models.EventRateChange:
		if ev.Rate > 0 {
			c.state.PlaybackRate = ev.Rate
		}
	case models.EventEnded:
		if c.resolved.HasPlaylist() && c.state.CurrentIndex < c.resolved.Len()-1 {
			advance = true
		} else {
			c.state.IsPlaying = false
		}
	case models.EventLoadStart:
		c.ready = false
		c.started = false
		c.state.IsLoading = true
	case models.EventWaiting, models.EventSeeking:
		c.state.IsLoading = true
	case models.EventCanPlay:
		c.state.IsLoading = false
		c.ready = true
		resume = c.resume
		c.resume = false
	case models.EventPlaying:
		c.state.IsLoading = false
	}
	c.unlockAndNotify()

	if resume {
		c.Play()
	}
	if advance {
		// The element has already paused itself by the time ended fires, so
		// the advance always resumes.
		c.switchTo(func(cur int) int { return cur + 1 }, true)
	}
}

func (c *Controller) element() Element {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.el
}

// Play issues play on the element. A rejected play is logged and dropped:
// isPlaying simply never flips because no play event arrives.
func (c *Controller) Play() error {
	el := c.element()
	if el == nil {
		return ErrNotAttached
	}
	err := el.Play()
	if err != nil {
		slog.Debug("play rejected", "error", err)
	}
	return nil
}

func (c *Controller) Pause() error {
	el := c.element()
	if el == nil {
		return ErrNotAttached
	}
	return el.Pause()
}

func (c *Controller) TogglePlay() error {
	el := c.element()
	if el == nil {
		return ErrNotAttached
	}
	if el.Paused() {
		return c.Play()
	}
	return el.Pause()
}

// Seek updates currentTime right away; the element's timeupdate takes over
// afterwards.
func (c *Controller) Seek(t float64) error {
	if math.IsNaN(t) {
		return ErrOutOfRange
	}
	c.mu.Lock()
	el := c.el
	if el == nil {
		c.mu.Unlock()
		return ErrNotAttached
	}
	t = math.Max(t, 0)
	if d := c.state.Duration; !math.IsNaN(d) && !math.IsInf(d, 0) {
		t = math.Min(t, d)
	}
	c.state.CurrentTime = t
	c.unlockAndNotify()
	return el.SetCurrentTime(t)
}

func (c *Controller) Next() bool {
	return c.switchTo(func(cur int) int { return cur + 1 }, false)
}

func (c *Controller) Prev() bool {
	return c.switchTo(func(cur int) int { return cur - 1 }, false)
}

// Select jumps to a playlist index. Selecting the current index is a no-op.
func (c *Controller) Select(index int) bool {
	return c.switchTo(func(int) int { return index }, false)
}

func (c *Controller) switchTo(pick func(cur int) int, forceResume bool) bool {
	c.mu.Lock()
	if !c.resolved.HasPlaylist() {
		c.mu.Unlock()
		return false
	}
	index := pick(c.state.CurrentIndex)
	if index < 0 || index >= c.resolved.Len() || index == c.state.CurrentIndex {
		c.mu.Unlock()
		return false
	}
	c.resume = c.state.IsPlaying || forceResume
	c.state.CurrentIndex = index
	c.resetProgress()
	el := c.el
	url := c.resolved.URL(index)
	c.unlockAndNotify()

	slog.Info("playlist switched", "index", index, "resume", c.Switching())
	if el != nil {
		err := el.Load(url)
		if err != nil {
			slog.Warn("failed to load", "error", err, "url", url)
		}
	}
	return true
}

func (c *Controller) resetProgress() {
	c.state.CurrentTime = 0
	c.state.Duration = math.NaN()
	c.ready = false
	c.started = false
}

// SetSource replaces the resolved source and starts over at index 0, resuming
// if playback was running.
func (c *Controller) SetSource(resolved *playlist.Resolved) {
	c.mu.Lock()
	c.resolved = resolved
	c.resume = c.state.IsPlaying
	c.state.CurrentIndex = 0
	c.resetProgress()
	el := c.el
	url := resolved.URL(0)
	c.unlockAndNotify()

	if el == nil {
		return
	}
	if url == "" {
		slog.Info("nothing to play")
		c.mu.Lock()
		c.resume = false
		c.mu.Unlock()
		if err := el.Pause(); err != nil {
			slog.Debug("pause failed", "error", err)
		}
		return
	}
	err := el.Load(url)
	if err != nil {
		slog.Warn("failed to load", "error", err, "url", url)
	}
}

// SetVolume clamps v to 0..100. Raising the volume while muted unmutes.
func (c *Controller) SetVolume(v int) error {
	v = lo.Clamp(v, 0, 100)
	c.mu.Lock()
	c.state.Volume = v
	unmute := v > 0 && c.state.IsMuted
	if unmute {
		c.state.IsMuted = false
	}
	el := c.el
	c.unlockAndNotify()
	if el == nil {
		return nil
	}
	err := el.SetVolume(float64(v) / 100)
	if unmute {
		err = errors.Join(err, el.SetMuted(false))
	}
	return err
}

func (c *Controller) setMuted(muted bool) error {
	c.mu.Lock()
	c.state.IsMuted = muted
	el := c.el
	c.unlockAndNotify()
	if el == nil {
		return nil
	}
	return el.SetMuted(muted)
}

func (c *Controller) Mute() error {
	return c.setMuted(true)
}

func (c *Controller) Unmute() error {
	return c.setMuted(false)
}

func (c *Controller) ToggleMute() error {
	c.mu.Lock()
	muted := c.state.IsMuted
	c.mu.Unlock()
	return c.setMuted(!muted)
}

func (c *Controller) SetPlaybackRate(rate float64) error {
	if !(rate > 0) || math.IsInf(rate, 0) {
		return ErrInvalidRate
	}
	c.mu.Lock()
	c.state.PlaybackRate = rate
	el := c.el
	c.unlockAndNotify()
	if el == nil {
		return nil
	}
	return el.SetPlaybackRate(rate)
}

func (c *Controller) ToggleSubtitles() bool {
	c.mu.Lock()
	c.showSubs = !c.showSubs
	show := c.showSubs
	c.unlockAndNotify()
	return show
}

func (c *Controller) ShowSubtitles() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.showSubs
}

func (c *Controller) State() models.PlaybackState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Status() models.PlaybackStatus {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch {
	case c.state.IsPlaying:
		return models.StatusPlaying
	case c.started:
		return models.StatusPaused
	case c.ready:
		return models.StatusReady
	}
	return models.StatusIdle
}

// Switching reports whether a resume intent is pending.
func (c *Controller) Switching() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resume
}

func (c *Controller) Resolved() *playlist.Resolved {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved
}

func (c *Controller) CurrentItem() (models.PlaylistItem, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolved.Item(c.state.CurrentIndex)
}

func (c *Controller) VolumeLabel() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return utils.FormatVolume(c.state.Volume, c.state.IsMuted)
}

// Progress is the played percentage, 0 while the duration is unknown.
func (c *Controller) Progress() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Progress(c.state)
}

func Progress(state models.PlaybackState) float64 {
	d := state.Duration
	if math.IsNaN(d) || math.IsInf(d, 0) || d <= 0 {
		return 0
	}
	return state.CurrentTime / d * 100
}
