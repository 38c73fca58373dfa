package tracks

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"apron/models"
	"apron/providers"
	"apron/utils"
)

// Cache stores fetched track text keyed by URL and kind.
type Cache interface {
	Get(url string, kind models.TrackKind) (string, error)
	Set(url string, kind models.TrackKind, text string) error
}

type Options struct {
	Cache Cache
	// Lines matching Filter are dropped after parsing.
	Filter *utils.Matcher
	// URLs matching Blacklist are never fetched.
	Blacklist *utils.Matcher
	Timeout   time.Duration
}

// Loader holds the active track of one kind. Only the most recent Select can
// install its result.
type Loader struct {
	kind     models.TrackKind
	provider providers.Provider
	opt      Options

	mu        sync.Mutex
	url       string
	text      string
	lines     models.Lines
	requestID int
	cancel    context.CancelFunc
	onLoaded  func(url string, lines models.Lines)
	wg        sync.WaitGroup
}

func NewLoader(kind models.TrackKind, provider providers.Provider, opt Options) *Loader {
	return &Loader{kind: kind, provider: provider, opt: opt}
}

// OnLoaded registers fn to run after a track is installed or cleared.
func (l *Loader) OnLoaded(fn func(url string, lines models.Lines)) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.onLoaded = fn
}

// Select switches to url and fetches it in the background. An empty url
// clears the track.
func (l *Loader) Select(url string) {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.requestID++
	id := l.requestID
	l.url = url
	l.text = ""
	l.lines = nil
	onLoaded := l.onLoaded
	if url == "" || l.opt.Blacklist.Contains([]byte(url)) {
		l.mu.Unlock()
		if url != "" {
			slog.Info("track url blacklisted", "kind", l.kind, "url", url)
		}
		if onLoaded != nil {
			onLoaded(url, nil)
		}
		return
	}
	var ctx context.Context
	var cancel context.CancelFunc
	if l.opt.Timeout > 0 {
		ctx, cancel = context.WithTimeout(context.Background(), l.opt.Timeout)
	} else {
		ctx, cancel = context.WithCancel(context.Background())
	}
	l.cancel = cancel
	l.wg.Add(1)
	l.mu.Unlock()

	go l.fetch(ctx, cancel, id, url)
}

func (l *Loader) fetch(ctx context.Context, cancel context.CancelFunc, id int, url string) {
	defer l.wg.Done()
	defer cancel()
	text, lines, err := l.load(ctx, url)

	l.mu.Lock()
	if id != l.requestID || url != l.url {
		l.mu.Unlock()
		slog.Debug("discarding stale track", "kind", l.kind, "url", url)
		return
	}
	if err != nil {
		l.mu.Unlock()
		if errors.Is(err, context.Canceled) {
			return
		}
		slog.Warn("failed to load track", "kind", l.kind, "url", url, "error", err)
		return
	}
	l.text = text
	l.lines = lines
	onLoaded := l.onLoaded
	l.mu.Unlock()

	slog.Info("track loaded", "kind", l.kind, "url", url, "lines", lines.Len())
	if onLoaded != nil {
		onLoaded(url, lines)
	}
}

func (l *Loader) load(ctx context.Context, url string) (string, models.Lines, error) {
	if l.opt.Cache != nil {
		text, err := l.opt.Cache.Get(url, l.kind)
		if err == nil {
			lines, err := parse(text, l.kind)
			if err == nil {
				slog.Debug("track cache hit", "kind", l.kind, "url", url)
				return text, utils.FilterLines(lines, l.opt.Filter), nil
			}
		}
	}
	text, err := fetchText(ctx, l.provider, url, l.kind)
	if err != nil {
		return "", nil, err
	}
	lines, err := parse(text, l.kind)
	if err != nil {
		return "", nil, err
	}
	if l.opt.Cache != nil {
		err = l.opt.Cache.Set(url, l.kind, text)
		if err != nil {
			slog.Warn("failed to cache track", "url", url, "error", err)
		}
	}
	return text, utils.FilterLines(lines, l.opt.Filter), nil
}

func (l *Loader) Kind() models.TrackKind {
	return l.kind
}

func (l *Loader) URL() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.url
}

// Text is the loaded WebVTT or LRC text.
func (l *Loader) Text() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.text
}

func (l *Loader) Lines() models.Lines {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lines
}

func (l *Loader) ActiveIndex(t float64) int {
	return l.Lines().ActiveIndex(t)
}

// Wait blocks until in-flight fetches finish.
func (l *Loader) Wait() {
	l.wg.Wait()
}

// Close cancels any fetch in flight and waits for it to return.
func (l *Loader) Close() {
	l.mu.Lock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.requestID++
	l.mu.Unlock()
	l.wg.Wait()
}
