package main

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"apron/models"
	"apron/playlist"
	"apron/providers"
	"apron/publishers"

	"github.com/godbus/dbus/v5"
	"github.com/spf13/afero"
	"go.yaml.in/yaml/v4"
)

const (
	DefaultFetchTimeout = 10_000
	DefaultMaxBytes     = 4 << 20
)

type rawProvider struct {
	ID string `yaml:"id"`
}

type rawPublisher struct {
	ID      string    `yaml:"id"`
	Offset  int       `yaml:"offset"`
	Options yaml.Node `yaml:"options"`
}

type rawConfig struct {
	LogLevel     string            `yaml:"log_level"`
	Kind         string            `yaml:"kind"`
	Player       string            `yaml:"player"`
	Src          string            `yaml:"src"`
	Source       models.SourceNode `yaml:"source"`
	SourceFile   string            `yaml:"source_file"`
	Poster       string            `yaml:"poster"`
	Subtitle     string            `yaml:"subtitle"`
	Lyrics       string            `yaml:"lyrics"`
	TitlePrefix  string            `yaml:"title_prefix"`
	PrimaryColor string            `yaml:"primary_color"`
	Autoplay     bool              `yaml:"autoplay"`
	Loop         bool              `yaml:"loop"`
	Muted        bool              `yaml:"muted"`
	Preload      string            `yaml:"preload"`
	Volume       *int              `yaml:"volume"`
	PlaybackRate float64           `yaml:"playback_rate"`
	FetchTimeout *int              `yaml:"fetch_timeout"`
	MaxBytes     *int64            `yaml:"max_bytes"`
	UseCache     bool              `yaml:"use_cache"`
	Filters      []string          `yaml:"filters"`
	URLBlacklist []string          `yaml:"url_blacklist"`
	Providers    []*rawProvider    `yaml:"providers"`
	Publishers   []*rawPublisher   `yaml:"publishers"`
}

// sourceFile is the layout of the file named by source_file.
type sourceFile struct {
	Source models.SourceNode `yaml:"source"`
}

func CreateProvider(p *rawProvider, fsys afero.Fs, maxBytes int64) (providers.Provider, error) {
	var provider providers.Provider
	switch p.ID {
	case providers.HTTPProviderID:
		provider = providers.NewHTTPProvider(http.DefaultClient, maxBytes)
	case providers.FileProviderID:
		provider = providers.NewFileProvider(fsys, maxBytes)
	case providers.LRCLIBProviderID:
		provider = providers.NewLRCLIBProvider(http.DefaultClient, "")
	default:
		return nil, fmt.Errorf("unknown provider %q", p.ID)
	}
	return provider, nil
}

func CreatePublisher(p *rawPublisher, conn *dbus.Conn) (publishers.Publisher, error) {
	var publisher publishers.Publisher
	switch p.ID {
	case publishers.FilePublisherID:
		opt := &publishers.FilePublisherOptions{}
		err := p.Options.Decode(opt)
		if err != nil {
			return nil, err
		}
		publisher, err = publishers.NewFilePublisher(opt)
		if err != nil {
			return nil, err
		}
	case publishers.HTTPPublisherID:
		opt := &publishers.HTTPPublisherOptions{}
		err := p.Options.Decode(opt)
		if err != nil {
			return nil, err
		}
		publisher = publishers.NewHTTPPublisher(opt)
	case publishers.WebSocketPublisherID:
		opt := &publishers.WebSocketPublisherOptions{}
		err := p.Options.Decode(opt)
		if err != nil {
			return nil, err
		}
		publisher = publishers.NewWebSocketPublisher(opt)
	case publishers.DBusPublisherID:
		if conn == nil {
			return nil, fmt.Errorf("publisher %q needs a session bus", p.ID)
		}
		opt := &publishers.DBusPublisherOptions{}
		err := p.Options.Decode(opt)
		if err != nil {
			return nil, err
		}
		publisher = publishers.NewDBusPublisher(conn, opt)
	default:
		return nil, fmt.Errorf("unknown publisher %q", p.ID)
	}
	return publisher, nil
}

type Config struct {
	LogLevel     slog.Level
	Kind         models.Kind
	Player       string
	Src          string
	Source       models.Source
	SourceFile   string
	Poster       string
	Subtitle     string
	Lyrics       string
	TitlePrefix  string
	PrimaryColor string
	Autoplay     bool
	Loop         bool
	Muted        bool
	Preload      string
	Volume       int
	PlaybackRate float64
	FetchTimeout time.Duration
	UseCache     bool
	Filters      []string
	URLBlacklist []string
	Providers    providers.Chain
	Publishers   []*rawPublisher
}

func (c *Config) PlaylistOptions() playlist.Options {
	return playlist.Options{
		Kind:        c.Kind,
		TitlePrefix: c.TitlePrefix,
		Poster:      c.Poster,
		SubtitleURL: c.Subtitle,
		LyricsURL:   c.Lyrics,
	}
}

// Resolve resolves the configured source, re-reading source_file when set.
func (c *Config) Resolve(fsys afero.Fs) (*playlist.Resolved, error) {
	source := c.Source
	if c.SourceFile != "" {
		s, err := ReadSourceFile(fsys, c.SourceFile)
		if err != nil {
			return nil, err
		}
		source = s
	}
	return playlist.Resolve(c.Src, source, c.PlaylistOptions()), nil
}

func ReadSourceFile(fsys afero.Fs, path string) (models.Source, error) {
	buf, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}
	var sf sourceFile
	err = yaml.Unmarshal(buf, &sf)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sf.Source.Source, nil
}

func ParseConfig(fsys afero.Fs, path string) (*Config, error) {
	buf, err := afero.ReadFile(fsys, path)
	if err != nil {
		return nil, err
	}

	var raw rawConfig
	err = yaml.Unmarshal(buf, &raw)
	if err != nil {
		return nil, err
	}

	var maxBytes int64 = DefaultMaxBytes
	if raw.MaxBytes != nil {
		maxBytes = *raw.MaxBytes
	}
	rawProviders := raw.Providers
	if len(rawProviders) == 0 {
		rawProviders = []*rawProvider{
			{ID: providers.HTTPProviderID},
			{ID: providers.FileProviderID},
			{ID: providers.LRCLIBProviderID},
		}
	}
	chain := make(providers.Chain, 0, len(rawProviders))
	for _, p := range rawProviders {
		provider, err := CreateProvider(p, fsys, maxBytes)
		if err != nil {
			slog.Warn(err.Error())
			continue
		}
		chain = append(chain, provider)
	}

	var logLevel slog.Level
	switch raw.LogLevel {
	case "debug":
		logLevel = slog.LevelDebug
	case "info", "":
		logLevel = slog.LevelInfo
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", raw.LogLevel)
	}

	var kind models.Kind
	switch raw.Kind {
	case "video", "":
		kind = models.KindVideo
	case "audio":
		kind = models.KindAudio
	default:
		return nil, fmt.Errorf("unknown kind %q", raw.Kind)
	}

	switch raw.Preload {
	case "", "auto", "metadata", "none":
	default:
		return nil, fmt.Errorf("unknown preload %q", raw.Preload)
	}

	volume := 100
	if raw.Volume != nil {
		volume = min(max(*raw.Volume, 0), 100)
	}
	rate := raw.PlaybackRate
	if rate < 0 {
		return nil, fmt.Errorf("invalid playback rate %v", rate)
	}
	if rate == 0 {
		rate = 1
	}
	fetchTimeout := DefaultFetchTimeout
	if raw.FetchTimeout != nil {
		fetchTimeout = *raw.FetchTimeout
	}

	config := &Config{
		LogLevel:     logLevel,
		Kind:         kind,
		Player:       raw.Player,
		Src:          raw.Src,
		Source:       raw.Source.Source,
		SourceFile:   raw.SourceFile,
		Poster:       raw.Poster,
		Subtitle:     raw.Subtitle,
		Lyrics:       raw.Lyrics,
		TitlePrefix:  raw.TitlePrefix,
		PrimaryColor: raw.PrimaryColor,
		Autoplay:     raw.Autoplay,
		Loop:         raw.Loop,
		Muted:        raw.Muted,
		Preload:      raw.Preload,
		Volume:       volume,
		PlaybackRate: rate,
		FetchTimeout: time.Duration(fetchTimeout) * time.Millisecond,
		UseCache:     raw.UseCache,
		Filters:      raw.Filters,
		URLBlacklist: raw.URLBlacklist,
		Providers:    chain,
		Publishers:   raw.Publishers,
	}

	return config, nil
}
