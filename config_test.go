package main

import (
	"log/slog"
	"testing"
	"time"

	"apron/models"
	"apron/publishers"

	"github.com/spf13/afero"
)

const testConfig = `
log_level: debug
kind: audio
player: mpv
volume: 40
fetch_timeout: 500
filters: ["作词"]
source:
  - title: One
    url: /music/1.flac
    lyrics: /music/1.lrc
  - title: Two
    url: /music/2.flac
providers:
  - id: file
  - id: nope
publishers:
  - id: websocket
    offset: 300
    options:
      address: 127.0.0.1:9000
`

func TestParseConfig(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/config.yaml", []byte(testConfig), 0o644)
	config, err := ParseConfig(fs, "/config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if config.LogLevel != slog.LevelDebug || config.Kind != models.KindAudio || config.Player != "mpv" {
		t.Fatalf("%+v", config)
	}
	if config.Volume != 40 || config.PlaybackRate != 1 || config.FetchTimeout != 500*time.Millisecond {
		t.Fatalf("%+v", config)
	}
	if len(config.Providers) != 1 || config.Providers[0].ID() != "file" {
		t.Fatal("unknown providers are skipped")
	}
	if len(config.Publishers) != 1 || config.Publishers[0].Offset != 300 {
		t.Fatal("publishers")
	}
	opt := &publishers.WebSocketPublisherOptions{}
	if err = config.Publishers[0].Options.Decode(opt); err != nil || opt.Address != "127.0.0.1:9000" {
		t.Fatal(opt.Address, err)
	}
	items, ok := config.Source.(models.ItemList)
	if !ok || len(items) != 2 || items[0].LyricsURL != "/music/1.lrc" {
		t.Fatalf("%#v", config.Source)
	}
}

func TestParseConfigDefaults(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/config.yaml", []byte("src: /v.mp4\nsubtitle: /v.srt\n"), 0o644)
	config, err := ParseConfig(fs, "/config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if config.Kind != models.KindVideo || config.Volume != 100 || len(config.Providers) != 3 {
		t.Fatalf("%+v", config)
	}
	resolved, err := config.Resolve(fs)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.HasPlaylist() || resolved.URL(0) != "/v.mp4" || resolved.SubtitleURL(0) != "/v.srt" {
		t.Fatal("src must resolve to a single item")
	}
}

func TestParseConfigErrors(t *testing.T) {
	for _, raw := range []string{"log_level: loud", "kind: image", "playback_rate: -1", "preload: all", "source: {a: 1}"} {
		fs := afero.NewMemMapFs()
		afero.WriteFile(fs, "/config.yaml", []byte(raw), 0o644)
		if _, err := ParseConfig(fs, "/config.yaml"); err == nil {
			t.Errorf("%q must be rejected", raw)
		}
	}
}

func TestResolveSourceFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/config.yaml", []byte("source_file: /list.yaml\nsource: ignored.mp4\n"), 0o644)
	afero.WriteFile(fs, "/list.yaml", []byte("source: [a.mp4, b.mp4]\n"), 0o644)
	config, err := ParseConfig(fs, "/config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	resolved, err := config.Resolve(fs)
	if err != nil {
		t.Fatal(err)
	}
	if resolved.Len() != 2 || resolved.Items()[1].Title != "Item 2" {
		t.Fatalf("%+v", resolved.Items())
	}
	fs.Remove("/list.yaml")
	if _, err = config.Resolve(fs); err == nil {
		t.Fatal("missing source file")
	}
}
