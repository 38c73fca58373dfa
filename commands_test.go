package main

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"apron/tracks"

	"github.com/spf13/afero"
)

func run(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(fs)
	out := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestConvertCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/a.srt", []byte("1\r\n00:00:01,000 --> 00:00:02,500\r\nHello\r\n"), 0o644)
	out, err := run(t, fs, "convert", "/a.srt")
	if err != nil {
		t.Fatal(err)
	}
	if out != "WEBVTT\n\n00:00:01.000 --> 00:00:02.500\nHello\n\n" {
		t.Fatalf("%q", out)
	}
	if _, err = run(t, fs, "convert", "/a.srt", "-o", "/a.vtt"); err != nil {
		t.Fatal(err)
	}
	b, _ := afero.ReadFile(fs, "/a.vtt")
	if string(b) != out {
		t.Fatalf("%q", b)
	}
}

func TestLyricsCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/a.lrc", []byte("[00:01.00]one\n[01:05.50]two\n"), 0o644)
	out, err := run(t, fs, "lyrics", "/a.lrc", "--at", "70")
	if err != nil {
		t.Fatal(err)
	}
	if out != "  [00:01] one\n> [01:05] two\n" {
		t.Fatalf("%q", out)
	}
	afero.WriteFile(fs, "/plain.lrc", []byte("no tags"), 0o644)
	if _, err = run(t, fs, "lyrics", "/plain.lrc"); !errors.Is(err, tracks.ErrNotSynced) {
		t.Fatal(err)
	}
}

func TestResolveCommand(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/config.yaml", []byte("title_prefix: Episode\nsource: [a.mp4, b.mp4]\n"), 0o644)
	out, err := run(t, fs, "resolve", "--config", "/config.yaml")
	if err != nil {
		t.Fatal(err)
	}
	if out != "#1 Episode 1 - a.mp4\n#2 Episode 2 - b.mp4\n" {
		t.Fatalf("%q", out)
	}
	afero.WriteFile(fs, "/empty.yaml", []byte("kind: audio\nsource: a.mp3\n"), 0o644)
	out, _ = run(t, fs, "resolve", "-c", "/empty.yaml")
	if !strings.Contains(out, "nothing playable") {
		t.Fatalf("%q", out)
	}
}
