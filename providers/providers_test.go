package providers

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/spf13/afero"
)

func TestHTTPProvider(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.srt":
			w.Write([]byte("1\n00:00:01,000 --> 00:00:02,000\nHi\n"))
		case "/busy":
			w.WriteHeader(http.StatusTooManyRequests)
		case "/big":
			w.Write([]byte(strings.Repeat("x", 64)))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	p := NewHTTPProvider(srv.Client(), 32)
	if !p.Supports(srv.URL) || p.Supports("file:///a.srt") {
		t.Fatal("supports")
	}
	b, err := p.Fetch(ctx, srv.URL+"/ok.srt")
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(b), "Hi") {
		t.Fatal(string(b))
	}
	if _, err = p.Fetch(ctx, srv.URL+"/missing"); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}
	if _, err = p.Fetch(ctx, srv.URL+"/busy"); !errors.Is(err, ErrRateLimit) {
		t.Fatal(err)
	}
	if _, err = p.Fetch(ctx, srv.URL+"/big"); !errors.Is(err, ErrTooLarge) {
		t.Fatal(err)
	}
}

func TestHTTPProviderCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPProvider(srv.Client(), 0).Fetch(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) {
		t.Fatal(err)
	}
}

func TestFileProvider(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "/subs/a.lrc", []byte("[00:01.00]a"), 0o644)
	p := NewFileProvider(fs, 0)
	for _, u := range []string{"/subs/a.lrc", "file:///subs/a.lrc"} {
		if !p.Supports(u) {
			t.Fatalf("supports %s", u)
		}
		b, err := p.Fetch(context.Background(), u)
		if err != nil || string(b) != "[00:01.00]a" {
			t.Fatal(string(b), err)
		}
	}
	if p.Supports("https://x/a.lrc") || p.Supports("lrclib:?track_name=a") {
		t.Fatal("foreign schemes")
	}
	if _, err := p.Fetch(context.Background(), "/nope"); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}
	if _, err := NewFileProvider(fs, 4).Fetch(context.Background(), "/subs/a.lrc"); !errors.Is(err, ErrTooLarge) {
		t.Fatal(err)
	}
}

func TestLRCLIB(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/get" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("track_name") {
		case "Haru":
			if r.URL.Query().Get("artist_name") != "CRYCHIC" {
				t.Errorf("artist %q", r.URL.Query().Get("artist_name"))
			}
			w.Write([]byte(`{"trackName":"Haru","artistName":"CRYCHIC","syncedLyrics":"[00:12.00]line","duration":258}`))
		case "Plain":
			w.Write([]byte(`{"trackName":"Plain","syncedLyrics":""}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	ctx := context.Background()
	p := NewLRCLIBProvider(srv.Client(), srv.URL)
	b, err := p.Fetch(ctx, "lrclib:?track_name=Haru&artist_name=CRYCHIC")
	if err != nil {
		t.Fatal(err)
	}
	if string(b) != "[00:12.00]line" {
		t.Fatal(string(b))
	}
	if _, err = p.Fetch(ctx, "lrclib:?track_name=Plain"); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}
	if _, err = p.Fetch(ctx, "lrclib:?track_name=Other"); !errors.Is(err, ErrNotFound) {
		t.Fatal(err)
	}
	if _, err = p.Fetch(ctx, "lrclib:?artist_name=x"); !errors.Is(err, ErrUnsupported) {
		t.Fatal(err)
	}
}

func TestChain(t *testing.T) {
	fs := afero.NewMemMapFs()
	afero.WriteFile(fs, "a.vtt", []byte("WEBVTT"), 0o644)
	chain := Chain{NewHTTPProvider(nil, 0), NewFileProvider(fs, 0)}
	b, err := chain.Fetch(context.Background(), "a.vtt")
	if err != nil || string(b) != "WEBVTT" {
		t.Fatal(err)
	}
	if _, err = chain.Fetch(context.Background(), "ftp://x/a.vtt"); !errors.Is(err, ErrUnsupported) {
		t.Fatal(err)
	}
	if chain.Supports("lrclib:?track_name=a") {
		t.Fatal("lrclib is not in the chain")
	}
}

func TestDecode(t *testing.T) {
	cases := []struct {
		in   []byte
		want string
	}{
		{[]byte("hi"), "hi"},
		{[]byte("\xef\xbb\xbfhi"), "hi"},
		{[]byte("\xff\xfeh\x00i\x00"), "hi"},
		{[]byte("\xfe\xff\x00h\x00i"), "hi"},
	}
	for _, c := range cases {
		if got := Decode(c.in); got != c.want {
			t.Errorf("Decode(%q) = %q", c.in, got)
		}
	}
}
