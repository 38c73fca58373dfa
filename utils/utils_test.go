package utils

import (
	"math"
	"slices"
	"strings"
	"testing"

	"apron/models"
)

func TestParseLrcTime(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"01:02.500", 62.5},
		{"01:02.5", 62.5},
		{"01:02.50", 62.5},
		{"00:12.1234", 12.123},
		{"03:00", 180},
		{"bad", 0},
		{"1:2:3", 0},
		{"aa:bb.cc", 0},
	}
	for _, c := range cases {
		if got := ParseLrcTime(c.in); math.Abs(got-c.want) > 1e-9 {
			t.Errorf("ParseLrcTime(%q) = %v, want %v", c.in, got, c.want)
		}
	}
}

func TestFormatDisplayTime(t *testing.T) {
	cases := []struct {
		in   float64
		want string
	}{
		{math.NaN(), "00:00"},
		{math.Inf(1), "00:00"},
		{3661, "01:01:01"},
		{59, "00:59"},
		{59.999, "00:59"},
		{600.4, "10:00"},
		{0, "00:00"},
	}
	for _, c := range cases {
		if got := FormatDisplayTime(c.in); got != c.want {
			t.Errorf("FormatDisplayTime(%v) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestFormatVolume(t *testing.T) {
	if FormatVolume(40, true) != "muted" || FormatVolume(40, false) != "40%" {
		t.Fail()
	}
}

const srt = "\uFEFF1\r\n00:00:01,000 --> 00:00:02,500\r\n<font color=\"#fff\">Hello</font> <i>there</i>\r\n\r\n" +
	"2\n00:00:03.000 --> 00:00:04,000\nSecond\nline\n\n\n" +
	"3\nnot a timing line\nDropped\n\n" +
	"4\n00:00:05,000 --> 00:00:06,000\n\n" +
	"5\n00:00:07,000 --> 00:00:08,000\n<COLOR red></color>\n\n" +
	"6\n00:00:09,000 --> 00:00:10,000\nLast\n"

func TestSrtToWebVtt(t *testing.T) {
	vtt := SrtToWebVtt(srt)
	want := "WEBVTT\n\n" +
		"00:00:01.000 --> 00:00:02.500\nHello <i>there</i>\n\n" +
		"00:00:03.000 --> 00:00:04.000\nSecond\nline\n\n" +
		"00:00:09.000 --> 00:00:10.000\nLast\n\n"
	if vtt != want {
		t.Fatalf("got:\n%q\nwant:\n%q", vtt, want)
	}
}

func TestSrtToWebVttCueCount(t *testing.T) {
	inputs := []string{"", "garbage", srt, "1\n00:00:01,000 --> 00:00:02,000\nx"}
	for _, in := range inputs {
		out := SrtToWebVtt(in)
		if !strings.HasPrefix(out, WebVttHeader) {
			t.Fatalf("missing header for %q", in)
		}
		blocks := len(splitBlocks(normalizeText(in)))
		if cues := strings.Count(out, " --> "); cues > blocks {
			t.Fatalf("%d cues from %d blocks", cues, blocks)
		}
	}
}

func TestParseWebVtt(t *testing.T) {
	lines := ParseWebVtt(SrtToWebVtt(srt))
	if len(lines) != 3 {
		t.Fatalf("got %d lines", len(lines))
	}
	if lines[1].Time != 3 || lines[1].Text != "Second\nline" {
		t.Fatalf("got %+v", lines[1])
	}
	lines = ParseWebVtt("WEBVTT\n\nNOTE hi\n\nid\n01:00:00.250 --> 01:00:01.000 align:start\nHour\n")
	if len(lines) != 1 || lines[0].Time != 3600.25 {
		t.Fatalf("got %+v", lines)
	}
}

func TestIsSrtFile(t *testing.T) {
	for url, want := range map[string]bool{
		"a.srt":                true,
		"https://x/A.SRT":      true,
		"https://x/a.srt?t=1":  true,
		"a.vtt":                false,
		"a.srt.vtt":            false,
		"https://x/srt/a.json": false,
	} {
		if IsSrtFile(url) != want {
			t.Errorf("IsSrtFile(%q) != %v", url, want)
		}
	}
	if !IsLrcFile("song.LRC") || IsLrcFile("song.txt") {
		t.Fail()
	}
}

const lrc = `[ar:Someone]
[ti:Song]
[00:12.00]First
[00:05.50][00:20.123] Chorus
no tags here
[01:00]Minute
[00:12.00]Tie`

func TestParseLrc(t *testing.T) {
	lines := ParseLrc(lrc)
	want := models.Lines{
		{Time: 5.5, Text: "Chorus"},
		{Time: 12, Text: "First"},
		{Time: 12, Text: "Tie"},
		{Time: 20.123, Text: "Chorus"},
		{Time: 60, Text: "Minute"},
	}
	if !slices.Equal(lines, want) {
		t.Fatalf("got %+v", lines)
	}
	if !slices.IsSortedFunc(lines, compareLines) {
		t.Fatal("not sorted")
	}
	if len(ParseLrc("")) != 0 || len(ParseLrc("[ar:01]\nplain")) != 0 {
		t.Fatal("expected no lines")
	}
}

func TestFilterLines(t *testing.T) {
	m := NewStringMatcher([]string{"作词", "Lyrics by"})
	lines := models.Lines{{Time: 0, Text: "作词: someone"}, {Time: 1, Text: "keep"}, {Time: 2, Text: "Lyrics by x"}}
	got := FilterLines(lines, m)
	if len(got) != 1 || got[0].Text != "keep" {
		t.Fatalf("got %+v", got)
	}
	if len(FilterLines(lines, NewStringMatcher(nil))) != 3 {
		t.Fatal("nil matcher must keep everything")
	}
}

func TestFormatFilename(t *testing.T) {
	a := FormatFilename("https://x/a.srt", models.TrackSubtitle)
	b := FormatFilename("https://x/a.srt", models.TrackLyrics)
	if a == b || !strings.HasSuffix(a, ".subtitle.cache") {
		t.Fatalf("%s %s", a, b)
	}
	item := &models.PlaylistItem{Title: "One", URL: "1.mp4"}
	if FormatItem(item, 0) != "#1 One - 1.mp4" || FormatItem(nil, 0) != "<nil>" {
		t.Fatal(FormatItem(item, 0))
	}
}

func BenchmarkParseLrc(b *testing.B) {
	text := strings.Repeat(lrc+"\n", 50)
	for b.Loop() {
		ParseLrc(text)
	}
}
