package utils

import (
	"regexp"
	"slices"
	"strconv"
	"strings"

	"apron/models"
)

const WebVttHeader = "WEBVTT\n\n"

var (
	blankLines = regexp.MustCompile(`\n[ \t\f\v]*\n(?:[ \t\f\v]*\n)*`)
	srtTiming  = regexp.MustCompile(`(\d{2}:\d{2}:\d{2}[,.]\d{3})\s*-->\s*(\d{2}:\d{2}:\d{2}[,.]\d{3})`)
	fontTags   = regexp.MustCompile(`(?i)<font[^>]*>|</font>|<color[^>]*>|</color>`)
	vttStamp   = regexp.MustCompile(`^(?:(\d+):)?(\d{2}):(\d{2})\.(\d{3})`)
)

func normalizeText(s string) string {
	s = strings.TrimPrefix(s, "\uFEFF")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.ReplaceAll(s, "\r", "\n")
}

func splitBlocks(s string) []string {
	return blankLines.Split(strings.TrimSpace(s), -1)
}

// SrtToWebVtt converts SRT text to WebVTT. Blocks without a valid timing line
// or without text are dropped; the rest keep their order.
func SrtToWebVtt(srt string) string {
	b := &strings.Builder{}
	b.WriteString(WebVttHeader)
	for _, block := range splitBlocks(normalizeText(srt)) {
		lines := strings.Split(strings.TrimSpace(block), "\n")
		if len(lines) < 3 {
			continue
		}
		m := srtTiming.FindStringSubmatch(strings.TrimSpace(lines[1]))
		if m == nil {
			continue
		}
		text := strings.TrimSpace(strings.Join(lines[2:], "\n"))
		text = fontTags.ReplaceAllString(text, "")
		if strings.TrimSpace(text) == "" {
			continue
		}
		b.WriteString(SrtTimeToWebVtt(m[1]))
		b.WriteString(" --> ")
		b.WriteString(SrtTimeToWebVtt(m[2]))
		b.WriteByte('\n')
		b.WriteString(text)
		b.WriteString("\n\n")
	}
	return b.String()
}

// ParseWebVtt extracts cue start times and texts so subtitles can share the
// lyric line lookup.
func ParseWebVtt(vtt string) models.Lines {
	lines := models.Lines{}
	for _, block := range splitBlocks(normalizeText(vtt)) {
		rows := strings.Split(block, "\n")
		timing := -1
		for i, row := range rows {
			if strings.Contains(row, "-->") {
				timing = i
				break
			}
		}
		if timing == -1 {
			continue
		}
		start, ok := parseVttStamp(strings.TrimSpace(rows[timing]))
		if !ok {
			continue
		}
		text := strings.TrimSpace(strings.Join(rows[timing+1:], "\n"))
		if text == "" {
			continue
		}
		lines = append(lines, models.TimedLine{Time: start, Text: text})
	}
	slices.SortStableFunc(lines, compareLines)
	return lines
}

func parseVttStamp(s string) (float64, bool) {
	m := vttStamp.FindStringSubmatch(s)
	if m == nil {
		return 0, false
	}
	h := 0
	if m[1] != "" {
		h, _ = strconv.Atoi(m[1])
	}
	mm, _ := strconv.Atoi(m[2])
	ss, _ := strconv.Atoi(m[3])
	ms, _ := strconv.Atoi(m[4])
	return float64(h*3600+mm*60+ss) + float64(ms)/1000, true
}

func hasExt(url, ext string) bool {
	if i := strings.IndexAny(url, "?#"); i != -1 {
		url = url[:i]
	}
	return strings.HasSuffix(strings.ToLower(url), ext)
}

// IsSrtFile reports whether url names an SRT file. Anything else is taken as WebVTT.
func IsSrtFile(url string) bool {
	return hasExt(url, ".srt")
}

func IsLrcFile(url string) bool {
	return hasExt(url, ".lrc")
}
