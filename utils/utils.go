package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"apron/models"

	"github.com/cloudflare/ahocorasick"
)

func FormatItem(item *models.PlaylistItem, index int) string {
	if item == nil || item.URL == "" {
		return "<nil>"
	}
	builder := &strings.Builder{}
	builder.WriteByte('#')
	builder.WriteString(strconv.Itoa(index + 1))
	builder.WriteByte(' ')
	if item.Title != "" {
		builder.WriteString(item.Title)
		builder.WriteString(" - ")
	}
	builder.WriteString(item.URL)
	return builder.String()
}

// FormatFilename maps a text-track URL to a stable cache file name.
func FormatFilename(url string, kind models.TrackKind) string {
	sum := sha256.Sum256([]byte(url))
	return hex.EncodeToString(sum[:12]) + "." + kind.String() + ".cache"
}

// Matcher reports whether a text contains any of a fixed set of substrings.
// A nil Matcher matches nothing.
type Matcher struct {
	m *ahocorasick.Matcher
}

func NewStringMatcher(dictionary []string) *Matcher {
	if len(dictionary) == 0 {
		return nil
	}
	return &Matcher{m: ahocorasick.NewStringMatcher(dictionary)}
}

func (m *Matcher) Contains(b []byte) bool {
	if m == nil {
		return false
	}
	return m.m.Contains(b)
}

// FilterLines drops the lines whose text matches m.
func FilterLines(lines models.Lines, m *Matcher) models.Lines {
	if m == nil {
		return lines
	}
	filtered := make(models.Lines, 0, len(lines))
	for _, line := range lines {
		if !m.Contains([]byte(line.Text)) {
			filtered = append(filtered, line)
		}
	}
	return filtered
}
