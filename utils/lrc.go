package utils

import (
	"cmp"
	"regexp"
	"slices"
	"strings"

	"apron/models"
)

// Tags like [ar:01] never match, but [12:34] metadata would.
var lrcTag = regexp.MustCompile(`\[(\d{2}:\d{2}(?:\.\d{2,3})?)\]`)

// ParseLrc returns one line per time tag, sorted by time. Lines without a
// time tag are skipped.
func ParseLrc(lrc string) models.Lines {
	lines := models.Lines{}
	for _, line := range strings.Split(lrc, "\n") {
		tags := lrcTag.FindAllStringSubmatch(line, -1)
		if len(tags) == 0 {
			continue
		}
		text := strings.TrimSpace(lrcTag.ReplaceAllString(line, ""))
		for _, tag := range tags {
			lines = append(lines, models.TimedLine{Time: ParseLrcTime(tag[1]), Text: text})
		}
	}
	slices.SortStableFunc(lines, compareLines)
	return lines
}

func compareLines(a, b models.TimedLine) int {
	return cmp.Compare(a.Time, b.Time)
}
