package utils

import (
	"fmt"
	"math"
	"strings"
)

// ParseLrcTime converts `mm:ss`, `mm:ss.xx` or `mm:ss.xxx` to seconds.
// Malformed input yields 0.
func ParseLrcTime(tag string) float64 {
	parts := strings.Split(tag, ":")
	if len(parts) != 2 {
		return 0
	}
	minutes, ok := leadingInt(parts[0])
	if !ok {
		return 0
	}
	secParts := strings.Split(parts[1], ".")
	seconds, ok := leadingInt(secParts[0])
	if !ok {
		return 0
	}
	millis := 0
	if len(secParts) > 1 && secParts[1] != "" {
		frac := secParts[1]
		if len(frac) < 3 {
			frac += strings.Repeat("0", 3-len(frac))
		}
		millis, ok = leadingInt(frac[:3])
		if !ok {
			return 0
		}
	}
	return float64((minutes*60+seconds)*1000+millis) / 1000
}

// leadingInt parses the leading decimal digits of s, after optional spaces.
func leadingInt(s string) (int, bool) {
	s = strings.TrimSpace(s)
	n := 0
	i := 0
	for ; i < len(s); i++ {
		ch := s[i] - '0'
		if ch > 9 {
			break
		}
		n = n*10 + int(ch)
	}
	return n, i > 0
}

// FormatDisplayTime renders seconds as MM:SS, or HH:MM:SS once past an hour.
// Every field is truncated, not rounded.
func FormatDisplayTime(seconds float64) string {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) {
		return "00:00"
	}
	if seconds < 0 {
		seconds = 0
	}
	hours := int(math.Floor(seconds / 3600))
	minutes := int(math.Floor(math.Mod(seconds, 3600) / 60))
	secs := int(math.Floor(math.Mod(seconds, 60)))
	if hours > 0 {
		return fmt.Sprintf("%02d:%02d:%02d", hours, minutes, secs)
	}
	return fmt.Sprintf("%02d:%02d", minutes, secs)
}

// SrtTimeToWebVtt turns `HH:MM:SS,mmm` into `HH:MM:SS.mmm`.
func SrtTimeToWebVtt(t string) string {
	return strings.Replace(t, ",", ".", 1)
}

func FormatVolume(volume int, muted bool) string {
	if muted {
		return "muted"
	}
	return fmt.Sprintf("%d%%", volume)
}
