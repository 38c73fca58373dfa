package models

import (
	"math"
	"sort"
)

type PlaybackStatus int

const (
	StatusIdle PlaybackStatus = iota
	StatusReady
	StatusPlaying
	StatusPaused
)

func (s PlaybackStatus) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusReady:
		return "ready"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	}
	return "unknown"
}

// Kind selects audio or video resolution rules.
type Kind int

const (
	KindVideo Kind = iota
	KindAudio
)

func (k Kind) String() string {
	if k == KindAudio {
		return "audio"
	}
	return "video"
}

type TrackKind int

const (
	TrackSubtitle TrackKind = iota
	TrackLyrics
)

func (k TrackKind) String() string {
	if k == TrackLyrics {
		return "lyrics"
	}
	return "subtitle"
}

type TimedLine struct {
	Time float64 // seconds
	Text string
}

// Lines is sorted ascending by Time.
type Lines []TimedLine

func (l Lines) Len() int {
	return len(l)
}

// ActiveIndex returns the rightmost line whose time is <= t, or -1.
func (l Lines) ActiveIndex(t float64) int {
	return sort.Search(len(l), func(i int) bool { return l[i].Time > t }) - 1
}

// IndexOf is ActiveIndex with the offset (ms) subtracted from the position.
func (l Lines) IndexOf(t float64, offset int) int {
	return l.ActiveIndex(t - float64(offset)/1000)
}

func (l Lines) Get(index int) string {
	if index < 0 || index >= len(l) {
		return ""
	}
	return l[index].Text
}

type PlaybackState struct {
	IsPlaying    bool
	CurrentTime  float64
	Duration     float64 // NaN until known
	Volume       int     // 0..100
	IsMuted      bool
	PlaybackRate float64
	CurrentIndex int
	IsLoading    bool
}

func NewPlaybackState() PlaybackState {
	return PlaybackState{
		Duration:     math.NaN(),
		Volume:       100,
		PlaybackRate: 1,
	}
}

type EventType int

const (
	EventPlay EventType = iota
	EventPause
	EventTimeUpdate
	EventDurationChange
	EventVolumeChange
	EventRateChange
	EventEnded
	EventWaiting
	EventSeeking
	EventCanPlay
	EventPlaying
	EventLoadStart
)

var eventNames = [...]string{
	EventPlay:           "play",
	EventPause:          "pause",
	EventTimeUpdate:     "timeupdate",
	EventDurationChange: "durationchange",
	EventVolumeChange:   "volumechange",
	EventRateChange:     "ratechange",
	EventEnded:          "ended",
	EventWaiting:        "waiting",
	EventSeeking:        "seeking",
	EventCanPlay:        "canplay",
	EventPlaying:        "playing",
	EventLoadStart:      "loadstart",
}

func (e EventType) String() string {
	if int(e) < 0 || int(e) >= len(eventNames) {
		return "unknown"
	}
	return eventNames[e]
}

// Event carries the element's own view of the field the event type refers to.
type Event struct {
	Type     EventType
	Time     float64 // timeupdate
	Duration float64 // durationchange
	Volume   float64 // volumechange, 0..1
	Muted    bool    // volumechange
	Rate     float64 // ratechange
}

// Frame is what publishers receive.
type Frame struct {
	Status       string        `json:"status"`
	State        PlaybackState `json:"-"`
	CurrentTime  string        `json:"current_time"`
	Duration     string        `json:"duration"`
	Progress     float64       `json:"progress"`
	Volume       string        `json:"volume"`
	Loading      bool          `json:"loading"`
	Index        int           `json:"index"`
	Item         PlaylistItem  `json:"item"`
	LineIndex    int           `json:"line_index"`
	Line         string        `json:"line"`
	PrimaryColor string        `json:"primary_color,omitempty"`
}
