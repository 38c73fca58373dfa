package main

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"apron/models"

	"github.com/godbus/dbus/v5"
)

const (
	mprisPrefix = "org.mpris.MediaPlayer2."
	mprisPath   = "/org/mpris/MediaPlayer2"
	playerIface = "org.mpris.MediaPlayer2.Player"
)

// A stop counts as the end of the track when the last known position is
// within this many seconds of its length.
const endTolerance = 1.0

var ErrNoPlayer = errors.New("no mpris player found")

type mprisMetadata struct {
	TrackID dbus.ObjectPath
	Title   string
	URL     string
	Length  time.Duration
}

// MPRIS drives a desktop media player over D-Bus and reports its state as
// media element events.
type MPRIS struct {
	conn *dbus.Conn
	name string
	loop bool

	mu           sync.Mutex
	obj          dbus.BusObject
	owner        string
	status       string
	meta         mprisMetadata
	volume       float64
	muted        bool
	handlers     map[int]func(models.Event)
	nextID       int
	cancelPoller context.CancelFunc
	debouncer    *time.Timer
	lastPosition float64
	// loadPending is set from OpenUri until the new media shows up.
	loadPending  bool
}

// NewMPRIS targets org.mpris.MediaPlayer2.<name>; an empty name picks the
// first playing player, or the first one found.
func NewMPRIS(conn *dbus.Conn, name string, loop bool) *MPRIS {
	return &MPRIS{
		conn:     conn,
		name:     name,
		loop:     loop,
		volume:   1,
		handlers: map[int]func(models.Event){},
	}
}

func (m *MPRIS) getBackends() []string {
	obj := m.conn.Object("org.freedesktop.DBus", "/org/freedesktop/DBus")
	var names []string
	err := obj.Call("org.freedesktop.DBus.ListNames", 0).Store(&names)
	if err != nil {
		return nil
	}
	var backends []string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			backends = append(backends, name)
		}
	}
	return backends
}

// Connect binds to a player and reads its initial properties.
func (m *MPRIS) Connect() error {
	var target string
	var props map[string]dbus.Variant
	if m.name != "" {
		target = mprisPrefix + m.name
		err := m.conn.Object(target, mprisPath).Call("org.freedesktop.DBus.Properties.GetAll", 0, playerIface).Store(&props)
		if err != nil {
			return errors.Join(ErrNoPlayer, err)
		}
	} else {
		for _, backend := range m.getBackends() {
			var p map[string]dbus.Variant
			err := m.conn.Object(backend, mprisPath).Call("org.freedesktop.DBus.Properties.GetAll", 0, playerIface).Store(&p)
			if err != nil {
				continue
			}
			if target == "" || variantString(p["PlaybackStatus"]) == "Playing" {
				target = backend
				props = p
			}
			if variantString(p["PlaybackStatus"]) == "Playing" {
				break
			}
		}
		if target == "" {
			return ErrNoPlayer
		}
	}
	var owner string
	err := m.conn.BusObject().Call("org.freedesktop.DBus.GetNameOwner", 0, target).Store(&owner)
	if err != nil {
		return err
	}

	m.mu.Lock()
	m.obj = m.conn.Object(target, mprisPath)
	m.owner = owner
	m.status = variantString(props["PlaybackStatus"])
	if md, ok := props["Metadata"].Value().(map[string]dbus.Variant); ok {
		m.meta = parseMetadata(md)
	}
	if v, ok := props["Volume"].Value().(float64); ok {
		m.volume = v
	}
	m.mu.Unlock()
	slog.Info("connected to player", "name", target, "status", m.status)

	if m.loop {
		err = m.setProperty("LoopStatus", "Track")
		if err != nil {
			slog.Warn("failed to set loop status", "error", err)
		}
	}
	if m.status == "Playing" {
		m.startPoller()
	}
	return nil
}

// Serve dispatches player signals until the connection is closed.
func (m *MPRIS) Serve() error {
	err := m.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	)
	if err != nil {
		return err
	}
	err = m.conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface(playerIface),
		dbus.WithMatchMember("Seeked"),
	)
	if err != nil {
		return err
	}

	c := make(chan *dbus.Signal, 8)
	m.conn.Signal(c)
	for signal := range c {
		m.mu.Lock()
		owner := m.owner
		m.mu.Unlock()
		if signal.Sender != owner {
			continue
		}
		switch signal.Name {
		case "org.freedesktop.DBus.Properties.PropertiesChanged":
			m.onPropertiesChanged(signal)
		case playerIface + ".Seeked":
			m.onSeeked(signal)
		}
	}
	return nil
}

func (m *MPRIS) emit(events ...models.Event) {
	m.mu.Lock()
	handlers := make([]func(models.Event), 0, len(m.handlers))
	for _, h := range m.handlers {
		handlers = append(handlers, h)
	}
	m.mu.Unlock()
	for _, ev := range events {
		for _, h := range handlers {
			h(ev)
		}
	}
}

// volumeEvent reports the remembered level while muted.
func (m *MPRIS) volumeEvent() models.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return models.Event{Type: models.EventVolumeChange, Volume: m.volume, Muted: m.muted}
}

func (m *MPRIS) onPropertiesChanged(signal *dbus.Signal) {
	if len(signal.Body) < 2 {
		return
	}
	if iface, _ := signal.Body[0].(string); iface != playerIface {
		return
	}
	p, ok := signal.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	if md, ok := p["Metadata"].Value().(map[string]dbus.Variant); ok {
		meta := parseMetadata(md)
		m.mu.Lock()
		changed := meta.URL != m.meta.URL || meta.TrackID != m.meta.TrackID
		m.meta = meta
		// Sometimes more than one signal are emitted to fully update metadata (eg. kdeconnect)
		// So we add a small delay before reporting the new media as ready
		if changed {
			if m.debouncer != nil {
				m.debouncer.Stop()
			}
			m.debouncer = time.AfterFunc(20*time.Millisecond, m.onMediaReady)
		}
		m.mu.Unlock()
	}
	if ps, ok := p["PlaybackStatus"]; ok {
		m.onPlaybackStatus(variantString(ps))
	}
	if v, ok := p["Volume"].Value().(float64); ok {
		m.mu.Lock()
		if m.muted && v > 0 {
			// Unmuted from the player itself.
			m.muted = false
		}
		if !m.muted {
			m.volume = v
		}
		m.mu.Unlock()
		m.emit(m.volumeEvent())
	}
	if r, ok := p["Rate"].Value().(float64); ok {
		m.emit(models.Event{Type: models.EventRateChange, Rate: r})
	}
}

func (m *MPRIS) onMediaReady() {
	m.mu.Lock()
	m.debouncer = nil
	m.loadPending = false
	m.lastPosition = 0
	length := m.meta.Length
	m.mu.Unlock()
	duration := math.NaN()
	if length > 0 {
		duration = length.Seconds()
	}
	m.emit(
		models.Event{Type: models.EventLoadStart},
		models.Event{Type: models.EventDurationChange, Duration: duration},
		models.Event{Type: models.EventTimeUpdate, Time: 0},
		models.Event{Type: models.EventCanPlay},
	)
}

func (m *MPRIS) onPlaybackStatus(status string) {
	m.mu.Lock()
	prev := m.status
	m.status = status
	if status == "Playing" {
		// Whatever OpenUri asked for is playing now, even if its metadata
		// matched the previous media.
		m.loadPending = false
	}
	m.mu.Unlock()
	if status == prev {
		return
	}
	switch status {
	case "Playing":
		m.emit(models.Event{Type: models.EventPlay}, models.Event{Type: models.EventPlaying})
		m.startPoller()
	case "Paused":
		m.stopPoller()
		m.emit(models.Event{Type: models.EventPause})
	case "Stopped":
		m.stopPoller()
		events := []models.Event{{Type: models.EventPause}}
		if prev == "Playing" && m.reachedEnd() {
			events = append(events, models.Event{Type: models.EventEnded})
		}
		m.emit(events...)
	}
}

// reachedEnd tells a finished track apart from the stop some players go
// through while OpenUri swaps the media.
func (m *MPRIS) reachedEnd() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loadPending {
		return false
	}
	if m.meta.Length <= 0 {
		return true
	}
	return m.lastPosition >= m.meta.Length.Seconds()-endTolerance
}

func (m *MPRIS) onSeeked(signal *dbus.Signal) {
	if len(signal.Body) == 0 {
		return
	}
	position, ok := signal.Body[0].(int64)
	if !ok {
		return
	}
	m.mu.Lock()
	m.lastPosition = microseconds(position)
	m.mu.Unlock()
	m.emit(
		models.Event{Type: models.EventSeeking},
		models.Event{Type: models.EventTimeUpdate, Time: microseconds(position)},
		models.Event{Type: models.EventPlaying},
	)
}

func (m *MPRIS) position() (float64, error) {
	m.mu.Lock()
	obj := m.obj
	m.mu.Unlock()
	if obj == nil {
		return 0, ErrNoPlayer
	}
	v, err := obj.GetProperty(playerIface + ".Position")
	if err != nil {
		return 0, err
	}
	position, ok := v.Value().(int64)
	if !ok {
		return 0, errors.New("unexpected position type")
	}
	return microseconds(position), nil
}

// startPoller reports the player's position every 250ms while playing, since
// MPRIS only signals position jumps.
func (m *MPRIS) startPoller() {
	m.mu.Lock()
	if m.cancelPoller != nil {
		m.cancelPoller()
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.cancelPoller = cancel
	m.mu.Unlock()

	go func() {
		ticker := time.NewTicker(250 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				position, err := m.position()
				if err != nil {
					slog.Warn("failed to get position", "error", err)
					m.stopPoller()
					return
				}
				if ctx.Err() != nil {
					return
				}
				m.mu.Lock()
				m.lastPosition = position
				m.mu.Unlock()
				m.emit(models.Event{Type: models.EventTimeUpdate, Time: position})
			}
		}
	}()
}

func (m *MPRIS) stopPoller() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.cancelPoller != nil {
		m.cancelPoller()
		m.cancelPoller = nil
	}
}

func (m *MPRIS) call(method string, args ...any) error {
	m.mu.Lock()
	obj := m.obj
	m.mu.Unlock()
	if obj == nil {
		return ErrNoPlayer
	}
	return obj.Call(playerIface+"."+method, 0, args...).Err
}

func (m *MPRIS) setProperty(name string, value any) error {
	m.mu.Lock()
	obj := m.obj
	m.mu.Unlock()
	if obj == nil {
		return ErrNoPlayer
	}
	return obj.SetProperty(playerIface+"."+name, dbus.MakeVariant(value))
}

func (m *MPRIS) Paused() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status != "Playing"
}

func (m *MPRIS) Play() error {
	return m.call("Play")
}

func (m *MPRIS) Pause() error {
	return m.call("Pause")
}

func (m *MPRIS) SetCurrentTime(seconds float64) error {
	m.mu.Lock()
	trackID := m.meta.TrackID
	m.mu.Unlock()
	target := int64(seconds * 1e6)
	if trackID.IsValid() && trackID != "/org/mpris/MediaPlayer2/TrackList/NoTrack" {
		return m.call("SetPosition", trackID, target)
	}
	current, err := m.position()
	if err != nil {
		return err
	}
	return m.call("Seek", target-int64(current*1e6))
}

// SetVolume only remembers the level while muted.
func (m *MPRIS) SetVolume(volume float64) error {
	m.mu.Lock()
	if m.muted {
		m.volume = volume
		m.mu.Unlock()
		m.emit(m.volumeEvent())
		return nil
	}
	m.mu.Unlock()
	return m.setProperty("Volume", volume)
}

// SetMuted emulates muting by dropping the player's volume to 0 and restoring
// the remembered level afterwards.
func (m *MPRIS) SetMuted(muted bool) error {
	m.mu.Lock()
	if m.muted == muted {
		m.mu.Unlock()
		return nil
	}
	m.muted = muted
	volume := m.volume
	m.mu.Unlock()
	m.emit(m.volumeEvent())
	if muted {
		return m.setProperty("Volume", 0.0)
	}
	return m.setProperty("Volume", volume)
}

func (m *MPRIS) SetPlaybackRate(rate float64) error {
	return m.setProperty("Rate", rate)
}

func (m *MPRIS) Load(url string) error {
	m.mu.Lock()
	m.loadPending = true
	m.mu.Unlock()
	err := m.call("OpenUri", url)
	if err != nil {
		m.mu.Lock()
		m.loadPending = false
		m.mu.Unlock()
	}
	return err
}

func (m *MPRIS) Subscribe(handler func(models.Event)) func() {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextID
	m.nextID++
	m.handlers[id] = handler
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		delete(m.handlers, id)
	}
}

func (m *MPRIS) Exit() {
	m.stopPoller()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.debouncer != nil {
		m.debouncer.Stop()
		m.debouncer = nil
	}
}

func microseconds(us int64) float64 {
	return float64(us) / 1e6
}

func variantString(v dbus.Variant) string {
	s, _ := v.Value().(string)
	return s
}

func parseMetadata(m map[string]dbus.Variant) mprisMetadata {
	meta := mprisMetadata{}
	if trackID, ok := m["mpris:trackid"]; ok {
		switch id := trackID.Value().(type) {
		case dbus.ObjectPath:
			meta.TrackID = id
		case string:
			meta.TrackID = dbus.ObjectPath(id)
		}
	}
	if title, ok := m["xesam:title"].Value().(string); ok {
		meta.Title = strings.TrimSpace(title)
	}
	if url, ok := m["xesam:url"].Value().(string); ok {
		meta.URL = url
	}
	switch length := m["mpris:length"].Value().(type) {
	case int64:
		meta.Length = time.Duration(length) * time.Microsecond
	case uint64:
		meta.Length = time.Duration(length) * time.Microsecond
	}
	return meta
}
