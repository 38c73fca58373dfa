package player

import "apron/models"

// Element is the media element the controller drives. Implementations emit the
// standard event set in pipeline order through the Subscribe callback.
type Element interface {
	Paused() bool
	Play() error
	Pause() error
	SetCurrentTime(seconds float64) error
	// SetVolume takes 0..1.
	SetVolume(volume float64) error
	SetMuted(muted bool) error
	SetPlaybackRate(rate float64) error
	Load(url string) error
	Subscribe(handler func(models.Event)) (unsubscribe func())
}
