package publishers

import (
	"encoding/json"

	"apron/models"
)

const (
	FilePublisherID      = "file"
	HTTPPublisherID      = "http"
	WebSocketPublisherID = "websocket"
	DBusPublisherID      = "dbus"
)

// Control characters written by text publishers: ETX when playback becomes
// inactive, EOT on shutdown.
const (
	ETX = "\x03"
	EOT = "\x04"
)

// Publisher receives every state frame. A nil frame means nothing is loaded.
type Publisher interface {
	ID() string
	Send(*models.Frame) error
	Exit() error
}

func encode(frame *models.Frame) ([]byte, error) {
	if frame == nil {
		return []byte("null"), nil
	}
	return json.Marshal(frame)
}
