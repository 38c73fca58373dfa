package publishers

import (
	"apron/models"

	"github.com/godbus/dbus/v5"
)

const (
	DefaultDBusPath = "/org/apron/Line"
	DefaultDBusName = "org.apron.Line"
)

// DBusPublisher emits a signal carrying the active line and its index, -1 when
// inactive.
type DBusPublisher struct {
	conn *dbus.Conn
	path dbus.ObjectPath
	name string
}

type DBusPublisherOptions struct {
	Path string
	Name string
}

func NewDBusPublisher(conn *dbus.Conn, opt *DBusPublisherOptions) *DBusPublisher {
	p := &DBusPublisher{
		conn: conn,
		path: DefaultDBusPath,
		name: DefaultDBusName,
	}
	if opt.Path != "" {
		p.path = dbus.ObjectPath(opt.Path)
	}
	if opt.Name != "" {
		p.name = opt.Name
	}
	return p
}

func (*DBusPublisher) ID() string {
	return DBusPublisherID
}

func (p *DBusPublisher) Send(frame *models.Frame) error {
	if frame == nil {
		return p.conn.Emit(p.path, p.name, "", int32(-1))
	}
	return p.conn.Emit(p.path, p.name, frame.Line, int32(frame.LineIndex))
}

func (*DBusPublisher) Exit() error {
	return nil // The connection is owned by main
}
