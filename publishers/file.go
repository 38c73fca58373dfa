package publishers

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"apron/models"
)

const DefaultFileFormat = "%s\n"

type FilePublisher struct {
	fd     *os.File
	format string
}

type FilePublisherOptions struct {
	Path   string
	Format string
}

// NewFilePublisher opens opt.Path for writing. Paths ending in .pipe are
// created as named pipes.
func NewFilePublisher(opt *FilePublisherOptions) (*FilePublisher, error) {
	var fd *os.File
	if !filepath.IsAbs(opt.Path) {
		return nil, errors.New("file path must be absolute")
	}
	path := filepath.Clean(opt.Path)
	stat, err := os.Stat(path)
	if err == nil {
		if stat.Mode().Type() == os.ModeNamedPipe {
			fd, err = os.OpenFile(path, os.O_RDWR, os.ModeNamedPipe)
		} else {
			fd, err = os.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
		}
	} else {
		if strings.HasSuffix(path, ".pipe") {
			err = syscall.Mkfifo(path, 0o644)
			if err != nil {
				return nil, err
			}
			fd, err = os.OpenFile(path, os.O_RDWR, os.ModeNamedPipe)
		} else {
			fd, err = os.OpenFile(path, os.O_WRONLY|os.O_CREATE, 0o644)
		}
	}
	if err != nil {
		return nil, err
	}
	format := opt.Format
	if format == "" {
		format = DefaultFileFormat
	}
	return &FilePublisher{
		fd:     fd,
		format: format,
	}, nil
}

func (*FilePublisher) ID() string {
	return FilePublisherID
}

// Send writes the active line through the format. Text publishers only follow
// line changes, so an inactive frame becomes ETX.
func (p *FilePublisher) Send(frame *models.Frame) error {
	if frame == nil {
		_, err := p.fd.WriteString(ETX)
		return err
	}
	_, err := fmt.Fprintf(p.fd, p.format, frame.Line)
	return err
}

func (p *FilePublisher) Exit() error {
	_, err := p.fd.WriteString(EOT)
	return errors.Join(err, p.fd.Close())
}
