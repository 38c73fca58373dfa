package providers

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/afero"
)

type FileProvider struct {
	fs       afero.Fs
	maxBytes int64
}

func NewFileProvider(fsys afero.Fs, maxBytes int64) *FileProvider {
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &FileProvider{fs: fsys, maxBytes: maxBytes}
}

func (*FileProvider) ID() string {
	return FileProviderID
}

// Supports accepts file:// URLs and bare paths.
func (*FileProvider) Supports(url string) bool {
	if strings.HasPrefix(url, "file://") {
		return true
	}
	return url != "" && !strings.Contains(url, ":")
}

func (p *FileProvider) Fetch(ctx context.Context, url string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path := strings.TrimPrefix(url, "file://")
	f, err := p.fs.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return nil, err
	}
	defer f.Close()
	return readAll(f, p.maxBytes)
}
