package main

import (
	"encoding/binary"
	"errors"
	"io"
	"path/filepath"

	"apron/models"
	"apron/utils"

	"github.com/pierrec/lz4/v4"
	"github.com/spf13/afero"
)

// Cache keeps fetched text tracks as lz4 blocks, one file per URL and kind.
type Cache struct {
	fs   afero.Fs
	path string
}

type CacheHeader struct {
	Signature [4]byte
	BodySize  uint32
	Kind      uint8
	// Stored is set when the body did not compress and is kept as is.
	Stored uint8
}

var (
	signature            = [4]byte{'a', 'p', 'r', 'n'}
	ErrSignatureMismatch = errors.New("signature mismatch")
	ErrKindMismatch      = errors.New("track kind mismatch")
)

func NewCache(fsys afero.Fs, path string) (*Cache, error) {
	err := fsys.MkdirAll(path, 0o755)
	if err != nil {
		return nil, err
	}
	return &Cache{fs: fsys, path: path}, nil
}

func (c *Cache) Set(url string, kind models.TrackKind, text string) error {
	body := []byte(text)
	h := CacheHeader{
		Signature: signature,
		BodySize:  uint32(len(body)),
		Kind:      uint8(kind),
	}
	compressed := make([]byte, lz4.CompressBlockBound(len(body)))
	compressor := lz4.CompressorHC{Level: lz4.Level9}
	n, err := compressor.CompressBlock(body, compressed)
	if err != nil {
		return err
	}
	if n == 0 || n >= len(body) {
		h.Stored = 1
		compressed = body
	} else {
		compressed = compressed[:n]
	}
	header := make([]byte, binary.Size(h))
	_, err = binary.Encode(header, binary.LittleEndian, h)
	if err != nil {
		return err
	}
	fpath := filepath.Join(c.path, utils.FormatFilename(url, kind))
	tmp := fpath + ".tmp"
	err = afero.WriteFile(c.fs, tmp, append(header, compressed...), 0o644)
	if err != nil {
		return err
	}
	return c.fs.Rename(tmp, fpath)
}

func (c *Cache) Get(url string, kind models.TrackKind) (string, error) {
	f, err := c.fs.Open(filepath.Join(c.path, utils.FormatFilename(url, kind)))
	if err != nil {
		return "", err
	}
	defer f.Close()
	header := CacheHeader{}
	err = binary.Read(f, binary.LittleEndian, &header)
	if err != nil {
		return "", err
	}
	if header.Signature != signature {
		return "", ErrSignatureMismatch
	}
	if header.Kind != uint8(kind) {
		return "", ErrKindMismatch
	}
	buf, err := io.ReadAll(f)
	if err != nil {
		return "", err
	}
	if header.Stored == 1 {
		return string(buf), nil
	}
	deflated := make([]byte, header.BodySize)
	n, err := lz4.UncompressBlock(buf, deflated)
	if err != nil {
		return "", err
	}
	return string(deflated[:n]), nil
}
