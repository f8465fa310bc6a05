package archive

import (
	"archive/zip"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"sync"

	"github.com/klauspost/compress/flate"

	"github.com/jocketf/storyquery/internal/storyerrors"
)

func init() {
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// Container is a handle around one ZIP-style outer container. All
// operations are serialized under a single mutex because the underlying
// zip.Reader is stateful.
type Container struct {
	mu   sync.Mutex
	zr   *zip.Reader
	byName map[string]*zip.File
}

// OpenContainer indexes every entry of r (of the given size) by name.
func OpenContainer(r io.ReaderAt, size int64) (*Container, error) {
	zr, err := zip.NewReader(r, size)
	if err != nil {
		return nil, storyerrors.NewArchiveError("open container", classifyZipError(err))
	}

	byName := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		byName[f.Name] = f
	}

	return &Container{zr: zr, byName: byName}, nil
}

// OpenEntry opens a readable stream over the named entry. The returned
// io.ReadCloser must be closed by the caller before another OpenEntry call
// on the same Container, since the container lock is released on Close.
func (c *Container) OpenEntry(name string) (io.ReadCloser, error) {
	c.mu.Lock()

	f, ok := c.byName[name]
	if !ok {
		c.mu.Unlock()
		return nil, storyerrors.NewArchiveError("open entry", fmt.Errorf("entry missing: %s", name))
	}

	rc, err := f.Open()
	if err != nil {
		c.mu.Unlock()
		return nil, storyerrors.NewArchiveError("open entry", classifyZipError(err))
	}

	return &lockedReadCloser{rc: rc, unlock: c.mu.Unlock}, nil
}

// ReadEntry reads the named entry fully into memory.
func (c *Container) ReadEntry(name string) ([]byte, error) {
	rc, err := c.OpenEntry(name)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	buf, err := io.ReadAll(rc)
	if err != nil {
		return nil, storyerrors.NewArchiveError("read entry", err)
	}
	return buf, nil
}

// CRCOf returns the stored 32-bit CRC of the named entry without reading
// its contents, used to form the container identity.
func (c *Container) CRCOf(name string) (uint32, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	f, ok := c.byName[name]
	if !ok {
		return 0, storyerrors.NewArchiveError("crc of entry", fmt.Errorf("entry missing: %s", name))
	}
	return f.CRC32, nil
}

// HasEntry reports whether name is present, without acquiring the entry
// read path.
func (c *Container) HasEntry(name string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.byName[name]
	return ok
}

// Names returns every entry name in the container, useful for nested
// full-text indexing of payload packages.
func (c *Container) Names() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	return names
}

type lockedReadCloser struct {
	rc     io.ReadCloser
	unlock func()
	once   sync.Once
}

func (l *lockedReadCloser) Read(p []byte) (int, error) { return l.rc.Read(p) }

func (l *lockedReadCloser) Close() error {
	err := l.rc.Close()
	l.once.Do(l.unlock)
	return err
}

func classifyZipError(err error) error {
	switch err {
	case zip.ErrFormat, zip.ErrAlgorithm:
		return fmt.Errorf("unsupported format: %w", err)
	case zip.ErrChecksum:
		return fmt.Errorf("entry corrupt: %w", err)
	default:
		return err
	}
}

// OpenAtPath opens its own *os.File handle on path and wraps it in a
// Container. Full-text indexing workers use this, instead of sharing one
// Fetcher's Container, to bypass the single container lock entirely:
// each worker gets an independent file handle.
func OpenAtPath(path string) (*Container, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, storyerrors.NewArchiveError("open container", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, storyerrors.NewArchiveError("open container", err)
	}

	c, err := OpenContainer(f, info.Size())
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return c, f, nil
}

// sumCRC32 computes the CRC-32 (IEEE) of buf, the same checksum the ZIP
// format stores per entry and CRCOf reports.
func sumCRC32(buf []byte) uint32 {
	return crc32.ChecksumIEEE(buf)
}
