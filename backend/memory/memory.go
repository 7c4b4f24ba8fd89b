// Package memory provides an in-memory backend.Storage, used in tests so
// that mounting a filesystem does not require a temp file on disk.
package memory

import (
	"io"
	"io/fs"
	"time"

	"github.com/inodefs/inodefs/backend"
)

// Device is a fixed-size byte buffer satisfying backend.Storage.
type Device struct {
	buf      []byte
	pos      int64
	readOnly bool
}

// New allocates a zero-filled in-memory device of the given size in bytes.
func New(size int64) *Device {
	return &Device{buf: make([]byte, size)}
}

var _ backend.Storage = (*Device)(nil)

func (d *Device) Writable() (backend.WritableFile, error) {
	if d.readOnly {
		return nil, backend.ErrIncorrectOpenMode
	}
	return d, nil
}

func (d *Device) Sync() error { return nil }

func (d *Device) Read(p []byte) (int, error) {
	n, err := d.ReadAt(p, d.pos)
	d.pos += int64(n)
	return n, err
}

func (d *Device) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(d.buf)) {
		if off == int64(len(d.buf)) {
			return 0, io.EOF
		}
		return 0, io.ErrUnexpectedEOF
	}
	n := copy(p, d.buf[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (d *Device) WriteAt(p []byte, off int64) (int, error) {
	if d.readOnly {
		return 0, backend.ErrIncorrectOpenMode
	}
	if off < 0 || off+int64(len(p)) > int64(len(d.buf)) {
		return 0, io.ErrShortWrite
	}
	return copy(d.buf[off:], p), nil
}

func (d *Device) Seek(offset int64, whence int) (int64, error) {
	var np int64
	switch whence {
	case io.SeekStart:
		np = offset
	case io.SeekCurrent:
		np = d.pos + offset
	case io.SeekEnd:
		np = int64(len(d.buf)) + offset
	}
	if np < 0 {
		return d.pos, io.ErrUnexpectedEOF
	}
	d.pos = np
	return d.pos, nil
}

func (d *Device) Close() error { return nil }

func (d *Device) Stat() (fs.FileInfo, error) { return memInfo{size: int64(len(d.buf))}, nil }

type memInfo struct{ size int64 }

func (m memInfo) Name() string       { return "memory" }
func (m memInfo) Size() int64        { return m.size }
func (m memInfo) Mode() fs.FileMode  { return 0o600 }
func (m memInfo) ModTime() time.Time { return time.Time{} }
func (m memInfo) IsDir() bool        { return false }
func (m memInfo) Sys() interface{}   { return nil }
