// Package backend abstracts the raw byte-level storage underneath a mounted
// filesystem: a plain os.File, an in-memory buffer, or any other random-access
// byte store. Only the sector package wraps these types directly; packages
// above it (freemap, inode, ...) only see fixed 512-byte reads and writes.
package backend

import (
	"errors"
	"io"
	"io/fs"
)

var (
	ErrIncorrectOpenMode = errors.New("device not open for write")
	ErrNotSuitable       = errors.New("backing store is not suitable")
)

// File is the minimal read/seek/close surface any backing store offers.
type File interface {
	fs.File
	io.ReaderAt
	io.Seeker
	io.Closer
}

// WritableFile additionally allows positioned writes, required for
// anything mounted read-write.
type WritableFile interface {
	File
	io.WriterAt
}

// Storage is the device a sector.Device reads and writes through.
type Storage interface {
	File
	// Writable returns a write-capable handle, or ErrIncorrectOpenMode if
	// this storage was opened read-only.
	Writable() (WritableFile, error)
	// Sync flushes any OS-level buffering so that prior writes are durable
	// before Shutdown returns.
	Sync() error
}
