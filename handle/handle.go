// Package handle implements spec.md §4.6's file handle layer: a
// byte-addressed read/write/seek cursor bound to one cached inode, with
// sub-sector writes staged through a bounce buffer.
//
// Grounded on the teacher's filesystem/ext4/file.go File struct shape
// (offset field, Read/Write/Seek/Close over an inode-like type) — the
// teacher's own Write is a stub since its ext4 package is read-only; this
// implements real writes in the same structural shape.
package handle

import (
	"github.com/inodefs/inodefs/freemap"
	"github.com/inodefs/inodefs/inode"
	"github.com/inodefs/inodefs/sector"
)

// File is a cursor over one inode (spec.md's "File handle": inode_ref,
// byte_position, deny_write_held).
type File struct {
	ih    *inode.Handle
	dev   inode.Store
	alloc *freemap.Allocator
	pos   int64
}

// Open wraps an already-open inode cache handle as a byte cursor.
func Open(ih *inode.Handle, dev inode.Store, alloc *freemap.Allocator) *File {
	return &File{ih: ih, dev: dev, alloc: alloc}
}

// InodeHandle returns the underlying inode cache handle, e.g. so a
// caller can Reopen or Close it directly.
func (f *File) InodeHandle() *inode.Handle { return f.ih }

// SelfSector is this handle's inode's own sector (spec.md's inumber).
func (f *File) SelfSector() uint32 { return f.ih.Inode().SelfSector }

// IsDir reports whether the underlying inode is a directory.
func (f *File) IsDir() bool { return f.ih.Inode().IsDir }

// Length is the inode's current byte length.
func (f *File) Length() int64 { return int64(f.ih.Inode().Length) }

// Seek repositions the cursor. Out-of-range positions are legal (a
// subsequent write may extend the file to cover them); they only take
// effect once read or written against.
func (f *File) Seek(position int64) { f.pos = position }

// Tell returns the current cursor position.
func (f *File) Tell() int64 { return f.pos }

// DenyWrite brackets a write-denial region (spec.md §4.6).
func (f *File) DenyWrite() { f.ih.DenyWrite() }

// AllowWrite releases this handle's write-denial hold.
func (f *File) AllowWrite() { f.ih.AllowWrite() }

// Read copies up to len(buf) bytes starting at the cursor, advancing it
// by the number of bytes actually read. Reads past end-of-file are
// short, never an error; reading a directory inode as a byte stream is
// undefined (callers must use the directory iterator instead).
func (f *File) Read(buf []byte) int {
	ino := f.ih.Inode()
	length := int64(ino.Length)
	if f.pos < 0 || f.pos >= length {
		return 0
	}
	want := int64(len(buf))
	if f.pos+want > length {
		want = length - f.pos
	}
	var done int64
	for done < want {
		off := f.pos + done
		secIdx, ok, err := inode.Locate(f.dev, ino, uint64(off))
		if err != nil || !ok {
			break
		}
		raw, err := f.dev.ReadSector(secIdx)
		if err != nil {
			break
		}
		secOff := int(off % sector.Size)
		n := sector.Size - secOff
		if remain := want - done; int64(n) > remain {
			n = int(remain)
		}
		copy(buf[done:done+int64(n)], raw[secOff:secOff+n])
		done += int64(n)
	}
	f.pos += done
	return int(done)
}

// Write copies len(buf) bytes starting at the cursor, growing the inode
// first if necessary (spec.md §4.6). Returns the byte count written, 0
// if write is currently denied, or -1 if extension could not reach the
// full target length.
func (f *File) Write(buf []byte) int {
	if f.ih.WriteDenied() {
		return 0
	}
	if len(buf) == 0 {
		return 0
	}
	ino := f.ih.Inode()
	target := f.pos + int64(len(buf))
	if target < 0 {
		return 0
	}
	if uint64(target) > ino.Length {
		reached, err := inode.Extend(f.dev, f.alloc, ino, uint64(target))
		if err != nil {
			return 0
		}
		if reached < uint64(target) {
			return -1
		}
	}

	var done int64
	toWrite := int64(len(buf))
	for done < toWrite {
		off := f.pos + done
		secIdx, ok, err := inode.Locate(f.dev, ino, uint64(off))
		if err != nil || !ok {
			break
		}
		secOff := int(off % sector.Size)
		n := sector.Size - secOff
		if remain := toWrite - done; int64(n) > remain {
			n = int(remain)
		}

		var raw [sector.Size]byte
		if secOff != 0 || n != sector.Size {
			// Partial sector: stage the existing contents through the
			// bounce buffer before overwriting the covered range.
			existing, err := f.dev.ReadSector(secIdx)
			if err != nil {
				break
			}
			raw = existing
		}
		copy(raw[secOff:secOff+n], buf[done:done+int64(n)])
		if err := f.dev.WriteSector(secIdx, raw); err != nil {
			break
		}
		done += int64(n)
	}
	f.pos += done
	return int(done)
}

// Close releases this handle's reference on the shared inode cache
// entry, freeing the inode's sectors if it was the last reference to a
// removed inode.
func (f *File) Close(cache *inode.Cache) error {
	return cache.Close(f.ih)
}
