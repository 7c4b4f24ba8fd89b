// Package directory implements spec.md §4.4's directory store: a regular
// file whose content is a dense array of fixed-width {in_use, name,
// inode_sector, is_subdir} records, with record index 0 reserved for the
// ".." back-pointer.
//
// Grounded on the teacher's filesystem/fat32/directory.go Directory
// entries/createEntry/removeEntry shape (sequential entry store, add/
// remove by linear scan) — adapted from FAT32's 32-byte short/long name
// pairs down to one bounded 14-byte name plus in_use/is_subdir flags.
package directory

import (
	"fmt"

	"github.com/inodefs/inodefs/ferrors"
	"github.com/inodefs/inodefs/handle"
)

// NameMax is the largest name directory records can hold (spec.md §6:
// "implementation chooses ≤ 14 bytes").
const NameMax = 14

// RecordSize is the fixed on-disk width of one directory record, exposed
// so callers (e.g. readdir-adjacent tooling) can compute a directory's
// record count directly from its byte length without a second package
// knowing the layout.
const RecordSize = 1 + NameMax + 4 + 1 // in_use + name + inode_sector + is_subdir

const recordSize = RecordSize

// parentRecordIndex is the reserved ".." back-pointer slot (spec.md §3,
// §9's back-pointer design note).
const parentRecordIndex = 0

// Record is one directory entry.
type Record struct {
	InUse       bool
	Name        string
	InodeSector uint32
	IsSubdir    bool
}

func encodeRecord(r Record) [recordSize]byte {
	var b [recordSize]byte
	if r.InUse {
		b[0] = 1
	}
	copy(b[1:1+NameMax], r.Name)
	off := 1 + NameMax
	b[off] = byte(r.InodeSector)
	b[off+1] = byte(r.InodeSector >> 8)
	b[off+2] = byte(r.InodeSector >> 16)
	b[off+3] = byte(r.InodeSector >> 24)
	if r.IsSubdir {
		b[off+4] = 1
	}
	return b
}

func decodeRecord(b [recordSize]byte) Record {
	nameEnd := 1
	for nameEnd < 1+NameMax && b[nameEnd] != 0 {
		nameEnd++
	}
	off := 1 + NameMax
	sectorIdx := uint32(b[off]) | uint32(b[off+1])<<8 | uint32(b[off+2])<<16 | uint32(b[off+3])<<24
	return Record{
		InUse:       b[0] != 0,
		Name:        string(b[1:nameEnd]),
		InodeSector: sectorIdx,
		IsSubdir:    b[off+4] != 0,
	}
}

// Dir operates on a directory inode's content through a byte-addressed
// handle.
type Dir struct {
	f *handle.File
}

// Open wraps an already-open directory file handle.
func Open(f *handle.File) *Dir { return &Dir{f: f} }

// File returns the underlying byte-addressed handle.
func (d *Dir) File() *handle.File { return d.f }

// Init writes the reserved ".." back-pointer into a freshly-created,
// empty directory inode. The root directory passes its own sector as
// parentSector (spec.md §4.7: "the root directory is its own parent").
func Init(f *handle.File, parentSector uint32) error {
	rec := encodeRecord(Record{InUse: true, Name: "..", InodeSector: parentSector, IsSubdir: true})
	f.Seek(0)
	if n := f.Write(rec[:]); n != recordSize {
		return fmt.Errorf("directory: failed to write parent pointer record")
	}
	return nil
}

func (d *Dir) recordCount() int {
	return int(d.f.Length()) / recordSize
}

func (d *Dir) readRecord(idx int) (Record, error) {
	var arr [recordSize]byte
	d.f.Seek(int64(idx) * recordSize)
	n := d.f.Read(arr[:])
	if n != recordSize {
		return Record{}, fmt.Errorf("directory: short record read at index %d", idx)
	}
	return decodeRecord(arr), nil
}

func (d *Dir) writeRecord(idx int, r Record) error {
	arr := encodeRecord(r)
	d.f.Seek(int64(idx) * recordSize)
	if n := d.f.Write(arr[:]); n != recordSize {
		return fmt.Errorf("directory: failed to write record %d", idx)
	}
	return nil
}

// Parent returns the inode sector this directory's ".." entry points to.
func (d *Dir) Parent() (uint32, error) {
	rec, err := d.readRecord(parentRecordIndex)
	if err != nil {
		return 0, err
	}
	return rec.InodeSector, nil
}

// Lookup resolves name to an inode sector (spec.md §4.4). "." resolves
// to selfSector (the caller's own open inode, since Dir has no notion of
// its own sector); ".." resolves to the stored parent pointer.
func (d *Dir) Lookup(name string, selfSector uint32) (uint32, bool, error) {
	if name == "." {
		return selfSector, true, nil
	}
	if name == ".." {
		s, err := d.Parent()
		if err != nil {
			return 0, false, err
		}
		return s, true, nil
	}
	n := d.recordCount()
	for i := 1; i < n; i++ {
		rec, err := d.readRecord(i)
		if err != nil {
			return 0, false, err
		}
		if rec.InUse && rec.Name == name {
			return rec.InodeSector, true, nil
		}
	}
	return 0, false, nil
}

// Add inserts a new entry, reusing the first free slot past the reserved
// ".." record or appending a fresh one. Fails with ferrors.ErrExists if
// name is already present (spec.md §4.4).
func (d *Dir) Add(name string, inodeSector uint32, isSubdir bool) error {
	if name == "" || name == "." || name == ".." || len(name) > NameMax {
		return ferrors.ErrBadPath
	}
	if _, found, err := d.Lookup(name, 0); err != nil {
		return err
	} else if found {
		return ferrors.ErrExists
	}

	n := d.recordCount()
	for i := 1; i < n; i++ {
		rec, err := d.readRecord(i)
		if err != nil {
			return err
		}
		if !rec.InUse {
			return d.writeRecord(i, Record{InUse: true, Name: name, InodeSector: inodeSector, IsSubdir: isSubdir})
		}
	}
	if n == 0 {
		n = 1 // defensive: Init always reserves index 0 before Add is ever called
	}
	return d.writeRecord(n, Record{InUse: true, Name: name, InodeSector: inodeSector, IsSubdir: isSubdir})
}

// Remove marks name's record free. Callers are responsible for the
// currently-resolved-cwd and non-empty-directory checks (spec.md §4.4),
// since those require the inode cache and opening the target directory to
// scan its records respectively — both live at the walk/fsys layer where
// that context is available.
func (d *Dir) Remove(name string) error {
	if name == "" || name == "." || name == ".." {
		return ferrors.ErrBadPath
	}
	n := d.recordCount()
	for i := 1; i < n; i++ {
		rec, err := d.readRecord(i)
		if err != nil {
			return err
		}
		if rec.InUse && rec.Name == name {
			rec.InUse = false
			return d.writeRecord(i, rec)
		}
	}
	return ferrors.ErrNotFound
}

// IsEmpty reports whether every non-reserved record is free.
func (d *Dir) IsEmpty() (bool, error) {
	n := d.recordCount()
	for i := 1; i < n; i++ {
		rec, err := d.readRecord(i)
		if err != nil {
			return false, err
		}
		if rec.InUse {
			return false, nil
		}
	}
	return true, nil
}

// Iterator is a persistent readdir cursor (spec.md §4.4). Cursor starts
// past the reserved ".." record and advances by exactly one record per
// Next call, regardless of whether that record is skipped.
type Iterator struct {
	dir    *Dir
	cursor int
}

// NewIterator returns a fresh iterator over dir.
func (d *Dir) NewIterator() *Iterator {
	return &Iterator{dir: d, cursor: parentRecordIndex + 1}
}

// Next returns the name at the cursor and advances it by one record.
// ok is false both at end-of-directory and when the record under the
// cursor was a free (unused) slot — callers must call Next again to
// continue past a skip, per spec.md's "cursor advances by one record per
// call regardless of skip".
func (it *Iterator) Next() (string, bool, error) {
	n := it.dir.recordCount()
	if it.cursor >= n {
		return "", false, nil
	}
	rec, err := it.dir.readRecord(it.cursor)
	it.cursor++
	if err != nil {
		return "", false, err
	}
	if !rec.InUse {
		return "", false, nil
	}
	return rec.Name, true, nil
}
