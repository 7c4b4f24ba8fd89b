package fsys

import (
	"errors"
	iofs "io/fs"
	"path"

	"github.com/inodefs/inodefs/directory"
)

// dirFS adapts one process's fd-based Open/Readdir/Isdir syscalls to
// io/fs.ReadDirFS, for tree-validation tooling (internal/testutil's
// TestFSTree) that expects the standard directory-walking interface
// rather than this module's explicit fd surface.
type dirFS struct {
	fs   *FS
	proc *Process
}

// DirFS exposes an io/fs.ReadDirFS view of the filesystem mounted as fs,
// using proc's fd table. Names are resolved from the root directory, not
// from proc's working directory.
func (fs *FS) DirFS(proc *Process) iofs.ReadDirFS { return dirFS{fs: fs, proc: proc} }

func (d dirFS) Open(name string) (iofs.File, error) {
	return nil, &iofs.PathError{Op: "open", Path: name, Err: iofs.ErrInvalid}
}

func (d dirFS) ReadDir(name string) ([]iofs.DirEntry, error) {
	p := "/" + name
	if name == "." {
		p = "/"
	}

	fd, ok := d.fs.Open(d.proc, p)
	if !ok {
		return nil, &iofs.PathError{Op: "readdir", Path: name, Err: iofs.ErrNotExist}
	}
	defer d.fs.Close(d.proc, fd)
	if !d.fs.Isdir(d.proc, fd) {
		return nil, &iofs.PathError{Op: "readdir", Path: name, Err: errors.New("not a directory")}
	}

	size, _ := d.fs.Filesize(d.proc, fd)
	records := int(size) / directory.RecordSize

	var out []iofs.DirEntry
	for i := 0; i < records; i++ {
		childName, ok := d.fs.Readdir(d.proc, fd)
		if !ok {
			continue // free slot skipped this call, per the one-record-per-call cursor
		}
		isDir := false
		if childFD, ok := d.fs.Open(d.proc, path.Join(p, childName)); ok {
			isDir = d.fs.Isdir(d.proc, childFD)
			d.fs.Close(d.proc, childFD)
		}
		out = append(out, dirEntry{name: childName, isDir: isDir})
	}
	return out, nil
}

type dirEntry struct {
	name  string
	isDir bool
}

func (e dirEntry) Name() string { return e.name }
func (e dirEntry) IsDir() bool  { return e.isDir }
func (e dirEntry) Type() iofs.FileMode {
	if e.isDir {
		return iofs.ModeDir
	}
	return 0
}
func (e dirEntry) Info() (iofs.FileInfo, error) {
	return nil, errors.New("fsys: directory entry stat info is not tracked")
}
