package fsys

import (
	"github.com/inodefs/inodefs/directory"
	"github.com/inodefs/inodefs/handle"
	"github.com/inodefs/inodefs/inode"
	"github.com/inodefs/inodefs/walk"
)

// Create creates a zero-extended regular file at path (spec.md §6).
func (fs *FS) Create(proc *Process, path string, size int64) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentDir, parentSector, err := walk.Resolve(fs.env(), path, proc.cwd, false)
	if err != nil {
		return false
	}
	defer fs.closeDir(parentDir)

	name := walk.Basename(path)
	if name == "" {
		return false
	}
	if _, found, err := parentDir.Lookup(name, parentSector); err != nil || found {
		return false
	}

	s, ok := fs.alloc.Allocate(1)
	if !ok {
		return false
	}
	ih, err := fs.cache.Adopt(inode.New(s, false))
	if err != nil {
		fs.alloc.Release(s, 1)
		return false
	}
	if size > 0 {
		reached, err := inode.Extend(fs.dev, fs.alloc, ih.Inode(), uint64(size))
		if err != nil || reached < uint64(size) {
			fs.cache.MarkRemoved(ih)
			fs.cache.Close(ih)
			return false
		}
	}
	if err := parentDir.Add(name, s, false); err != nil {
		fs.cache.MarkRemoved(ih)
		fs.cache.Close(ih)
		return false
	}
	fs.cache.Close(ih)
	return true
}

// Remove unlinks path (spec.md §4.4/§6). Directories must be empty and
// not in use as any live process's working directory (the open-count > 1
// heuristic, spec.md §9's open question).
func (fs *FS) Remove(proc *Process, path string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentDir, parentSector, err := walk.Resolve(fs.env(), path, proc.cwd, false)
	if err != nil {
		return false
	}
	defer fs.closeDir(parentDir)

	name := walk.Basename(path)
	if name == "" {
		return false
	}
	targetSector, found, err := parentDir.Lookup(name, parentSector)
	if err != nil || !found {
		return false
	}

	ih, err := fs.cache.Open(targetSector)
	if err != nil {
		return false
	}
	defer fs.cache.Close(ih)

	if ih.Inode().IsDir {
		if ih.RefCount() > 1 {
			return false
		}
		f := handle.Open(ih, fs.dev, fs.alloc)
		empty, err := directory.Open(f).IsEmpty()
		if err != nil || !empty {
			return false
		}
	}
	if err := parentDir.Remove(name); err != nil {
		return false
	}
	fs.cache.MarkRemoved(ih)
	return true
}

// Open opens a file or directory at path, returning a process-local fd
// (spec.md §6). Directories additionally get a readdir iterator.
func (fs *FS) Open(proc *Process, path string) (int, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	targetSector, found, err := walk.ResolveFinal(fs.env(), path, proc.cwd)
	if err != nil || !found {
		return 0, false
	}
	ih, err := fs.cache.Open(targetSector)
	if err != nil {
		return 0, false
	}
	if ih.Removed() {
		fs.cache.Close(ih)
		return 0, false
	}

	f := handle.Open(ih, fs.dev, fs.alloc)
	of := &openFile{f: f}
	if f.IsDir() {
		of.dir = directory.Open(f)
		of.dirIter = of.dir.NewIterator()
	}

	fd := proc.nextFD
	proc.nextFD++
	proc.files[fd] = of
	return fd, true
}

// Read copies up to len(buf) bytes from fd's cursor (spec.md §6).
func (fs *FS) Read(proc *Process, fd int, buf []byte) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok {
		return -1
	}
	return of.f.Read(buf)
}

// Write copies buf to fd's cursor, growing the file first if needed
// (spec.md §6).
func (fs *FS) Write(proc *Process, fd int, buf []byte) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok {
		return -1
	}
	return of.f.Write(buf)
}

// Seek repositions fd's cursor.
func (fs *FS) Seek(proc *Process, fd int, position int64) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok {
		return false
	}
	of.f.Seek(position)
	return true
}

// Tell reports fd's current cursor position.
func (fs *FS) Tell(proc *Process, fd int) (int64, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok {
		return 0, false
	}
	return of.f.Tell(), true
}

// Filesize reports fd's inode's current byte length.
func (fs *FS) Filesize(proc *Process, fd int) (int64, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok {
		return 0, false
	}
	return of.f.Length(), true
}

// Close releases fd, dropping this process's reference on the shared
// inode.
func (fs *FS) Close(proc *Process, fd int) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok {
		return false
	}
	delete(proc.files, fd)
	return of.f.Close(fs.cache) == nil
}

// Mkdir creates a directory at path, wiring its ".." back-pointer to the
// parent (spec.md §4.4/§6).
func (fs *FS) Mkdir(proc *Process, path string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	parentDir, parentSector, err := walk.Resolve(fs.env(), path, proc.cwd, false)
	if err != nil {
		return false
	}
	defer fs.closeDir(parentDir)

	name := walk.Basename(path)
	if name == "" {
		return false
	}
	if _, found, err := parentDir.Lookup(name, parentSector); err != nil || found {
		return false
	}

	s, ok := fs.alloc.Allocate(1)
	if !ok {
		return false
	}
	ih, err := fs.cache.Adopt(inode.New(s, true))
	if err != nil {
		fs.alloc.Release(s, 1)
		return false
	}
	f := handle.Open(ih, fs.dev, fs.alloc)
	if err := directory.Init(f, parentSector); err != nil {
		fs.cache.MarkRemoved(ih)
		fs.cache.Close(ih)
		return false
	}
	if err := parentDir.Add(name, s, true); err != nil {
		fs.cache.MarkRemoved(ih)
		fs.cache.Close(ih)
		return false
	}
	fs.cache.Close(ih)
	return true
}

// Chdir changes proc's working directory, keeping the new directory's
// inode open for as long as it remains the cwd: that live reference is
// what the open-count > 1 heuristic in Remove detects (spec.md §9).
func (fs *FS) Chdir(proc *Process, path string) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()

	d, sector, err := walk.Resolve(fs.env(), path, proc.cwd, true)
	if err != nil {
		return false
	}
	newHandle := d.File().InodeHandle()
	oldHandle := proc.cwdHandle
	proc.cwd = sector
	proc.cwdHandle = newHandle
	if oldHandle != nil {
		fs.cache.Close(oldHandle)
	}
	return true
}

// Readdir advances fd's directory iterator by one record and returns the
// name found there, or ok=false on a skipped (free) slot or end of
// directory (spec.md §4.4: "cursor advances by one record per call
// regardless of skip").
func (fs *FS) Readdir(proc *Process, fd int) (string, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok || of.dirIter == nil {
		return "", false
	}
	name, found, err := of.dirIter.Next()
	if err != nil {
		return "", false
	}
	return name, found
}

// DenyWrite brackets a write-denial region on fd's inode: every write
// through any handle sharing it fails until a matching AllowWrite
// (spec.md §4.6, scenario S5).
func (fs *FS) DenyWrite(proc *Process, fd int) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok {
		return false
	}
	of.f.DenyWrite()
	return true
}

// AllowWrite releases fd's write-denial hold, if any.
func (fs *FS) AllowWrite(proc *Process, fd int) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok {
		return false
	}
	of.f.AllowWrite()
	return true
}

// Isdir reports whether fd refers to a directory.
func (fs *FS) Isdir(proc *Process, fd int) bool {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok {
		return false
	}
	return of.f.IsDir()
}

// Inumber returns fd's inode's own sector index.
func (fs *FS) Inumber(proc *Process, fd int) (int, bool) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	of, ok := proc.files[fd]
	if !ok {
		return 0, false
	}
	return int(of.f.SelfSector()), true
}
