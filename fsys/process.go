package fsys

import (
	"github.com/inodefs/inodefs/directory"
	"github.com/inodefs/inodefs/handle"
	"github.com/inodefs/inodefs/inode"
)

// firstFD is where allocation starts: 0 and 1 are reserved for
// stdin/stdout at the syscall boundary (spec.md §3).
const firstFD = 2

type openFile struct {
	f       *handle.File
	dir     *directory.Dir
	dirIter *directory.Iterator
}

// Process is one caller's per-process environment (spec.md §3/§6): a
// working directory, a monotonically increasing fd counter, and the
// open-file table those fds index into. fd values are never shared
// across Process instances.
type Process struct {
	cwd       uint32
	cwdHandle *inode.Handle // kept open for as long as it is this process's cwd; nil means root
	nextFD    int
	files     map[int]*openFile
}

// NewProcess returns a process whose working directory is the root.
func NewProcess() *Process {
	return &Process{nextFD: firstFD, files: make(map[int]*openFile)}
}
