//go:build linux || darwin || freebsd || netbsd || openbsd

package file

import "golang.org/x/sys/unix"

// fsync flushes fder's in-kernel buffers to stable storage via a direct
// unix.Fsync syscall on its descriptor, used instead of relying on every
// backend.Storage implementation satisfying io's informal Sync() method —
// *os.File does, but a raw block-device fd wrapped some other way might
// not.
func fsync(fder interface{ Fd() uintptr }) error {
	return unix.Fsync(int(fder.Fd()))
}
