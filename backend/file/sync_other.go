//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package file

// fsync has no unix.Fsync escape hatch on these platforms; it falls back
// to the storage's own Sync() method, if any, and is otherwise a no-op.
func fsync(fder interface{ Fd() uintptr }) error {
	if syncer, ok := fder.(interface{ Sync() error }); ok {
		return syncer.Sync()
	}
	return nil
}
