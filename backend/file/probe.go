//go:build linux || darwin || freebsd || netbsd || openbsd

package file

import (
	"os"

	"golang.org/x/sys/unix"
)

// SizeBytes reports the byte size of a path from unix.Stat_t's Size field,
// falling back to os.Stat when unix.Stat fails or reports zero. Both read
// the same stat size, so a block device (whose stat size is zero on most
// OSes) yields zero; no device-size ioctl is issued.
func SizeBytes(pathName string) (int64, error) {
	var st unix.Stat_t
	if err := unix.Stat(pathName, &st); err != nil {
		info, statErr := os.Stat(pathName)
		if statErr != nil {
			return 0, err
		}
		return info.Size(), nil
	}
	if st.Size > 0 {
		return st.Size, nil
	}
	info, err := os.Stat(pathName)
	if err != nil {
		return 0, nil
	}
	return info.Size(), nil
}
