//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package file

import "os"

// SizeBytes reports the byte size of a path via os.Stat on platforms where
// we have no unix.Stat_t escape hatch for block devices.
func SizeBytes(pathName string) (int64, error) {
	info, err := os.Stat(pathName)
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
