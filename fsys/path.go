package fsys

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/inodefs/inodefs/backend/file"
	"github.com/inodefs/inodefs/sector"
)

// FormatPath creates a new image file at pathName of sizeBytes and formats
// it, the path-based counterpart to Format for callers that want a real
// file or block device instead of an already-open backend.Storage (e.g.
// cmd/ tooling, SPEC_FULL.md's persistence-across-restarts scenario).
func FormatPath(pathName string, sizeBytes int64, params Params) (*FS, error) {
	storage, err := file.CreateFromPath(pathName, sizeBytes)
	if err != nil {
		return nil, fmt.Errorf("fsys: creating image at %s: %w", pathName, err)
	}
	totalSectors := uint32(sizeBytes / sector.Size)
	return Format(storage, totalSectors, params)
}

// MountPath opens an existing image file or block device at pathName and
// mounts it, probing its size with file.SizeBytes rather than taking a
// caller-supplied sector count. SizeBytes reads the stat size, which is
// zero for a block device on most OSes, so block devices get no usable
// sector count this way.
func MountPath(pathName string, readOnly bool, log *logrus.Logger) (*FS, error) {
	sizeBytes, err := file.SizeBytes(pathName)
	if err != nil {
		return nil, fmt.Errorf("fsys: probing size of %s: %w", pathName, err)
	}
	storage, err := file.OpenFromPath(pathName, readOnly)
	if err != nil {
		return nil, fmt.Errorf("fsys: opening %s: %w", pathName, err)
	}
	totalSectors := uint32(sizeBytes / sector.Size)
	return Mount(storage, totalSectors, readOnly, log)
}
