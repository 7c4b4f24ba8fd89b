// Package fsys implements spec.md §4.7's format/mount driver and §5's
// global FS lock, composing the sector/freemap/inode/handle/directory/
// walk packages into the syscall surface exposed in §6.
//
// Grounded on the teacher's disk/disk.go Create/Open/Close top-level
// driver shape, generalized from disk-image lifecycle to mount/format/
// shutdown of this engine, and on filesystem/ext4/ext4.go's FileSystem
// method surface (Mkdir, OpenFile, ReadDir, Remove) for syscall-level
// method names and error-return conventions.
package fsys

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/inodefs/inodefs/backend"
	"github.com/inodefs/inodefs/directory"
	"github.com/inodefs/inodefs/freemap"
	"github.com/inodefs/inodefs/handle"
	"github.com/inodefs/inodefs/inode"
	"github.com/inodefs/inodefs/sector"
	"github.com/inodefs/inodefs/walk"
)

// Params configures Format, named and shaped like the teacher's ext4
// Params (SPEC_FULL.md §2).
type Params struct {
	// Label is the supplemented volume label (SPEC_FULL.md §3.1),
	// truncated to labelMax bytes.
	Label string
}

// FS is one mounted filesystem: the device, allocator, inode cache, and
// the single coarse lock serializing every top-level operation in §5.
type FS struct {
	mu sync.Mutex

	dev   *sector.Device
	alloc *freemap.Allocator
	cache *inode.Cache
	log   *logrus.Logger

	rootSector uint32
	volumeID   uuid.UUID
	label      string
}

// Format initializes a brand-new device: the free-sector allocator (it
// occupies a fixed prefix, spec.md §4.7), the root directory at a
// layout-fixed sector with ".." pointing to itself, and the boot sector
// recording that layout plus the supplemented volume identity.
func Format(storage backend.Storage, totalSectors uint32, params Params) (*FS, error) {
	dev, err := sector.Open(storage, totalSectors, false)
	if err != nil {
		return nil, fmt.Errorf("fsys: opening device for format: %w", err)
	}

	bitmapStart := uint32(1)
	bitmapSectors := freemap.SectorsNeeded(totalSectors)
	alloc, err := freemap.Create(dev, bitmapStart, totalSectors)
	if err != nil {
		return nil, fmt.Errorf("fsys: creating free-sector allocator: %w", err)
	}

	rootSector, ok := alloc.Allocate(1)
	if !ok {
		return nil, fmt.Errorf("fsys: device too small to hold a root directory")
	}

	cache := inode.NewCache(dev, alloc)
	rootIno := inode.New(rootSector, true)
	rootHandle, err := cache.Adopt(rootIno)
	if err != nil {
		return nil, fmt.Errorf("fsys: writing root inode: %w", err)
	}
	rootFile := handle.Open(rootHandle, dev, alloc)
	if err := directory.Init(rootFile, rootSector); err != nil {
		return nil, fmt.Errorf("fsys: initializing root directory: %w", err)
	}
	if err := cache.Close(rootHandle); err != nil {
		return nil, fmt.Errorf("fsys: closing root inode after format: %w", err)
	}

	volumeID := uuid.New()
	boot := encodeBoot(bootRecord{
		rootSector:    rootSector,
		bitmapSectors: bitmapSectors,
		totalSectors:  totalSectors,
		volumeID:      volumeID,
		label:         params.Label,
	})
	if err := dev.WriteSector(0, boot); err != nil {
		return nil, fmt.Errorf("fsys: writing boot sector: %w", err)
	}

	if err := alloc.Close(); err != nil {
		return nil, fmt.Errorf("fsys: flushing allocator after format: %w", err)
	}
	if err := dev.Sync(); err != nil {
		return nil, fmt.Errorf("fsys: syncing device after format: %w", err)
	}

	log := logrus.New()
	log.WithFields(logrus.Fields{
		"volume_id":   volumeID,
		"root_sector": rootSector,
		"sectors":     totalSectors,
	}).Debug("fsys: formatted device")

	return Mount(storage, totalSectors, false, log)
}

// Mount opens a previously-formatted device: reads the boot sector for
// layout, reopens the free-sector allocator in place, and creates a
// fresh inode cache (spec.md §4.7 — mount never re-formats). readOnly
// must match the mode the backend.Storage was itself opened in (e.g.
// file.OpenFromPath's own readOnly argument). Mounting read-only storage
// with readOnly=false surfaces as a sector.Device error from the
// underlying Writable() call; the opposite mismatch is not detected.
func Mount(storage backend.Storage, totalSectors uint32, readOnly bool, log *logrus.Logger) (*FS, error) {
	if log == nil {
		log = logrus.New()
	}
	dev, err := sector.Open(storage, totalSectors, readOnly)
	if err != nil {
		return nil, fmt.Errorf("fsys: opening device for mount: %w", err)
	}
	rawBoot, err := dev.ReadSector(0)
	if err != nil {
		return nil, fmt.Errorf("fsys: reading boot sector: %w", err)
	}
	boot, err := decodeBoot(rawBoot)
	if err != nil {
		return nil, fmt.Errorf("fsys: device is not formatted: %w", err)
	}

	alloc, err := freemap.Open(dev, 1, boot.bitmapSectors, totalSectors)
	if err != nil {
		return nil, fmt.Errorf("fsys: opening free-sector allocator: %w", err)
	}
	cache := inode.NewCache(dev, alloc)

	log.WithFields(logrus.Fields{
		"volume_id":   boot.volumeID,
		"root_sector": boot.rootSector,
	}).Debug("fsys: mounted device")

	return &FS{
		dev:        dev,
		alloc:      alloc,
		cache:      cache,
		log:        log,
		rootSector: boot.rootSector,
		volumeID:   boot.volumeID,
		label:      boot.label,
	}, nil
}

// Shutdown closes the free-sector allocator, persisting its bitmap
// (spec.md §4.7). The device itself is left to the caller to close.
func (fs *FS) Shutdown() error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if err := fs.alloc.Close(); err != nil {
		fs.log.WithError(err).Warn("fsys: failed to flush allocator on shutdown")
		return err
	}
	return fs.dev.Sync()
}

// Label returns the supplemented volume label stamped at format time.
func (fs *FS) Label() string { return fs.label }

// VolumeID returns the supplemented volume identifier stamped at format
// time.
func (fs *FS) VolumeID() uuid.UUID { return fs.volumeID }

func (fs *FS) env() *walk.Env {
	return &walk.Env{Dev: fs.dev, Alloc: fs.alloc, Cache: fs.cache, RootSector: fs.rootSector}
}

func (fs *FS) closeDir(d *directory.Dir) {
	if err := fs.cache.Close(d.File().InodeHandle()); err != nil {
		fs.log.WithError(err).Warn("fsys: error closing directory handle")
	}
}
