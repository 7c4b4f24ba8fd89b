// Package freemap implements spec.md §6's free-sector allocator
// collaborator: allocate(n)/release(sector,n) over a bitmap that itself
// lives in a reserved range of sectors on the device.
//
// Grounded on the teacher's filesystem/ext4/bitmaps.go load-from-sector /
// flush-to-sector idiom, with the bit-twiddling itself adapted from
// util/bitmap.Bitmap (see bitmap.go in this package).
package freemap

import (
	"fmt"

	"github.com/inodefs/inodefs/sector"
)

// Allocator is a bitmap-backed free-sector allocator persisted in a fixed
// range of sectors on the device.
type Allocator struct {
	dev           *sector.Device
	bm            *bitmap
	bitmapStart   uint32
	bitmapSectors uint32
	totalSectors  uint32
	dirty         bool
}

// SectorsNeeded returns how many whole sectors are required to persist a
// bitmap addressing totalSectors bits.
func SectorsNeeded(totalSectors uint32) uint32 {
	totalBytes := (totalSectors + 7) / 8
	return (totalBytes + sector.Size - 1) / sector.Size
}

// Create initializes a brand-new, all-free bitmap spanning totalSectors
// sectors, persists it starting at bitmapStart, and marks the reserved
// range [0, bitmapStart+bitmapSectors) as permanently in use so the
// allocator never hands out the boot sector or its own bitmap sectors.
func Create(dev *sector.Device, bitmapStart, totalSectors uint32) (*Allocator, error) {
	bitmapSectors := SectorsNeeded(totalSectors)
	a := &Allocator{
		dev:           dev,
		bm:            newBitmap(int(totalSectors)),
		bitmapStart:   bitmapStart,
		bitmapSectors: bitmapSectors,
		totalSectors:  totalSectors,
	}
	reservedEnd := bitmapStart + bitmapSectors
	for i := uint32(0); i < reservedEnd && i < totalSectors; i++ {
		if err := a.bm.set(int(i)); err != nil {
			return nil, err
		}
	}
	a.dirty = true
	if err := a.flush(); err != nil {
		return nil, err
	}
	return a, nil
}

// Open loads a previously-formatted bitmap back into memory.
func Open(dev *sector.Device, bitmapStart, bitmapSectors, totalSectors uint32) (*Allocator, error) {
	raw := make([]byte, 0, bitmapSectors*sector.Size)
	for i := uint32(0); i < bitmapSectors; i++ {
		s, err := dev.ReadSector(bitmapStart + i)
		if err != nil {
			return nil, fmt.Errorf("freemap: reading bitmap sector %d: %w", bitmapStart+i, err)
		}
		raw = append(raw, s[:]...)
	}
	return &Allocator{
		dev:           dev,
		bm:            bitmapFromBytes(raw),
		bitmapStart:   bitmapStart,
		bitmapSectors: bitmapSectors,
		totalSectors:  totalSectors,
	}, nil
}

// Allocate reserves n contiguous sectors and returns the first sector
// index, or ok=false if no run of n free sectors exists (spec.md §7:
// NoSpace). Callers in the extent engine always pass n=1; n>1 is
// supported for completeness (e.g. pre-reserving a directory's initial
// record block).
func (a *Allocator) Allocate(n int) (first uint32, ok bool) {
	pos, ok := a.bm.firstRun(n, int(a.totalSectors))
	if !ok {
		return 0, false
	}
	for i := 0; i < n; i++ {
		_ = a.bm.set(pos + i)
	}
	a.dirty = true
	return uint32(pos), true
}

// Release frees n contiguous sectors starting at first.
func (a *Allocator) Release(first uint32, n int) {
	for i := 0; i < n; i++ {
		_ = a.bm.clear(int(first) + i)
	}
	a.dirty = true
}

// InUse returns the number of sectors currently marked allocated,
// including the permanently reserved boot/bitmap range. Used by tests to
// assert the allocator returns to its post-format baseline after a
// sequence of allocate/release calls (spec.md §8 scenario S2).
func (a *Allocator) InUse() int {
	count := 0
	for i := 0; i < int(a.totalSectors); i++ {
		set, _ := a.bm.isSet(i)
		if set {
			count++
		}
	}
	return count
}

// Close flushes the bitmap to disk if dirty.
func (a *Allocator) Close() error {
	if !a.dirty {
		return nil
	}
	return a.flush()
}

func (a *Allocator) flush() error {
	raw := a.bm.toBytes()
	for i := uint32(0); i < a.bitmapSectors; i++ {
		var s [sector.Size]byte
		start := i * sector.Size
		end := start + sector.Size
		if int(start) < len(raw) {
			if int(end) > len(raw) {
				end = uint32(len(raw))
			}
			copy(s[:], raw[start:end])
		}
		if err := a.dev.WriteSector(a.bitmapStart+i, s); err != nil {
			return fmt.Errorf("freemap: writing bitmap sector %d: %w", a.bitmapStart+i, err)
		}
	}
	a.dirty = false
	return nil
}
