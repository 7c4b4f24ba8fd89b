// Package sector implements spec.md §4.1's Sector I/O facade: synchronous,
// total reads and writes of fixed 512-byte sectors over a backend.Storage.
package sector

import (
	"fmt"

	"github.com/inodefs/inodefs/backend"
)

// Size is the fixed size in bytes of a single sector (spec.md §3).
const Size = 512

// None is the sentinel sector index meaning "no block" (spec.md §3).
const None uint32 = 0

// Device reads and writes whole sectors against a backend.Storage.
type Device struct {
	storage   backend.Storage
	writable  backend.WritableFile
	readOnly  bool
	numSector uint32
}

// Open wraps a backend.Storage as a Device spanning numSectors sectors.
// numSectors must not exceed the storage's actual capacity.
func Open(storage backend.Storage, numSectors uint32, readOnly bool) (*Device, error) {
	d := &Device{storage: storage, numSector: numSectors, readOnly: readOnly}
	if !readOnly {
		w, err := storage.Writable()
		if err != nil {
			return nil, fmt.Errorf("sector: opening writable handle: %w", err)
		}
		d.writable = w
	}
	return d, nil
}

// SectorCount returns the number of sectors this device exposes.
func (d *Device) SectorCount() uint32 { return d.numSector }

// ReadSector reads exactly Size bytes from sector idx.
func (d *Device) ReadSector(idx uint32) ([Size]byte, error) {
	var out [Size]byte
	if idx >= d.numSector {
		return out, fmt.Errorf("sector: index %d out of range (%d sectors)", idx, d.numSector)
	}
	n, err := d.storage.ReadAt(out[:], int64(idx)*Size)
	if err != nil && n < Size {
		return out, fmt.Errorf("sector: reading sector %d: %w", idx, err)
	}
	return out, nil
}

// WriteSector writes exactly Size bytes to sector idx.
func (d *Device) WriteSector(idx uint32, data [Size]byte) error {
	if d.readOnly {
		return backend.ErrIncorrectOpenMode
	}
	if idx >= d.numSector {
		return fmt.Errorf("sector: index %d out of range (%d sectors)", idx, d.numSector)
	}
	if _, err := d.writable.WriteAt(data[:], int64(idx)*Size); err != nil {
		return fmt.Errorf("sector: writing sector %d: %w", idx, err)
	}
	return nil
}

// Sync flushes the underlying storage.
func (d *Device) Sync() error {
	if d.readOnly {
		return nil
	}
	return d.storage.Sync()
}

// Close releases the underlying storage.
func (d *Device) Close() error { return d.storage.Close() }
