package fsys

import (
	"encoding/binary"
	"fmt"

	"github.com/google/uuid"
	"github.com/inodefs/inodefs/sector"
)

const bootMagic uint32 = 0x424f4f54 // "BOOT"

// labelMax is how much of Params.Label survives into the boot sector
// (spec.md §6's "bounded string" convention applied to the supplemented
// volume label, SPEC_FULL.md §3.1).
const labelMax = 32

// bootRecord is the persistent image of sector 0: everything Mount needs
// to find the rest of the layout without recomputing it, plus the
// supplemented volume identity fields (SPEC_FULL.md §3.1).
type bootRecord struct {
	rootSector    uint32
	bitmapSectors uint32
	totalSectors  uint32
	volumeID      uuid.UUID
	label         string
}

func encodeBoot(b bootRecord) [sector.Size]byte {
	var raw [sector.Size]byte
	binary.LittleEndian.PutUint32(raw[0:4], bootMagic)
	binary.LittleEndian.PutUint32(raw[4:8], b.rootSector)
	binary.LittleEndian.PutUint32(raw[8:12], b.bitmapSectors)
	binary.LittleEndian.PutUint32(raw[12:16], b.totalSectors)
	idBytes, _ := b.volumeID.MarshalBinary()
	copy(raw[16:32], idBytes)
	labelBytes := []byte(b.label)
	if len(labelBytes) > labelMax {
		labelBytes = labelBytes[:labelMax]
	}
	raw[32] = byte(len(labelBytes))
	copy(raw[33:33+labelMax], labelBytes)
	return raw
}

func decodeBoot(raw [sector.Size]byte) (bootRecord, error) {
	got := binary.LittleEndian.Uint32(raw[0:4])
	if got != bootMagic {
		return bootRecord{}, fmt.Errorf("fsys: boot sector magic mismatch: got %#x, want %#x", got, bootMagic)
	}
	id, err := uuid.FromBytes(raw[16:32])
	if err != nil {
		return bootRecord{}, fmt.Errorf("fsys: decoding volume id: %w", err)
	}
	labelLen := int(raw[32])
	if labelLen > labelMax {
		labelLen = labelMax
	}
	return bootRecord{
		rootSector:    binary.LittleEndian.Uint32(raw[4:8]),
		bitmapSectors: binary.LittleEndian.Uint32(raw[8:12]),
		totalSectors:  binary.LittleEndian.Uint32(raw[12:16]),
		volumeID:      id,
		label:         string(raw[33 : 33+labelLen]),
	}, nil
}
