package inode

import (
	"encoding/binary"
	"fmt"

	"github.com/inodefs/inodefs/freemap"
	"github.com/inodefs/inodefs/sector"
)

// Store is the sector-addressed device the extent engine reads and writes
// through (spec.md §4.1). *sector.Device satisfies it.
type Store interface {
	ReadSector(idx uint32) ([sector.Size]byte, error)
	WriteSector(idx uint32, data [sector.Size]byte) error
}

// readPointerBlock unpacks an indirect sector into its 128 sector indices.
func readPointerBlock(dev Store, idx uint32) ([PointersPerBlock]uint32, error) {
	var ptrs [PointersPerBlock]uint32
	raw, err := dev.ReadSector(idx)
	if err != nil {
		return ptrs, fmt.Errorf("inode: reading indirect block %d: %w", idx, err)
	}
	for i := range ptrs {
		ptrs[i] = binary.LittleEndian.Uint32(raw[i*4 : i*4+4])
	}
	return ptrs, nil
}

func writePointerBlock(dev Store, idx uint32, ptrs [PointersPerBlock]uint32) error {
	var raw [sector.Size]byte
	for i, v := range ptrs {
		binary.LittleEndian.PutUint32(raw[i*4:i*4+4], v)
	}
	if err := dev.WriteSector(idx, raw); err != nil {
		return fmt.Errorf("inode: writing indirect block %d: %w", idx, err)
	}
	return nil
}

func writeInode(dev Store, ino *Inode) error {
	if err := dev.WriteSector(ino.SelfSector, ino.Encode()); err != nil {
		return fmt.Errorf("inode: writing inode sector %d: %w", ino.SelfSector, err)
	}
	return nil
}

func zeroFill(dev Store, idx uint32) error {
	var zero [sector.Size]byte
	return dev.WriteSector(idx, zero)
}

// Locate maps a byte offset to the data sector backing it (spec.md §4.2),
// or reports NONE if byteOffset is outside [0, length).
func Locate(dev Store, ino *Inode, byteOffset uint64) (uint32, bool, error) {
	if byteOffset >= ino.Length {
		return sector.None, false, nil
	}
	blockIdx := int(byteOffset / sector.Size)

	if blockIdx < DirectCount {
		return ino.Direct[blockIdx], true, nil
	}
	blockIdx -= DirectCount

	if blockIdx < PointersPerBlock {
		ptrs, err := readPointerBlock(dev, ino.Indirect[0])
		if err != nil {
			return sector.None, false, err
		}
		return ptrs[blockIdx], true, nil
	}
	blockIdx -= PointersPerBlock

	l1 := blockIdx / PointersPerBlock
	l2 := blockIdx % PointersPerBlock
	outer, err := readPointerBlock(dev, ino.Dindirect[0])
	if err != nil {
		return sector.None, false, err
	}
	inner, err := readPointerBlock(dev, outer[l1])
	if err != nil {
		return sector.None, false, err
	}
	return inner[l2], true, nil
}

// Extend grows the inode's sector footprint to cover newLength bytes
// (spec.md §4.2). newLength must be >= ino.Length; contraction is not
// supported. Returns the length actually reached: newLength on full
// success, MaxLength if newLength exceeds it, or a smaller value if an
// allocator call failed first. Every
// completion or early-abort point rewrites the inode sector; no deferred
// flushes.
func Extend(dev Store, alloc *freemap.Allocator, ino *Inode, newLength uint64) (uint64, error) {
	if newLength <= ino.Length {
		return ino.Length, nil
	}
	target := newLength
	if target > MaxLength {
		target = MaxLength
	}
	targetSectors := BytesToSectors(target)
	cur := BytesToSectors(ino.Length)
	if targetSectors == cur {
		ino.Length = newLength
		if newLength > MaxLength {
			ino.Length = MaxLength
		}
		if err := writeInode(dev, ino); err != nil {
			return ino.Length, err
		}
		return ino.Length, nil
	}

	remaining := targetSectors - cur
	failed := false

	// --- direct region ---
	for remaining > 0 && cur < DirectCount {
		s, ok := alloc.Allocate(1)
		if !ok {
			failed = true
			break
		}
		if err := zeroFill(dev, s); err != nil {
			return 0, err
		}
		ino.Direct[cur] = s
		ino.DirCount = uint8(cur + 1)
		cur++
		remaining--
	}

	// --- single-indirect region ---
	if !failed && remaining > 0 && cur < DirectCount+PointersPerBlock {
		var ptrs [PointersPerBlock]uint32
		touched := false
		if ino.IndirCount == 0 {
			s, ok := alloc.Allocate(1)
			if !ok {
				failed = true
			} else {
				ino.Indirect[0] = s
				ino.IndirCount = 1
				ino.IndirFill = 0
			}
		} else {
			var err error
			ptrs, err = readPointerBlock(dev, ino.Indirect[0])
			if err != nil {
				return 0, err
			}
		}
		for !failed && remaining > 0 && int(ino.IndirFill) < PointersPerBlock {
			s, ok := alloc.Allocate(1)
			if !ok {
				failed = true
				break
			}
			if err := zeroFill(dev, s); err != nil {
				return 0, err
			}
			ptrs[ino.IndirFill] = s
			ino.IndirFill++
			touched = true
			cur++
			remaining--
		}
		if touched {
			if err := writePointerBlock(dev, ino.Indirect[0], ptrs); err != nil {
				return 0, err
			}
		}
	}

	// --- double-indirect region ---
	if !failed && remaining > 0 {
		var outer [PointersPerBlock]uint32
		outerTouched := false
		if ino.DindirCount == 0 {
			s, ok := alloc.Allocate(1)
			if !ok {
				failed = true
			} else {
				ino.Dindirect[0] = s
				ino.DindirCount = 1
				ino.DindirL1Fill = 0
				ino.DindirL2Fill = 0
			}
		} else {
			var err error
			outer, err = readPointerBlock(dev, ino.Dindirect[0])
			if err != nil {
				return 0, err
			}
		}

		var child [PointersPerBlock]uint32
		childLoaded := false
		childTouched := false

		flushChild := func() error {
			if !childTouched {
				return nil
			}
			if err := writePointerBlock(dev, outer[ino.DindirL1Fill-1], child); err != nil {
				return err
			}
			childTouched = false
			return nil
		}

		for !failed && remaining > 0 {
			needNewChild := ino.DindirL1Fill == 0 || int(ino.DindirL2Fill) >= PointersPerBlock
			if needNewChild {
				if int(ino.DindirL1Fill) >= PointersPerBlock {
					break // double-indirect region exhausted; target was already capped to MaxLength
				}
				if err := flushChild(); err != nil {
					return 0, err
				}
				s, ok := alloc.Allocate(1)
				if !ok {
					failed = true
					break
				}
				outer[ino.DindirL1Fill] = s
				ino.DindirL1Fill++
				ino.DindirL2Fill = 0
				outerTouched = true
				child = [PointersPerBlock]uint32{}
				childLoaded = true
			} else if !childLoaded {
				var err error
				child, err = readPointerBlock(dev, outer[ino.DindirL1Fill-1])
				if err != nil {
					return 0, err
				}
				childLoaded = true
			}

			s, ok := alloc.Allocate(1)
			if !ok {
				failed = true
				break
			}
			if err := zeroFill(dev, s); err != nil {
				return 0, err
			}
			child[ino.DindirL2Fill] = s
			ino.DindirL2Fill++
			childTouched = true
			cur++
			remaining--
		}
		if err := flushChild(); err != nil {
			return 0, err
		}
		if outerTouched {
			if err := writePointerBlock(dev, ino.Dindirect[0], outer); err != nil {
				return 0, err
			}
		}
	}

	if failed {
		ino.Length = uint64(cur) * sector.Size
	} else {
		ino.Length = target
	}
	if err := writeInode(dev, ino); err != nil {
		return 0, err
	}
	return ino.Length, nil
}

// FreeAll releases every data, indirect, and double-indirect sector owned
// by ino, in reverse order (double-indirect → indirect → direct), per
// spec.md §4.2. The inode's own sector is not released here — that is the
// inode cache's job once the last open reference closes.
func FreeAll(dev Store, alloc *freemap.Allocator, ino *Inode) error {
	if ino.DindirCount > 0 {
		outer, err := readPointerBlock(dev, ino.Dindirect[0])
		if err != nil {
			return err
		}
		for l1 := 0; l1 < int(ino.DindirL1Fill); l1++ {
			childSector := outer[l1]
			if childSector == sector.None {
				continue
			}
			child, err := readPointerBlock(dev, childSector)
			if err != nil {
				return err
			}
			fillCount := PointersPerBlock
			if l1 == int(ino.DindirL1Fill)-1 {
				fillCount = int(ino.DindirL2Fill)
			}
			for k := 0; k < fillCount; k++ {
				if child[k] != sector.None {
					alloc.Release(child[k], 1)
				}
			}
			alloc.Release(childSector, 1)
		}
		alloc.Release(ino.Dindirect[0], 1)
		ino.Dindirect[0] = 0
		ino.DindirCount = 0
		ino.DindirL1Fill = 0
		ino.DindirL2Fill = 0
	}

	if ino.IndirCount > 0 {
		ptrs, err := readPointerBlock(dev, ino.Indirect[0])
		if err != nil {
			return err
		}
		for k := 0; k < int(ino.IndirFill); k++ {
			if ptrs[k] != sector.None {
				alloc.Release(ptrs[k], 1)
			}
		}
		alloc.Release(ino.Indirect[0], 1)
		ino.Indirect[0] = 0
		ino.IndirCount = 0
		ino.IndirFill = 0
	}

	for d := 0; d < int(ino.DirCount); d++ {
		if ino.Direct[d] != sector.None {
			alloc.Release(ino.Direct[d], 1)
		}
		ino.Direct[d] = 0
	}
	ino.DirCount = 0
	ino.Length = 0
	return nil
}
