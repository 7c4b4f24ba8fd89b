// Package inode implements spec.md §3's on-disk inode layout and codec,
// §4.2's extent engine (offset→sector mapping and lazy growth), and §4.3's
// in-memory inode cache.
//
// Grounded on the teacher's filesystem/ext4/inode.go manual
// encoding/binary field-slicing style (inodeFromBytes/toBytes), adapted
// from ext4's B-tree extent layout down to spec.md's fixed direct /
// single-indirect / double-indirect counters — the same fixed-depth shape
// used by _examples/other_examples' ext2 inode (Block [15]uint32).
package inode

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/inodefs/inodefs/sector"
)

// Layout constants from spec.md §3.
const (
	DirectCount    = 12
	IndirectCount  = 1
	DindirectCount = 1

	// PointersPerBlock is how many 4-byte sector indices fit in one
	// indirect sector (spec.md: "Indirect sector. 128 four-byte sector
	// indices, no header.").
	PointersPerBlock = sector.Size / 4 // 128

	// MaxLength is the largest byte length an inode can reach:
	// (12 + 128 + 128*128) * 512 bytes.
	MaxLength = uint64(DirectCount+PointersPerBlock+PointersPerBlock*PointersPerBlock) * sector.Size

	magic uint32 = 0x494e4f44 // "INOD"
)

// header byte offsets within the inode sector.
const (
	offMagic         = 0
	offLength        = 4
	offSelfSector    = 8
	offIsDir         = 12
	offDirCount      = 13
	offIndirCount    = 14
	offDindirCount   = 15
	offIndirFill     = 16
	offDindirL1Fill  = 18
	offDindirL2Fill  = 20
	offDirect        = 24
	offIndirect      = offDirect + DirectCount*4
	offDindirect     = offIndirect + IndirectCount*4
	offAccessTime    = offDindirect + DindirectCount*4
	offChangeTime    = offAccessTime + 8
	offModifyTime    = offChangeTime + 8
	headerBytesTotal = offModifyTime + 8
)

func init() {
	if headerBytesTotal > sector.Size {
		panic("inode: packed header exceeds one sector")
	}
}

// Inode is the in-memory image of one on-disk inode (spec.md §3). Fields
// mirror the persisted layout exactly; Cache and the extent engine mutate
// it in place and immediately rewrite the sector (no write-back caching,
// per spec.md's non-goals).
type Inode struct {
	SelfSector uint32
	Length     uint64
	IsDir      bool

	Direct   [DirectCount]uint32
	DirCount uint8

	Indirect   [IndirectCount]uint32
	IndirCount uint8
	IndirFill  uint16

	Dindirect    [DindirectCount]uint32
	DindirCount  uint8
	DindirL1Fill uint16
	DindirL2Fill uint16

	AccessTime time.Time
	ChangeTime time.Time
	ModifyTime time.Time
}

// New builds a fresh, all-zero inode for a newly allocated sector.
func New(selfSector uint32, isDir bool) *Inode {
	now := time.Now()
	return &Inode{
		SelfSector: selfSector,
		IsDir:      isDir,
		AccessTime: now,
		ChangeTime: now,
		ModifyTime: now,
	}
}

// Decode unpacks a sector's worth of bytes into an Inode. A magic mismatch
// is a fatal/corruption condition per spec.md §7; Decode itself reports it
// as an error, and the cache boundary (Cache.Open) turns that error into a
// panic.
func Decode(b [sector.Size]byte) (*Inode, error) {
	got := binary.LittleEndian.Uint32(b[offMagic : offMagic+4])
	if got != magic {
		return nil, fmt.Errorf("inode: magic mismatch: got %#x, want %#x", got, magic)
	}
	i := &Inode{
		SelfSector:   binary.LittleEndian.Uint32(b[offSelfSector : offSelfSector+4]),
		Length:       uint64(binary.LittleEndian.Uint32(b[offLength : offLength+4])),
		IsDir:        b[offIsDir] != 0,
		DirCount:     b[offDirCount],
		IndirCount:   b[offIndirCount],
		DindirCount:  b[offDindirCount],
		IndirFill:    binary.LittleEndian.Uint16(b[offIndirFill : offIndirFill+2]),
		DindirL1Fill: binary.LittleEndian.Uint16(b[offDindirL1Fill : offDindirL1Fill+2]),
		DindirL2Fill: binary.LittleEndian.Uint16(b[offDindirL2Fill : offDindirL2Fill+2]),
		AccessTime:   decodeTime(b, offAccessTime),
		ChangeTime:   decodeTime(b, offChangeTime),
		ModifyTime:   decodeTime(b, offModifyTime),
	}
	for j := 0; j < DirectCount; j++ {
		off := offDirect + j*4
		i.Direct[j] = binary.LittleEndian.Uint32(b[off : off+4])
	}
	for j := 0; j < IndirectCount; j++ {
		off := offIndirect + j*4
		i.Indirect[j] = binary.LittleEndian.Uint32(b[off : off+4])
	}
	for j := 0; j < DindirectCount; j++ {
		off := offDindirect + j*4
		i.Dindirect[j] = binary.LittleEndian.Uint32(b[off : off+4])
	}
	return i, nil
}

// Encode packs the inode back into exactly one sector.
func (i *Inode) Encode() [sector.Size]byte {
	var b [sector.Size]byte
	binary.LittleEndian.PutUint32(b[offMagic:offMagic+4], magic)
	binary.LittleEndian.PutUint32(b[offLength:offLength+4], uint32(i.Length))
	binary.LittleEndian.PutUint32(b[offSelfSector:offSelfSector+4], i.SelfSector)
	if i.IsDir {
		b[offIsDir] = 1
	}
	b[offDirCount] = i.DirCount
	b[offIndirCount] = i.IndirCount
	b[offDindirCount] = i.DindirCount
	binary.LittleEndian.PutUint16(b[offIndirFill:offIndirFill+2], i.IndirFill)
	binary.LittleEndian.PutUint16(b[offDindirL1Fill:offDindirL1Fill+2], i.DindirL1Fill)
	binary.LittleEndian.PutUint16(b[offDindirL2Fill:offDindirL2Fill+2], i.DindirL2Fill)
	encodeTime(b[:], offAccessTime, i.AccessTime)
	encodeTime(b[:], offChangeTime, i.ChangeTime)
	encodeTime(b[:], offModifyTime, i.ModifyTime)
	for j := 0; j < DirectCount; j++ {
		off := offDirect + j*4
		binary.LittleEndian.PutUint32(b[off:off+4], i.Direct[j])
	}
	for j := 0; j < IndirectCount; j++ {
		off := offIndirect + j*4
		binary.LittleEndian.PutUint32(b[off:off+4], i.Indirect[j])
	}
	for j := 0; j < DindirectCount; j++ {
		off := offDindirect + j*4
		binary.LittleEndian.PutUint32(b[off:off+4], i.Dindirect[j])
	}
	return b
}

func encodeTime(b []byte, off int, t time.Time) {
	binary.LittleEndian.PutUint64(b[off:off+8], uint64(t.Unix()))
}

func decodeTime(b [sector.Size]byte, off int) time.Time {
	sec := int64(binary.LittleEndian.Uint64(b[off : off+8]))
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}

// BytesToSectors returns how many data sectors a file of the given byte
// length occupies (ceil(length/512), 0 for a zero-length file).
func BytesToSectors(length uint64) int {
	if length == 0 {
		return 0
	}
	return int((length + sector.Size - 1) / sector.Size)
}

// FillTotal returns DirCount + indirect-fill-total + dindirect-fill-total,
// the invariant checked by spec.md §8 property 1. Each fill counter points
// one past the last populated slot of the current, possibly-partial
// container (spec.md §4.2), so the double-indirect total is
// (DindirL1Fill-1) fully-populated indirect children (128 data sectors
// each) plus DindirL2Fill data sectors in the current one.
func (i *Inode) FillTotal() int {
	total := int(i.DirCount)
	if i.IndirCount > 0 {
		total += int(i.IndirFill)
	}
	if i.DindirCount > 0 && i.DindirL1Fill > 0 {
		total += (int(i.DindirL1Fill)-1)*PointersPerBlock + int(i.DindirL2Fill)
	}
	return total
}
