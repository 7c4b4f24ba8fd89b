package inode_test

import (
	"testing"

	"github.com/inodefs/inodefs/backend/memory"
	"github.com/inodefs/inodefs/freemap"
	"github.com/inodefs/inodefs/inode"
	"github.com/inodefs/inodefs/sector"
)

func newFixture(t *testing.T, numSectors uint32) (*sector.Device, *freemap.Allocator) {
	t.Helper()
	dev, err := sector.Open(memory.New(int64(numSectors)*sector.Size), numSectors, false)
	if err != nil {
		t.Fatalf("sector.Open: %v", err)
	}
	alloc, err := freemap.Create(dev, 1, numSectors)
	if err != nil {
		t.Fatalf("freemap.Create: %v", err)
	}
	return dev, alloc
}

func newInode(t *testing.T, dev *sector.Device, alloc *freemap.Allocator) *inode.Inode {
	t.Helper()
	s, ok := alloc.Allocate(1)
	if !ok {
		t.Fatalf("could not allocate inode sector")
	}
	return inode.New(s, false)
}

func TestExtendWithinDirectRegion(t *testing.T) {
	dev, alloc := newFixture(t, 64)
	ino := newInode(t, dev, alloc)

	got, err := inode.Extend(dev, alloc, ino, 3*sector.Size)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if got != 3*sector.Size {
		t.Fatalf("actual length = %d, want %d", got, 3*sector.Size)
	}
	if ino.DirCount != 3 {
		t.Fatalf("DirCount = %d, want 3", ino.DirCount)
	}
	if ino.FillTotal() != inode.BytesToSectors(ino.Length) {
		t.Fatalf("FillTotal invariant broken: %d vs %d", ino.FillTotal(), inode.BytesToSectors(ino.Length))
	}
}

func TestExtendCrossesIntoIndirectRegion(t *testing.T) {
	dev, alloc := newFixture(t, 4096)
	ino := newInode(t, dev, alloc)

	target := uint64(inode.DirectCount+20) * sector.Size
	got, err := inode.Extend(dev, alloc, ino, target)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if got != target {
		t.Fatalf("actual length = %d, want %d", got, target)
	}
	if ino.DirCount != inode.DirectCount {
		t.Fatalf("DirCount = %d, want %d", ino.DirCount, inode.DirectCount)
	}
	if ino.IndirCount != 1 || ino.IndirFill != 20 {
		t.Fatalf("indirect state = count %d fill %d, want 1/20", ino.IndirCount, ino.IndirFill)
	}
	if ino.FillTotal() != inode.BytesToSectors(ino.Length) {
		t.Fatalf("FillTotal invariant broken: %d vs %d", ino.FillTotal(), inode.BytesToSectors(ino.Length))
	}

	for off := uint64(0); off < target; off += sector.Size {
		s, ok, err := inode.Locate(dev, ino, off)
		if err != nil {
			t.Fatalf("Locate(%d): %v", off, err)
		}
		if !ok || s == sector.None {
			t.Fatalf("Locate(%d) returned no sector", off)
		}
	}
}

func TestExtendCrossesIntoDoubleIndirectRegion(t *testing.T) {
	dev, alloc := newFixture(t, 40000)
	ino := newInode(t, dev, alloc)

	target := uint64(inode.DirectCount+inode.PointersPerBlock+300) * sector.Size
	got, err := inode.Extend(dev, alloc, ino, target)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if got != target {
		t.Fatalf("actual length = %d, want %d", got, target)
	}
	if ino.DindirCount != 1 {
		t.Fatalf("DindirCount = %d, want 1", ino.DindirCount)
	}
	wantL1 := 300/inode.PointersPerBlock + 1
	wantL2 := 300 % inode.PointersPerBlock
	if int(ino.DindirL1Fill) != wantL1 || int(ino.DindirL2Fill) != wantL2 {
		t.Fatalf("dindirect fill = %d/%d, want %d/%d", ino.DindirL1Fill, ino.DindirL2Fill, wantL1, wantL2)
	}
	if ino.FillTotal() != inode.BytesToSectors(ino.Length) {
		t.Fatalf("FillTotal invariant broken: %d vs %d", ino.FillTotal(), inode.BytesToSectors(ino.Length))
	}

	last, ok, err := inode.Locate(dev, ino, target-1)
	if err != nil || !ok || last == sector.None {
		t.Fatalf("Locate(last byte) failed: ok=%v err=%v sector=%d", ok, err, last)
	}
}

func TestExtendAtMaxLengthCaps(t *testing.T) {
	dev, alloc := newFixture(t, 4)
	ino := newInode(t, dev, alloc)

	got, err := inode.Extend(dev, alloc, ino, inode.MaxLength+sector.Size)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	// with only 4 sectors on the whole device (boot, bitmap, and the
	// inode's own leave one free), the allocator runs out long before
	// reaching MaxLength, so
	// verify only that growth never exceeds the ceiling.
	if got > inode.MaxLength {
		t.Fatalf("actual length %d exceeds MaxLength %d", got, inode.MaxLength)
	}
}

func TestExtendFailsPartwayKeepsPartialAllocation(t *testing.T) {
	dev, alloc := newFixture(t, 5) // boot sector + 1 bitmap sector + inode sector leave 2 free
	ino := newInode(t, dev, alloc)

	got, err := inode.Extend(dev, alloc, ino, 10*sector.Size)
	if err != nil {
		t.Fatalf("Extend: %v", err)
	}
	if got == 10*sector.Size {
		t.Fatalf("expected partial growth on exhaustion, got full target")
	}
	if got == 0 {
		t.Fatalf("expected some partial growth, got 0")
	}
	if ino.FillTotal() != inode.BytesToSectors(ino.Length) {
		t.Fatalf("FillTotal invariant broken after partial growth: %d vs %d", ino.FillTotal(), inode.BytesToSectors(ino.Length))
	}
	reread, err := dev.ReadSector(ino.SelfSector)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	persisted, err := inode.Decode(reread)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if persisted.Length != ino.Length {
		t.Fatalf("persisted length %d != in-memory length %d", persisted.Length, ino.Length)
	}
}

func TestFreeAllReleasesEverySector(t *testing.T) {
	dev, alloc := newFixture(t, 4096)
	ino := newInode(t, dev, alloc)

	target := uint64(inode.DirectCount+inode.PointersPerBlock+50) * sector.Size
	if _, err := inode.Extend(dev, alloc, ino, target); err != nil {
		t.Fatalf("Extend: %v", err)
	}
	before := alloc.InUse()

	if err := inode.FreeAll(dev, alloc, ino); err != nil {
		t.Fatalf("FreeAll: %v", err)
	}
	after := alloc.InUse()
	freed := before - after
	wantFreed := inode.DirectCount + 1 /* indirect container */ + inode.PointersPerBlock +
		1 /* dindirect outer */ + 1 /* one indirect child */ + 50
	if freed != wantFreed {
		t.Fatalf("freed %d sectors, want %d", freed, wantFreed)
	}
	if ino.Length != 0 || ino.DirCount != 0 || ino.IndirCount != 0 || ino.DindirCount != 0 {
		t.Fatalf("inode not reset after FreeAll: %+v", ino)
	}
}
