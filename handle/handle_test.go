package handle_test

import (
	"bytes"
	"testing"

	"github.com/inodefs/inodefs/backend/memory"
	"github.com/inodefs/inodefs/freemap"
	"github.com/inodefs/inodefs/handle"
	"github.com/inodefs/inodefs/inode"
	"github.com/inodefs/inodefs/sector"
)

func newFixture(t *testing.T, numSectors uint32) (*sector.Device, *freemap.Allocator, *inode.Cache) {
	t.Helper()
	dev, err := sector.Open(memory.New(int64(numSectors)*sector.Size), numSectors, false)
	if err != nil {
		t.Fatalf("sector.Open: %v", err)
	}
	alloc, err := freemap.Create(dev, 1, numSectors)
	if err != nil {
		t.Fatalf("freemap.Create: %v", err)
	}
	return dev, alloc, inode.NewCache(dev, alloc)
}

func newFile(t *testing.T, dev *sector.Device, alloc *freemap.Allocator, cache *inode.Cache) *handle.File {
	t.Helper()
	s, ok := alloc.Allocate(1)
	if !ok {
		t.Fatalf("could not allocate inode sector")
	}
	ih, err := cache.Adopt(inode.New(s, false))
	if err != nil {
		t.Fatalf("Adopt: %v", err)
	}
	return handle.Open(ih, dev, alloc)
}

func TestWriteReadRoundTrip(t *testing.T) {
	dev, alloc, cache := newFixture(t, 4096)
	f := newFile(t, dev, alloc, cache)

	data := make([]byte, 200000)
	for i := range data {
		data[i] = byte(i % 251)
	}
	n := f.Write(data)
	if n != len(data) {
		t.Fatalf("Write returned %d, want %d", n, len(data))
	}
	if f.Length() != int64(len(data)) {
		t.Fatalf("Length = %d, want %d", f.Length(), len(data))
	}

	f.Seek(0)
	got := make([]byte, len(data))
	n = f.Read(got)
	if n != len(data) {
		t.Fatalf("Read returned %d, want %d", n, len(data))
	}
	if !bytes.Equal(got, data) {
		t.Fatalf("round-tripped data mismatch")
	}
}

func TestSparseExtensionReadsZero(t *testing.T) {
	dev, alloc, cache := newFixture(t, 4096)
	f := newFile(t, dev, alloc, cache)

	f.Seek(0)
	f.Write([]byte("hello"))

	hole := int64(5000)
	f.Seek(hole)
	tail := []byte("world")
	n := f.Write(tail)
	if n != len(tail) {
		t.Fatalf("Write returned %d, want %d", n, len(tail))
	}

	f.Seek(5)
	gap := make([]byte, hole-5)
	if n := f.Read(gap); n != len(gap) {
		t.Fatalf("Read gap returned %d, want %d", n, len(gap))
	}
	for i, b := range gap {
		if b != 0 {
			t.Fatalf("gap byte %d = %d, want 0", i, b)
		}
	}
}

func TestDenyWriteBlocksOtherHandles(t *testing.T) {
	dev, alloc, cache := newFixture(t, 64)
	f1 := newFile(t, dev, alloc, cache)
	ih2 := cache.Reopen(f1.InodeHandle())
	f2 := handle.Open(ih2, dev, alloc)

	f1.DenyWrite()
	if n := f2.Write([]byte("x")); n != 0 {
		t.Fatalf("write under deny returned %d, want 0", n)
	}
	f1.AllowWrite()
	if n := f2.Write([]byte("x")); n != 1 {
		t.Fatalf("write after allow returned %d, want 1", n)
	}
}

func TestWriteInsufficientExtensionReturnsSentinel(t *testing.T) {
	dev, alloc, cache := newFixture(t, 3) // boot sector + bitmap sector + inode sector leave none free
	f := newFile(t, dev, alloc, cache)

	n := f.Write(make([]byte, 4*sector.Size))
	if n != -1 {
		t.Fatalf("Write = %d, want -1 (sentinel for insufficient extension)", n)
	}
}
