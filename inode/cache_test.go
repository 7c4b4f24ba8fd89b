package inode_test

import (
	"testing"

	"github.com/inodefs/inodefs/inode"
)

func TestCacheDedupsBySector(t *testing.T) {
	dev, alloc := newFixture(t, 64)
	ino := newInode(t, dev, alloc)
	ino.DirCount = 0

	c := inode.NewCache(dev, alloc)
	h1, err := c.Adopt(ino)
	if err != nil {
		t.Fatalf("Adopt: %v", err)
	}
	h2, err := c.Open(ino.SelfSector)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if h1.Inode() != h2.Inode() {
		t.Fatalf("expected both handles to share the same in-memory inode")
	}
	if got := c.RefCount(ino.SelfSector); got != 2 {
		t.Fatalf("RefCount = %d, want 2", got)
	}

	if err := c.Close(h1); err != nil {
		t.Fatalf("Close h1: %v", err)
	}
	if got := c.RefCount(ino.SelfSector); got != 1 {
		t.Fatalf("RefCount after first close = %d, want 1", got)
	}
	if err := c.Close(h2); err != nil {
		t.Fatalf("Close h2: %v", err)
	}
	if got := c.RefCount(ino.SelfSector); got != 0 {
		t.Fatalf("RefCount after last close = %d, want 0", got)
	}
}

func TestCacheReleasesOnCloseAfterRemoval(t *testing.T) {
	dev, alloc := newFixture(t, 64)
	ino := newInode(t, dev, alloc)
	if _, err := inode.Extend(dev, alloc, ino, 3*512); err != nil {
		t.Fatalf("Extend: %v", err)
	}

	c := inode.NewCache(dev, alloc)
	h, err := c.Adopt(ino)
	if err != nil {
		t.Fatalf("Adopt: %v", err)
	}
	h2 := c.Reopen(h)
	c.MarkRemoved(h)

	before := alloc.InUse()
	if err := c.Close(h); err != nil {
		t.Fatalf("Close h: %v", err)
	}
	// still one open reference (h2): sectors must not be released yet.
	if alloc.InUse() != before {
		t.Fatalf("sectors released while still referenced: InUse went from %d to %d", before, alloc.InUse())
	}
	if err := c.Close(h2); err != nil {
		t.Fatalf("Close h2: %v", err)
	}
	if alloc.InUse() >= before {
		t.Fatalf("expected sectors to be released after last close: before=%d after=%d", before, alloc.InUse())
	}
	if c.RefCount(ino.SelfSector) != 0 {
		t.Fatalf("entry should be gone from the cache")
	}
}
