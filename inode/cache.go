package inode

import (
	"fmt"

	"github.com/inodefs/inodefs/freemap"
)

// Handle is a single open reference to a cached inode. Every directory
// entry resolution and every open file handle holds one; the same
// underlying *Inode is shared (and its sector re-read only once) across
// all concurrently open references, per spec.md §4.3.
type Handle struct {
	entry    *entry
	denyHeld bool
}

// Inode returns the shared in-memory inode this handle refers to. Callers
// must hold the filesystem-wide lock before mutating it (spec.md's
// non-goal of fine-grained locking: one coarse lock covers the whole
// cache and the devices beneath it).
func (h *Handle) Inode() *Inode { return h.entry.ino }

// DenyWrite brackets a region during which every write against this
// inode fails, across all handles sharing it. A handle may hold at most
// one deny; a second call is a no-op (spec.md §4.6).
func (h *Handle) DenyWrite() {
	if h.denyHeld {
		return
	}
	h.entry.denyWriteHeld++
	h.denyHeld = true
}

// AllowWrite releases this handle's deny_write hold, if any.
func (h *Handle) AllowWrite() {
	if !h.denyHeld {
		return
	}
	h.entry.denyWriteHeld--
	h.denyHeld = false
}

// WriteDenied reports whether any handle currently holds a deny_write on
// this inode.
func (h *Handle) WriteDenied() bool { return h.entry.denyWriteHeld > 0 }

// Removed reports whether this inode has been unlinked (spec.md §4.5:
// the path resolver must treat a removed-but-open directory as
// unreachable even though it is still resident in the cache).
func (h *Handle) Removed() bool { return h.entry.removed }

// RefCount reports how many open handles currently share this inode,
// used by fsys.Remove to detect "in use as a cwd" (open-count > 1,
// spec.md §4.4/§9's open question).
func (h *Handle) RefCount() int { return h.entry.refCount }

type entry struct {
	ino           *Inode
	refCount      int
	removed       bool // unlinked while still open; freed when refCount hits 0
	denyWriteHeld int  // number of handles currently holding a deny_write
}

// Cache deduplicates in-memory Inode instances by sector so concurrent
// opens of the same file see one shared, ref-counted copy (spec.md §4.3).
// Grounded on the teacher's filesystem/ext4 inode-reading-by-number path,
// generalized here into an explicit open/close refcount registry since
// the teacher itself re-reads an inode from disk on every access.
type Cache struct {
	dev     Store
	alloc   *freemap.Allocator
	entries map[uint32]*entry
}

// NewCache creates an empty cache over dev and its sector allocator.
func NewCache(dev Store, alloc *freemap.Allocator) *Cache {
	return &Cache{dev: dev, alloc: alloc, entries: make(map[uint32]*entry)}
}

// Open returns a Handle to the inode at selfSector, reading it from disk
// the first time and sharing the in-memory copy on every subsequent call
// until the last Handle is closed. It panics if the sector does not hold
// a valid inode (magic mismatch).
func (c *Cache) Open(selfSector uint32) (*Handle, error) {
	if e, ok := c.entries[selfSector]; ok {
		e.refCount++
		return &Handle{entry: e}, nil
	}
	raw, err := c.dev.ReadSector(selfSector)
	if err != nil {
		return nil, fmt.Errorf("inode: reading inode sector %d: %w", selfSector, err)
	}
	ino, err := Decode(raw)
	if err != nil {
		// A magic mismatch means on-disk corruption, which is fatal.
		panic(fmt.Sprintf("inode: decoding inode sector %d: %v", selfSector, err))
	}
	e := &entry{ino: ino, refCount: 1}
	c.entries[selfSector] = e
	return &Handle{entry: e}, nil
}

// Adopt registers a freshly-created, not-yet-persisted inode (spec.md's
// create path: allocate a sector, build the inode in memory, persist it,
// then immediately hand back an open handle) without a redundant read.
func (c *Cache) Adopt(ino *Inode) (*Handle, error) {
	if err := writeInode(c.dev, ino); err != nil {
		return nil, err
	}
	if e, ok := c.entries[ino.SelfSector]; ok {
		e.ino = ino
		e.refCount++
		return &Handle{entry: e}, nil
	}
	e := &entry{ino: ino, refCount: 1}
	c.entries[ino.SelfSector] = e
	return &Handle{entry: e}, nil
}

// Reopen takes an additional reference on an already-open handle's inode
// (e.g. a second file handle opened against the same directory entry).
func (c *Cache) Reopen(h *Handle) *Handle {
	h.entry.refCount++
	return &Handle{entry: h.entry}
}

// MarkRemoved flags the handle's inode as unlinked: once the last
// reference closes, its sectors and its own inode sector are released
// instead of merely being dropped from the cache (spec.md §4.3's
// deferred-delete-until-last-close semantics).
func (c *Cache) MarkRemoved(h *Handle) {
	h.entry.removed = true
}

// Close drops one reference. At zero references the entry leaves the
// cache; if it was marked removed, its data sectors and its own inode
// sector are released back to the allocator.
func (c *Cache) Close(h *Handle) error {
	e := h.entry
	e.refCount--
	if e.refCount > 0 {
		return nil
	}
	delete(c.entries, e.ino.SelfSector)
	if !e.removed {
		return nil
	}
	if err := FreeAll(c.dev, c.alloc, e.ino); err != nil {
		return err
	}
	c.alloc.Release(e.ino.SelfSector, 1)
	return nil
}

// RefCount reports how many open handles currently share selfSector's
// inode, or 0 if it is not resident. Used by tests asserting spec.md §8's
// dedup-by-sector property.
func (c *Cache) RefCount(selfSector uint32) int {
	e, ok := c.entries[selfSector]
	if !ok {
		return 0
	}
	return e.refCount
}
