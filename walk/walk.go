// Package walk implements spec.md §4.5's path resolver: tokenizes a path
// against either the root or a process's working directory, descending
// through the directory store one component at a time.
//
// No teacher file resolves paths against a live in-memory cache (the
// teacher's filesystems are read via one-shot OpenFile against a fully
// parsed tree); this is written in the teacher's general small-stateless-
// function style over the directory/inode/handle packages instead of
// adapted from one specific file.
package walk

import (
	"strings"

	"github.com/inodefs/inodefs/directory"
	"github.com/inodefs/inodefs/ferrors"
	"github.com/inodefs/inodefs/freemap"
	"github.com/inodefs/inodefs/handle"
	"github.com/inodefs/inodefs/inode"
)

// Env is the collaborator set the resolver needs: the device, allocator,
// and inode cache shared by the whole mounted filesystem, plus the root
// directory's sector.
type Env struct {
	Dev        inode.Store
	Alloc      *freemap.Allocator
	Cache      *inode.Cache
	RootSector uint32
}

func (e *Env) openDir(sec uint32) (*directory.Dir, error) {
	ih, err := e.Cache.Open(sec)
	if err != nil {
		return nil, err
	}
	if ih.Removed() {
		e.Cache.Close(ih)
		return nil, ferrors.ErrNotFound
	}
	if !ih.Inode().IsDir {
		e.Cache.Close(ih)
		return nil, ferrors.ErrNotDirectory
	}
	f := handle.Open(ih, e.Dev, e.Alloc)
	return directory.Open(f), nil
}

// Basename returns the substring after the last '/', or the whole string
// if there is none. An empty result denotes "the directory itself".
func Basename(path string) string {
	if i := strings.LastIndexByte(path, '/'); i >= 0 {
		return path[i+1:]
	}
	return path
}

// Resolve walks path against cwd (the calling process's working
// directory sector, or RootSector if none), per spec.md §4.5. When
// includeLast is false, the final path component is left unresolved and
// the returned Dir is its parent (used by create/mkdir, which need the
// parent directory plus a basename). When includeLast is true, the
// final component is itself resolved and descended into, and the
// returned Dir is the resolved directory itself.
//
// Resolve closes every intermediate directory handle it opens along the
// way; callers own the final returned *directory.Dir and must close it
// (via its File's inode handle) when done.
func Resolve(env *Env, path string, cwd uint32, includeLast bool) (*directory.Dir, uint32, error) {
	if path == "" {
		return nil, 0, ferrors.ErrBadPath
	}

	startSector := cwd
	if strings.HasPrefix(path, "/") {
		startSector = env.RootSector
	}
	if startSector == 0 {
		startSector = env.RootSector
	}

	cur, err := env.openDir(startSector)
	if err != nil {
		return nil, 0, err
	}
	curSector := startSector

	tokens := splitTokens(path)
	if len(tokens) == 0 {
		// "/" or "" after trimming: the directory itself.
		return cur, curSector, nil
	}

	for i, tok := range tokens {
		last := i == len(tokens)-1
		if last && !includeLast {
			return cur, curSector, nil
		}

		nextSector, found, err := cur.Lookup(tok, curSector)
		if err != nil {
			closeDir(env, cur)
			return nil, 0, err
		}
		if !found {
			closeDir(env, cur)
			return nil, 0, ferrors.ErrNotFound
		}

		next, err := env.openDir(nextSector)
		if err != nil {
			closeDir(env, cur)
			return nil, 0, err
		}
		closeDir(env, cur)
		cur, curSector = next, nextSector
	}
	return cur, curSector, nil
}

// ResolveNonDirLast behaves like Resolve with includeLast, but the final
// component is allowed to name a regular file: it resolves and returns
// the parent directory (for entry bookkeeping) plus the final
// component's own inode sector, without attempting to open the final
// component as a directory (which would fail with ErrNotDirectory for a
// regular file).
func ResolveNonDirLast(env *Env, path string, cwd uint32) (parent *directory.Dir, parentSector uint32, targetSector uint32, found bool, err error) {
	parent, parentSector, err = Resolve(env, path, cwd, false)
	if err != nil {
		return nil, 0, 0, false, err
	}
	name := Basename(path)
	if name == "" {
		return parent, parentSector, parentSector, true, nil
	}
	targetSector, found, err = parent.Lookup(name, parentSector)
	return parent, parentSector, targetSector, found, err
}

// ResolveFinal resolves path to its target inode sector without leaving
// any directory handle open, for callers (e.g. open-by-path) that only
// need the sector number, not a live parent handle.
func ResolveFinal(env *Env, path string, cwd uint32) (uint32, bool, error) {
	parent, _, targetSector, found, err := ResolveNonDirLast(env, path, cwd)
	if err != nil {
		return 0, false, err
	}
	closeDir(env, parent)
	return targetSector, found, nil
}

func closeDir(env *Env, d *directory.Dir) {
	env.Cache.Close(d.File().InodeHandle())
}

func splitTokens(path string) []string {
	var out []string
	for _, part := range strings.Split(path, "/") {
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
