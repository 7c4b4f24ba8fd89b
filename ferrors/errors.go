// Package ferrors defines the sentinel error kinds shared across the
// engine's layers (spec.md §7). Top-level syscalls collapse these back
// into a bool/int/sentinel return rather than surfacing the kind itself;
// internal callers use errors.Is against these values.
package ferrors

import "errors"

var (
	ErrNotFound     = errors.New("name not found")
	ErrExists       = errors.New("name already exists")
	ErrNotDirectory = errors.New("not a directory")
	ErrIsDirectory  = errors.New("is a directory")
	ErrNoSpace      = errors.New("no space left on device")
	ErrReadOnly     = errors.New("write denied")
	ErrBadPath      = errors.New("malformed path")
	ErrBadFd        = errors.New("bad file descriptor")
	ErrCorrupt      = errors.New("on-disk structure corrupt")
)
