package fsys_test

import (
	"path/filepath"
	"testing"

	"github.com/inodefs/inodefs/fsys"
)

func TestFormatMountPathRoundTrip(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "image.bin")

	fs, err := fsys.FormatPath(imagePath, testSectors*512, fsys.Params{Label: "pathvol"})
	if err != nil {
		t.Fatalf("FormatPath: %v", err)
	}
	proc := fsys.NewProcess()
	if ok := fs.Mkdir(proc, "/persisted"); !ok {
		t.Fatalf("Mkdir failed")
	}
	if err := fs.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	// Re-mount through the real file path, proving the on-disk image
	// written through backend/file survives a fresh process's view of it
	// and that MountPath's file.SizeBytes probe recovers the right sector
	// count without the caller repeating it.
	remounted, err := fsys.MountPath(imagePath, false, nil)
	if err != nil {
		t.Fatalf("MountPath: %v", err)
	}
	defer remounted.Shutdown()
	if remounted.Label() != "pathvol" {
		t.Fatalf("Label() = %q, want %q", remounted.Label(), "pathvol")
	}

	proc2 := fsys.NewProcess()
	if ok := remounted.Mkdir(proc2, "/persisted/child"); !ok {
		t.Fatalf("Mkdir into directory persisted across FormatPath/MountPath failed")
	}
}

func TestMountPathReadOnly(t *testing.T) {
	imagePath := filepath.Join(t.TempDir(), "readonly.bin")

	fs, err := fsys.FormatPath(imagePath, testSectors*512, fsys.Params{})
	if err != nil {
		t.Fatalf("FormatPath: %v", err)
	}
	if err := fs.Shutdown(); err != nil {
		t.Fatalf("Shutdown: %v", err)
	}

	ro, err := fsys.MountPath(imagePath, true, nil)
	if err != nil {
		t.Fatalf("MountPath read-only: %v", err)
	}
	defer ro.Shutdown()

	proc := fsys.NewProcess()
	if ok := ro.Mkdir(proc, "/shouldfail"); ok {
		t.Fatalf("Mkdir on a read-only mount unexpectedly succeeded")
	}
}
