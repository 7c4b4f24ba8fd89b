package sector_test

import (
	"bytes"
	"testing"

	"github.com/inodefs/inodefs/backend/memory"
	"github.com/inodefs/inodefs/sector"
)

func TestReadWriteRoundTrip(t *testing.T) {
	dev, err := sector.Open(memory.New(16*sector.Size), 16, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	var want [sector.Size]byte
	for i := range want {
		want[i] = byte(i % 251)
	}

	if err := dev.WriteSector(3, want); err != nil {
		t.Fatalf("WriteSector: %v", err)
	}
	got, err := dev.ReadSector(3)
	if err != nil {
		t.Fatalf("ReadSector: %v", err)
	}
	if !bytes.Equal(got[:], want[:]) {
		t.Fatalf("round trip mismatch")
	}

	other, err := dev.ReadSector(4)
	if err != nil {
		t.Fatalf("ReadSector(4): %v", err)
	}
	var zero [sector.Size]byte
	if !bytes.Equal(other[:], zero[:]) {
		t.Fatalf("sector 4 should still be zero-filled")
	}
}

func TestOutOfRange(t *testing.T) {
	dev, err := sector.Open(memory.New(4*sector.Size), 4, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, err := dev.ReadSector(4); err == nil {
		t.Fatalf("expected out-of-range error")
	}
	var buf [sector.Size]byte
	if err := dev.WriteSector(4, buf); err == nil {
		t.Fatalf("expected out-of-range error")
	}
}

func TestReadOnlyRejectsWrite(t *testing.T) {
	backing := memory.New(4 * sector.Size)
	dev, err := sector.Open(backing, 4, true)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	var buf [sector.Size]byte
	if err := dev.WriteSector(0, buf); err == nil {
		t.Fatalf("expected write to fail on read-only device")
	}
}
