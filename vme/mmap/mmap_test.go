//go:build linux
// +build linux

package mmap_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/mmap"
)

var card = vme.Module{Name: "card", Size: 0x20}

// backing returns the path of a sparse file standing in for the device node
func backing(t *testing.T) (string, *os.File) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "v120_q0")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := f.Truncate(2 << 24); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { f.Close() })
	return path, f
}

func TestMappedRegisters(t *testing.T) {
	path, _ := backing(t)
	bus, err := mmap.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()
	r, err := vme.Bind(bus, card, 0xC010, vme.A16, "card")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := r.Regs(); err == nil {
		t.Error("registers should not be reachable before Allocate")
	}
	if err := bus.Allocate(); err != nil {
		t.Fatal(err)
	}
	mem, err := r.Regs()
	if err != nil {
		t.Fatal(err)
	}
	mem.Write16(0x1E, 0xA55A)
	if v := mem.Read16(0x1E); v != 0xA55A {
		t.Errorf("expected 0xA55A got 0x%04X", v)
	}
	buf := make([]uint16, 16)
	err = bus.Transfer(vme.Xfer{Flags: vme.XferA16 | vme.XferD16, Dir: vme.FromBus, Addr: 0xC010, Buf: buf})
	if err != nil {
		t.Fatal(err)
	}
	if buf[15] != 0xA55A {
		t.Errorf("block read should observe the mapped write, got 0x%04X", buf[15])
	}
	if err := r.Unbind(); err != nil {
		t.Fatal(err)
	}
	if r.Mapped() {
		t.Error("region should be unmapped after Unbind")
	}
}

func TestTransferEShortIsBigEndian(t *testing.T) {
	path, f := backing(t)
	if _, err := f.WriteAt([]byte{0x12, 0x34, 0xAB, 0xCD}, 1<<24|0x100000); err != nil {
		t.Fatal(err)
	}
	bus, err := mmap.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer bus.Close()
	buf := make([]uint16, 2)
	err = bus.Transfer(vme.Xfer{Flags: vme.A24.Flags(), Dir: vme.FromBus, Addr: 0x100000, Buf: buf})
	if err != nil {
		t.Fatal(err)
	}
	if buf[0] != 0x1234 || buf[1] != 0xABCD {
		t.Errorf("expected 0x1234 0xABCD, got 0x%04X 0x%04X", buf[0], buf[1])
	}
	err = bus.Transfer(vme.Xfer{Flags: vme.A24.Flags(), Dir: vme.ToBus, Addr: 0x100004, Buf: []uint16{0xBEEF}})
	if err != nil {
		t.Fatal(err)
	}
	got := make([]byte, 2)
	f.ReadAt(got, 1<<24|0x100004)
	if got[0] != 0xBE || got[1] != 0xEF {
		t.Errorf("expected BE EF on the bus, got % X", got)
	}
}

func TestClosedBus(t *testing.T) {
	path, _ := backing(t)
	bus, err := mmap.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	bus.Close()
	if _, err := vme.Bind(bus, card, 0xC000, vme.A16, "late"); err == nil {
		t.Error("a closed bus should refuse regions")
	}
	if err := bus.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got %v", err)
	}
}

func TestOpenMissingDevice(t *testing.T) {
	if _, err := mmap.Open(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Error("expected an error opening a missing device")
	}
}
