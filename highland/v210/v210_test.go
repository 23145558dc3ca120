package v210_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nasa-jpl/golab-vme/highland/v210"
	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
)

func setup(t *testing.T) (*v210.V210, *sim.Memory) {
	t.Helper()
	bus := sim.New()
	mem := v210.Simulate(bus, vme.A16, 0xC000)
	rly, err := v210.New(bus, 0xC000, vme.A16, "relays")
	if err != nil {
		t.Fatal(err)
	}
	if err := bus.Allocate(); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { rly.Close() })
	return rly, mem
}

func ExampleV210_SetRelays() {
	bus := sim.New()
	v210.Simulate(bus, vme.A24, 0x100000)
	rly, _ := v210.New(bus, 0x100000, vme.A24, "relays")
	defer rly.Close()
	bus.Allocate()
	rly.SetRelays(1 << 32)
	mask, _ := rly.Relays(0)
	fmt.Printf("0x%016X\n", mask)
	// Output: 0x0000000100000000
}

func TestNewRejectsAddressAboveCeiling(t *testing.T) {
	bus := sim.New()
	if _, err := v210.New(bus, 0xFFE1, vme.A16, "x"); !errors.Is(err, vme.ErrInvalidAddress) {
		t.Errorf("expected ErrInvalidAddress, got %v", err)
	}
	if _, err := v210.New(bus, 0xFFE0, vme.A16, "x"); err != nil {
		t.Errorf("0xFFE0 should be accepted, got %v", err)
	}
	if _, err := v210.New(bus, 0xFFFFE1, vme.A24, "x"); err == nil {
		t.Error("0xFFFFE1 should be rejected in A24")
	}
}

func TestIdentity(t *testing.T) {
	rly, _ := setup(t)
	mfr, err := rly.VXIManufacturer()
	if err != nil || mfr != v210.Manufacturer {
		t.Errorf("expected manufacturer 0xFEEE, got 0x%04X %v", mfr, err)
	}
	typ, _ := rly.VXIType()
	if typ != 22210 {
		t.Errorf("expected model type 22210, got %d", typ)
	}
	rev, _ := rly.FPGARevision()
	if rev != 'A' {
		t.Errorf("expected FPGA revision A, got %c", rev)
	}
}

func TestErrorLEDIsActiveLow(t *testing.T) {
	rly, mem := setup(t)
	if err := rly.SetErrorLED(false); err != nil {
		t.Fatal(err)
	}
	if mem.Peek(0x02)&0x8000 == 0 {
		t.Error("turning the LED off should set bit 15")
	}
	on, _ := rly.ErrorLED()
	if on {
		t.Error("LED should read off")
	}
	rly.SetErrorLED(true)
	if on, _ := rly.ErrorLED(); !on {
		t.Error("LED should read on")
	}
}

func TestDrivers(t *testing.T) {
	rly, mem := setup(t)
	rly.SetErrorLED(false)
	rly.EnableDrivers()
	p4, _ := rly.P4TMEnabled()
	p3, _ := rly.P3TMEnabled()
	if !p4 || !p3 {
		t.Errorf("expected both drivers enabled, got P4 %t P3 %t", p4, p3)
	}
	rly.DisableDrivers()
	if got := mem.Peek(0x02); got != 0x8000 {
		t.Errorf("disabling drivers should leave only the LED bit, got 0x%04X", got)
	}
}

func TestRelayMaskRoundTrip(t *testing.T) {
	rly, mem := setup(t)
	for _, mask := range []uint64{0, 0xFFFFFFFFFFFFFFFF, 0x0000000100000000, 0x8000000000000001} {
		if err := rly.SetRelays(mask); err != nil {
			t.Fatal(err)
		}
		got, err := rly.Relays(0)
		if err != nil {
			t.Fatal(err)
		}
		if got != mask {
			t.Errorf("expected 0x%016X got 0x%016X", mask, got)
		}
	}
	rly.SetRelays(1)
	if mem.Peek(0x16) != 1 || mem.Peek(0x10) != 0 {
		t.Error("channel 0 should live in the last control register")
	}
}

func TestSetRelayAndContacts(t *testing.T) {
	rly, _ := setup(t)
	rly.SetRelays(0)
	if err := rly.SetRelay(63, true); err != nil {
		t.Fatal(err)
	}
	rly.SetRelay(5, true)
	rly.SetRelay(5, false)
	got, _ := rly.Contacts(0)
	if got != 1<<63 {
		t.Errorf("expected only relay 63 closed, got 0x%016X", got)
	}
	if err := rly.SetRelay(64, true); !errors.Is(err, vme.ErrChannelRange) {
		t.Errorf("expected ErrChannelRange, got %v", err)
	}
}

func TestNotMapped(t *testing.T) {
	bus := sim.New()
	rly, err := v210.New(bus, 0xC000, vme.A16, "relays")
	if err != nil {
		t.Fatal(err)
	}
	if err := rly.SetRelays(1); !errors.Is(err, vme.ErrNotMapped) {
		t.Errorf("expected ErrNotMapped, got %v", err)
	}
	var nilRly *v210.V210
	if _, err := nilRly.BoardID(); !errors.Is(err, vme.ErrNilRegion) {
		t.Errorf("expected ErrNilRegion, got %v", err)
	}
}
