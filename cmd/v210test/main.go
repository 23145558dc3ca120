// Command v210test exercises a V210 relay module: identity, error LED, relay
// drivers and the relay and contact registers.
package main

import (
	"errors"
	"io"
	"os"
	"time"

	"github.com/nasa-jpl/golab-vme/highland/v210"
	"github.com/nasa-jpl/golab-vme/internal/bench"
	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
	"github.com/spf13/pflag"
)

func main() {
	os.Exit(run(os.Args[1:], os.Stdout))
}

func run(args []string, out io.Writer) int {
	var settle, step time.Duration
	s, err := bench.Parse("v210test", "v210", args, out, func(fs *pflag.FlagSet) {
		fs.DurationVar(&settle, "settle", v210.MinSettle, "relay settling time before readback")
		fs.DurationVar(&step, "step", 250*time.Millisecond, "dwell on each relay of the sequential walk")
	})
	if err != nil {
		return 1
	}
	log := s.Logger()
	defer log.Sync()
	l := &bench.Log{W: out}

	bus, err := s.Open(func(c *sim.Crate, mode vme.AddrMode, addr uint32) { v210.Simulate(c, mode, addr) }, log)
	if err != nil {
		l.Check("open the bus", err)
		return 1
	}
	defer bus.Close()
	dev, err := v210.New(bus, s.Address, s.Mode, s.Name, vme.WithLogger(log))
	if err != nil {
		l.Check("create the V210 region", err)
		return 1
	}
	defer dev.Close()
	if err := bus.Allocate(); err != nil {
		l.Check("allocate the V210 region", err)
		return 1
	}

	l.Section("V210 Region Information")
	l.Printf("%s", dev)

	l.Section("V210 Overhead Information")
	if id, err := dev.BoardID(); l.Check("get board ID", err) {
		l.Printf("Board ID: 0x%04X", id)
	}
	if mfr, err := dev.VXIManufacturer(); l.Check("get VXI manufacturer ID", err) {
		l.Printf("VXI Manufacturer ID: 0x%04X", mfr)
	}
	if typ, err := dev.VXIType(); l.Check("get VXI model type", err) {
		l.Printf("VXI Model Type: %d", typ)
	}
	if rev, err := dev.FPGARevision(); l.Check("get FPGA revision", err) {
		l.Printf("FPGA Revision: %c", rune(rev))
	}

	l.Section("V210 Error LED")
	errorLED(l, dev, false)

	l.Section("V210 Relay Drivers")
	if l.Check("enable relay drivers", dev.EnableDrivers()) {
		l.Printf("Enabled relay drivers")
	}
	drivers(l, dev)

	l.Section("V210 Single Relay")
	if l.Check("close relay 32", dev.SetRelay(32, true)) {
		l.Printf("Closed relay 32")
	}
	relays(l, dev, settle)
	if l.Check("clear relays", dev.SetRelays(0)) {
		l.Printf("Cleared relays")
	}

	l.Section("V210 All Relays")
	if l.Check("close all relays", dev.SetRelays(^uint64(0))) {
		l.Printf("Closed all relays")
	}
	relays(l, dev, settle)
	if l.Check("clear relays", dev.SetRelays(0)) {
		l.Printf("Cleared relays")
	}

	l.Section("V210 Sequential Relays")
	walk(l, dev, step)

	l.Section("V210 Shutdown")
	if l.Check("disable relay drivers", dev.DisableDrivers()) {
		l.Printf("Disabled relay drivers")
	}
	drivers(l, dev)
	errorLED(l, dev, true)
	return 0
}

func errorLED(l *bench.Log, dev *v210.V210, on bool) {
	state := map[bool]string{true: "on", false: "off"}
	if !l.Check("set error LED "+state[on], dev.SetErrorLED(on)) {
		return
	}
	lit, err := dev.ErrorLED()
	if !l.Check("get error LED", err) {
		return
	}
	l.Printf("Error LED is %s", state[lit])
	if lit != on {
		l.Check("verify error LED", errors.New("readback does not match"))
	}
}

func drivers(l *bench.Log, dev *v210.V210) {
	if p4, err := dev.P4TMEnabled(); l.Check("get P4TM state", err) {
		l.Printf("P4TM enabled: %t", p4)
	}
	if p3, err := dev.P3TMEnabled(); l.Check("get P3TM state", err) {
		l.Printf("P3TM enabled: %t", p3)
	}
}

func relays(l *bench.Log, dev *v210.V210, settle time.Duration) {
	if mask, err := dev.Relays(settle); l.Check("get relays", err) {
		l.Printf("Relay states: 0x%016X", mask)
	}
	if mask, err := dev.Contacts(0); l.Check("get contacts", err) {
		l.Printf("Contact states: 0x%016X", mask)
	}
}

// walk closes every relay in turn, then opens them again in reverse
func walk(l *bench.Log, dev *v210.V210, step time.Duration) {
	for ch := 0; ch < v210.Channels; ch++ {
		if !l.Check("close relay", dev.SetRelay(ch, true)) {
			return
		}
		time.Sleep(step)
	}
	l.Printf("Closed all relays one at a time")
	for ch := v210.Channels - 1; ch >= 0; ch-- {
		if !l.Check("open relay", dev.SetRelay(ch, false)) {
			return
		}
		time.Sleep(step)
	}
	mask, err := dev.Relays(0)
	if l.Check("get relays", err) {
		l.Printf("Opened all relays in reverse, relay states: 0x%016X", mask)
	}
}
