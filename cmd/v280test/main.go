// Command v280test exercises a V280 digital input module.
package main

import (
	"context"
	"errors"
	"io"
	"os"
	"os/signal"
	"time"

	"github.com/nasa-jpl/golab-vme/highland/v280"
	"github.com/nasa-jpl/golab-vme/internal/bench"
	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
	"github.com/spf13/pflag"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout))
}

func run(ctx context.Context, args []string, out io.Writer) int {
	var (
		poll           time.Duration
		inputs, faults uint64
	)
	s, err := bench.Parse("v280test", "v280", args, out, func(fs *pflag.FlagSet) {
		fs.DurationVar(&poll, "poll", time.Millisecond, "interval the macro busy bit is polled at")
		fs.Uint64Var(&inputs, "sim_inputs", 0xA5A50000FFFF, "input states of the simulated module")
		fs.Uint64Var(&faults, "sim_faults", 0, "channels the simulated self test fails")
	})
	if err != nil {
		return 1
	}
	log := s.Logger()
	defer log.Sync()
	l := &bench.Log{W: out}

	bus, err := s.Open(func(c *sim.Crate, mode vme.AddrMode, addr uint32) {
		v280.Simulate(c, mode, addr, inputs, faults, 3)
	}, log)
	if err != nil {
		l.Check("open the bus", err)
		return 1
	}
	defer bus.Close()
	dev, err := v280.New(bus, s.Address, s.Mode, s.Name, v280.WithLogger(log), v280.WithPollInterval(poll))
	if err != nil {
		l.Check("create the V280 region", err)
		return 1
	}
	defer dev.Close()
	if err := bus.Allocate(); err != nil {
		l.Check("allocate the V280 region", err)
		return 1
	}

	l.Section("V280 Region Information")
	l.Printf("%s", dev)

	l.Section("V280 Overhead Information")
	if v, err := dev.VXIManufacturer(); l.Check("get VXI manufacturer ID", err) {
		l.Printf("VXI Manufacturer ID: 0x%04X", v)
	}
	if v, err := dev.VXIType(); l.Check("get VXI model type", err) {
		l.Printf("VXI Model Type: %d", v)
	}
	if v, err := dev.HardwareRevision(); l.Check("get hardware revision", err) {
		l.Printf("Hardware Revision: %d", v)
	}
	if v, err := dev.Serial(); l.Check("get serial number", err) {
		l.Printf("Serial Number: %d", v)
	}
	if v, err := dev.ROMID(); l.Check("get firmware ID", err) {
		l.Printf("Firmware ID: %d", v)
	}
	if v, err := dev.ROMRevision(); l.Check("get firmware revision", err) {
		l.Printf("Firmware Revision: %c", rune(v))
	}
	if v, err := dev.MCount(); l.Check("get 1 kHz realtime counter", err) {
		l.Printf("1 kHz Realtime Counter: %d", v)
	}
	if v, err := dev.Dash(); l.Check("get dash number", err) {
		l.Printf("Dash (Module Version) Number: %d", v)
	}

	l.Section("V280 Calibration Information")
	if v, err := dev.CalID(); l.Check("get calibration ID", err) {
		l.Printf("Calibration ID: %d", v)
	}
	if v, err := dev.CalYear(); l.Check("get calibration year", err) {
		l.Printf("Calibration Year: %d", v)
	}
	if v, err := dev.CalMonthDay(); l.Check("get calibration month/day", err) {
		l.Printf("Calibration Month/Day: %d/%d", v>>8, v&0xFF)
	}
	if v, err := dev.CalDate(); l.Check("get calibration date", err) {
		l.Printf("Calibration Date: %s", v)
	}

	l.Section("V280 User LED Pattern")
	if l.Check("set user LED pattern", dev.SetULED(0x5A5A)) {
		if v, err := dev.ULED(); l.Check("get user LED pattern", err) {
			l.Printf("User LED Pattern: 0x%04X", v)
		}
	}

	l.Section("V280 Channel Timing Configuration")
	timing(l, "rise", dev.SetRiseDelay, dev.RiseDelay, 1000)
	timing(l, "fall", dev.SetFallDelay, dev.FallDelay, 500)

	l.Section("V280 Input States")
	if v, err := dev.Inputs(); l.Check("get input states", err) {
		l.Printf("Input States: 0x%012X", v)
	}

	l.Section("V280 Buffer Access")
	const index, word = 32, 0xABCD
	if l.Check("write to buffer index 32", dev.WriteBuffer(index, word)) {
		l.Printf("Wrote 0x%04X to buffer index %d", word, index)
	}
	if v, err := dev.ReadBuffer(index); l.Check("read from buffer index 32", err) {
		l.Printf("Read 0x%04X from buffer index %d", v, index)
	}

	l.Section("V280 Built-In Self Test (BIST)")
	err = bench.Wait(out, "running BIST", func() error { return dev.RunBIST(ctx) })
	var merr *vme.MacroError
	switch {
	case errors.As(err, &merr):
		l.Check("pass BIST", err)
	case l.Check("run BIST", err):
		l.Printf("BIST completed successfully")
	}
	if v, err := dev.BISTErrors(); l.Check("get BIST error flags", err) {
		l.Printf("BIST Error Flags: 0x%012X", v)
	}
	return 0
}

func timing(l *bench.Log, edge string, set func(int, uint16) error, get func(int) (uint16, error), delay uint16) {
	if l.Check("set "+edge+" time delay for channel 0", set(0, delay)) {
		l.Printf("Set %s time delay for channel 0 to %d (10 us units)", edge, delay)
	}
	if v, err := get(0); l.Check("get "+edge+" time delay for channel 0", err) {
		l.Printf("%s time delay for channel 0: %d (10 us units)", edge, v)
	}
}
