// Command v230test exercises a V230 analog input module.  The -2 and -21
// variants also run the self test, power supply and cal bus checks.
package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/nasa-jpl/golab-vme/highland/v230"
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

type options struct {
	variant string
	reboot  time.Duration
	poll    time.Duration
	settle  time.Duration
}

func run(ctx context.Context, args []string, out io.Writer) int {
	var o options
	s, err := bench.Parse("v230test", "v230", args, out, func(fs *pflag.FlagSet) {
		fs.StringVar(&o.variant, "v230_variant", v230.Module2.Name, "module variant, V230, V230-2 or V230-21")
		fs.DurationVar(&o.reboot, "reboot_delay", v230.DefaultRebootDelay, "time the module takes to reboot")
		fs.DurationVar(&o.poll, "poll", time.Millisecond, "interval the macro busy bit is polled at")
		fs.DurationVar(&o.settle, "settle", 50*time.Millisecond, "relay settling time after a channel is configured")
	})
	if err != nil {
		return 1
	}
	l := &bench.Log{W: out}
	m, err := v230.Variant(strings.ToUpper(o.variant))
	if err != nil {
		l.Check("select the variant", err)
		return 1
	}
	log := s.Logger()
	defer log.Sync()

	bus, err := s.Open(func(c *sim.Crate, mode vme.AddrMode, addr uint32) { v230.Simulate(c, m, mode, addr, 3) }, log)
	if err != nil {
		l.Check("open the bus", err)
		return 1
	}
	defer bus.Close()
	dev, err := v230.New(bus, m, s.Address, s.Mode, s.Name,
		v230.WithLogger(log), v230.WithPollInterval(o.poll), v230.WithRebootDelay(o.reboot))
	if err != nil {
		l.Check("create the V230 region", err)
		return 1
	}
	defer dev.Close()
	if err := bus.Allocate(); err != nil {
		l.Check("allocate the V230 region", err)
		return 1
	}

	l.Section("V230 Region Information")
	l.Printf("%s", dev)
	testRegisters(l, dev)
	overhead(l, dev)

	l.Section("V230 User LED")
	if l.Check("set user LED pattern", dev.SetULED(0xAAAA)) {
		l.Printf("Set User LED pattern to 0x%04X", 0xAAAA)
	}
	if p, err := dev.ULED(); l.Check("get user LED pattern", err) {
		l.Printf("User LED pattern is 0x%04X", p)
	}

	l.Section("V230 Macros")
	if !l.Check("wait for the module to be idle", dev.WaitMacro(ctx)) {
		return 0
	}
	macro(ctx, l, out, dev, v230.NoOp)
	macro(ctx, l, out, dev, v230.Reboot)
	macro(ctx, l, out, dev, v230.PSTest)

	if m.Has(v230.CapBIST) {
		extended(ctx, l, out, dev)
	}

	channel(l, dev, 12, o.settle)
	voltages(l, dev)
	scanSpeed(l, dev)
	return 0
}

func testRegisters(l *bench.Log, dev *v230.V230) {
	l.Section("V230 Test Registers")
	if h, err := dev.HTest(); l.Check("get hardware test register", err) {
		l.Printf("Hardware Test Register value is 0x%04X", h)
	}
	if l.Check("set user test register", dev.SetUTest(0x55AA)) {
		l.Printf("Set User Test Register to 0x%04X", 0x55AA)
	}
	if u, err := dev.UTest(); l.Check("get user test register", err) {
		l.Printf("User Test Register value is 0x%04X", u)
	}
}

func overhead(l *bench.Log, dev *v230.V230) {
	l.Section("V230 Overhead Information")
	if v, err := dev.VXIManufacturer(); l.Check("get VXI manufacturer ID", err) {
		l.Printf("VXI Manufacturer ID: 0x%04X", v)
	}
	if v, err := dev.VXIType(); l.Check("get VXI model type", err) {
		l.Printf("VXI Model Type: %d", v)
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
	if v, err := dev.ScanCount(); l.Check("get scan counter", err) {
		l.Printf("Scan Counter: %d", v)
	}

	l.Section("V230 Calibration Information")
	if v, err := dev.CalID(); l.Check("get calibration ID", err) {
		l.Printf("Calibration ID: 0x%04X", v)
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
}

// macro issues code and waits for the module to go idle again
func macro(ctx context.Context, l *bench.Log, out io.Writer, dev *v230.V230, code v230.MacroCode) bool {
	err := bench.Wait(out, "running "+code.String(), func() error {
		if err := dev.ExecuteMacro(ctx, code); err != nil {
			return err
		}
		return dev.WaitMacro(ctx)
	})
	if l.Check("run "+code.String(), err) {
		l.Printf("Executed %s", code)
		return true
	}
	return false
}

func extended(ctx context.Context, l *bench.Log, out io.Writer, dev *v230.V230) {
	l.Section("V230 Power Supplies")
	if ps, err := dev.PowerSupplies(); l.Check("get power supply status", err) {
		for i, st := range ps {
			l.Printf("%-8s %8.3f V error: %t", v230.Supply(i), st.Voltage, st.Error)
		}
	}
	bistCount(l, dev)

	l.Section("V230 Full BIST")
	if macro(ctx, l, out, dev, v230.FullBIST) {
		if res, err := dev.FullBISTResults(); l.Check("get full BIST results", err) {
			failed := 0
			for ch, f := range res {
				if f.Failed() {
					failed++
					l.Printf("Channel %d failed: %+v", ch, f)
				}
			}
			l.Printf("%d of %d channels failed", failed, v230.Channels)
		}
	}
	bistCount(l, dev)

	l.Section("V230 Channel Test")
	const ch = 7
	err := bench.Wait(out, "testing channel 7", func() error {
		if err := dev.ChannelTest(ch); err != nil {
			return err
		}
		return dev.WaitMacro(ctx)
	})
	if l.Check("run channel test", err) {
		if res, err := dev.ChannelBISTResults(); l.Check("get channel BIST results", err) {
			l.Printf("Channel %d flags: %+v", ch, res.Flags)
			l.Printf("Channel %d measurements: %v", ch, res.Measurements)
		}
	}
	bistCount(l, dev)

	l.Section("V230 Operating Mode")
	if l.Check("set operating mode", dev.SetMode(v230.ModeBoth)) {
		l.Printf("Set operating mode to %s", v230.ModeBoth)
	}
	if mode, err := dev.Mode(); l.Check("get operating mode", err) {
		l.Printf("Operating mode is %s", mode)
	}

	l.Section("V230 Relay Configuration")
	relays := v230.RelayConfig{Channel: 12, C: true, B: [8]bool{true}}
	if l.Check("set relay configuration", dev.SetRelayConfig(relays)) {
		l.Printf("Set relay configuration")
	}
	if rc, err := dev.RelayConfig(); l.Check("get relay configuration", err) {
		l.Printf("K relay: %d, C relay: %t, B relays: %v", rc.Channel, rc.C, rc.B)
	}

	l.Section("V230 BMUX Configuration")
	if l.Check("set BMUX configuration", dev.SetBMux(v230.BMux{CalPos: 1, CalNeg: 7})) {
		l.Printf("Set BMUX configuration")
	}
	if b, err := dev.BMux(); l.Check("get BMUX configuration", err) {
		l.Printf("Cal+ source: %s, Cal- source: %s", b.CalPos, b.CalNeg)
	}
}

func bistCount(l *bench.Log, dev *v230.V230) {
	if n, err := dev.BISTErrorCount(); l.Check("get BIST error count", err) {
		l.Printf("BIST error count: %d", n)
	}
}

func channel(l *bench.Log, dev *v230.V230, ch int, settle time.Duration) {
	l.Section("V230 Channel Configuration")
	cfg := v230.ChannelConfig{Range: v230.Range3, Filter: v230.FilterNone, Enable: true}
	if l.Check("set channel configuration", dev.SetChannelConfig(ch, cfg)) {
		l.Printf("Set channel %d configuration", ch)
	}
	if c, err := dev.ChannelConfig(ch); l.Check("get channel configuration", err) {
		l.Printf("Channel %d range: %s, filter: %s, enabled: %t", ch, c.Range, c.Filter, c.Enable)
	}
	time.Sleep(settle)

	l.Section("V230 Channel Setup Error ID")
	if bad, ok, err := dev.ChannelInError(); l.Check("get channel setup error ID", err) {
		if ok {
			l.Printf("First channel with setup error: %d", bad)
		} else {
			l.Printf("No channels have setup errors")
		}
	}
}

func voltages(l *bench.Log, dev *v230.V230) {
	l.Section("V230 Channel Voltages")
	volts, err := dev.Voltages()
	if !l.Check("get all channel voltages", err) {
		return
	}
	for ch, v := range volts {
		l.Printf("Channel %d voltage: %.05f V", ch, v)
	}
}

func scanSpeed(l *bench.Log, dev *v230.V230) {
	l.Section("V230 Scan Speed")
	speed := func() {
		if fast, err := dev.ScanFast(); l.Check("get scan speed", err) {
			if fast {
				l.Printf("Current scan speed is fast")
			} else {
				l.Printf("Current scan speed is slow")
			}
		}
	}
	speed()
	if l.Check("set scan speed to slow", dev.SetScanFast(false)) {
		l.Printf("Set scan speed to slow")
	}
	speed()
	if l.Check("set scan speed to fast", dev.SetScanFast(true)) {
		l.Printf("Set scan speed to fast")
	}
	speed()
}
