// Package bench is the plumbing shared by the module test programs: command
// line flags, bus selection, progress spinners and the step log.
package bench

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/nasa-jpl/golab-vme/vme"
	"github.com/nasa-jpl/golab-vme/vme/sim"
	"github.com/spf13/pflag"
	"github.com/theckman/yacspin"
	"go.uber.org/zap"
)

// ErrUsage is returned by Parse when the flags are missing or malformed.
// The usage text has already been printed.
var ErrUsage = errors.New("usage")

// Setup is the parsed command line of a test program
type Setup struct {
	// ControllerID is the number of the V120 crate controller
	ControllerID int

	// Address is the base address of the module
	Address uint32

	// Mode is the address space of the module
	Mode vme.AddrMode

	// Name is the tag the region is registered under
	Name string

	// Bus is "sim" or "mmap"
	Bus string

	// Device overrides the controller device path of the mmap bus
	Device string

	// Verbose selects the development logger
	Verbose bool
}

// Parse reads the flags of a program driving one module.  prefix is the
// module family, e.g. "v210", and names the --v210_address style flags.
// extra, if not nil, registers program specific flags before parsing.
func Parse(prog, prefix string, args []string, out io.Writer, extra func(*pflag.FlagSet)) (Setup, error) {
	var (
		s    Setup
		addr string
		mode string
		help bool
	)
	fs := pflag.NewFlagSet(prog, pflag.ContinueOnError)
	fs.SetOutput(out)
	fs.IntVar(&s.ControllerID, "v120_id", -1, "V120 controller ID")
	fs.StringVar(&addr, prefix+"_address", "", "base address of the module (e.g. 0xC000)")
	fs.StringVar(&mode, prefix+"_addr_mode", "", "addressing mode (a16, a24, a32)")
	fs.StringVar(&s.Name, prefix+"_name", "", "logical name of the module")
	fs.StringVar(&s.Bus, "bus", "mmap", "bus backend, sim or mmap")
	fs.StringVar(&s.Device, "device", "", "controller device, defaults to /dev/v120_q<v120_id>")
	fs.BoolVarP(&s.Verbose, "verbose", "v", false, "log driver events with the development logger")
	fs.BoolVarP(&help, "help", "h", false, "show this help message")
	if extra != nil {
		extra(fs)
	}
	fs.Usage = func() {
		fmt.Fprintf(out, "Usage: %s [OPTIONS]\n\nOptions:\n", prog)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return s, ErrUsage
	}
	if help {
		fs.Usage()
		return s, ErrUsage
	}
	if addr == "" || mode == "" || s.Name == "" || (s.ControllerID < 0 && s.Bus == "mmap" && s.Device == "") {
		fmt.Fprintln(out, "Error: missing required arguments")
		fs.Usage()
		return s, ErrUsage
	}
	a, err := strconv.ParseUint(addr, 0, 32)
	if err != nil {
		fmt.Fprintf(out, "Error: %q is not an address\n", addr)
		return s, ErrUsage
	}
	s.Address = uint32(a)
	s.Mode, err = vme.ParseAddrMode(mode)
	if err != nil {
		fmt.Fprintf(out, "Error: %v\n", err)
		return s, ErrUsage
	}
	return s, nil
}

// Logger returns the logger handed to the drivers
func (s Setup) Logger() *zap.Logger {
	var (
		l   *zap.Logger
		err error
	)
	if s.Verbose {
		l, err = zap.NewDevelopment()
	} else {
		l, err = zap.NewProduction()
	}
	if err != nil {
		return zap.NewNop()
	}
	return l
}

// Open returns the bus the module is on.  With the sim bus, simulate is
// called to plug a simulated module in at the configured address.
func (s Setup) Open(simulate func(c *sim.Crate, mode vme.AddrMode, addr uint32), log *zap.Logger) (vme.Bus, error) {
	switch s.Bus {
	case "sim":
		c := sim.New()
		if simulate != nil {
			simulate(c, s.Mode, s.Address)
		}
		return c, nil
	case "mmap":
		return openMapped(s, log)
	default:
		return nil, fmt.Errorf("%w: bus %q, must be a member of {sim, mmap}", vme.ErrInvalidArgument, s.Bus)
	}
}

// Wait runs fcn with a spinner on w labelled msg
func Wait(w io.Writer, msg string, fcn func() error) error {
	spin, err := yacspin.New(yacspin.Config{
		Writer:            w,
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[59],
		Suffix:            " " + msg,
		StopCharacter:     "done",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "failed",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return fcn()
	}
	if err := spin.Start(); err != nil {
		return fcn()
	}
	err = fcn()
	if err != nil {
		spin.StopFail()
		return err
	}
	spin.Stop()
	return nil
}

// Log prints the outcome of each step of a test sequence.  A failed step is
// printed and counted; the sequence carries on.
type Log struct {
	W        io.Writer
	Failures int
}

// Section starts a titled block of output
func (l *Log) Section(title string) {
	fmt.Fprintf(l.W, "\n--- %s ---\n", title)
}

// Printf prints a result line
func (l *Log) Printf(format string, args ...interface{}) {
	fmt.Fprintf(l.W, format+"\n", args...)
}

// Check prints an error line and returns false if err is not nil
func (l *Log) Check(what string, err error) bool {
	if err == nil {
		return true
	}
	l.Failures++
	fmt.Fprintf(l.W, "Error: Failed to %s: %v\n", what, err)
	return false
}
