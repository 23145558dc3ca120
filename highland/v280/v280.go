/*Package v280 provides an interface to Highland Technology V280 48-channel
digital input modules.

Input states and BIST error flags are 48-bit masks spread over three
registers, the first register holding channels 32-47.  Debounce times are set
per group of sixteen channels, so setting the rise time of channel 3 also sets
it for channels 0-15.
*/
package v280

import (
	"context"
	"fmt"
	"time"

	"github.com/nasa-jpl/golab-vme/vme"
	"go.uber.org/zap"
)

const (
	// Channels is the number of inputs
	Channels = groups * channelsPerWord

	// BufferWords is the length of the read/write buffer
	BufferWords = 128

	// Manufacturer is the VXI manufacturer ID of Highland Technology
	Manufacturer = 0xFEEE

	// ModelType is the VXI model type of the V280 (22280)
	ModelType = 0x5708

	// BISTMacro starts the built in self test
	BISTMacro uint16 = 0x8401
)

// Module describes the V280 register map
var Module = vme.Module{Name: "V280", Size: Size}

type options struct {
	poll time.Duration
	bind []vme.Option
}

// Option configures a V280
type Option func(*options)

// WithPollInterval sets the interval RunBIST polls the busy bit at.  The
// default of zero spins; the self test finishes in about 250 µs.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.poll = d }
}

// WithLogger sets the logger of the region
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.bind = append(o.bind, vme.WithLogger(l)) }
}

// V280 is a bound V280 digital input module.  It is not safe for concurrent use.
type V280 struct {
	r     *vme.Region
	macro vme.Macro
	poll  time.Duration
}

// New validates the address and registers a region for the module
func New(bus vme.Bus, addr uint32, mode vme.AddrMode, name string, opts ...Option) (*V280, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	r, err := vme.Bind(bus, Module, addr, mode, name, o.bind...)
	if err != nil {
		return nil, err
	}
	return &V280{
		r:     r,
		macro: vme.Macro{Reg: offMacro, Params: offMP, NParams: 4, Busy: macroBusy, ErrMask: macroStatus},
		poll:  o.poll,
	}, nil
}

// Close releases the region
func (v *V280) Close() error {
	if v == nil {
		return nil
	}
	return v.r.Unbind()
}

// Region returns the underlying region
func (v *V280) Region() *vme.Region {
	if v == nil {
		return nil
	}
	return v.r
}

func (v *V280) regs() (vme.Memory, error) {
	if v == nil {
		return nil, vme.ErrNilRegion
	}
	return v.r.Regs()
}

func (v *V280) read(off uintptr) (uint16, error) {
	mem, err := v.regs()
	if err != nil {
		return 0, err
	}
	return mem.Read16(off), nil
}

func (v *V280) write(off uintptr, val uint16) error {
	mem, err := v.regs()
	if err != nil {
		return err
	}
	mem.Write16(off, val)
	return nil
}

// VXIManufacturer returns the VXI manufacturer ID
func (v *V280) VXIManufacturer() (uint16, error) { return v.read(offVXIMfr) }

// VXIType returns the VXI model type
func (v *V280) VXIType() (uint16, error) { return v.read(offVXIType) }

// HardwareRevision returns the hardware revision
func (v *V280) HardwareRevision() (uint16, error) { return v.read(offModRev) }

// Serial returns the unit serial number
func (v *V280) Serial() (uint16, error) { return v.read(offSerial) }

// ROMID returns the firmware ID
func (v *V280) ROMID() (uint16, error) { return v.read(offROMID) }

// ROMRevision returns the firmware revision
func (v *V280) ROMRevision() (uint16, error) { return v.read(offROMRev) }

// MCount returns the 1 kHz realtime counter
func (v *V280) MCount() (uint16, error) { return v.read(offMCount) }

// Dash returns the module version (dash) number
func (v *V280) Dash() (uint16, error) { return v.read(offDash) }

// CalID returns the calibration table status
func (v *V280) CalID() (uint16, error) { return v.read(offCalID) }

// CalYear returns the year of calibration
func (v *V280) CalYear() (uint16, error) { return v.read(offYCal) }

// CalMonthDay returns the raw month/day calibration register
func (v *V280) CalMonthDay() (uint16, error) { return v.read(offDCal) }

// CalDate returns the calibration date as MM/DD/YYYY
func (v *V280) CalDate() (string, error) {
	mem, err := v.regs()
	if err != nil {
		return "", err
	}
	return vme.CalDate(mem.Read16(offYCal), mem.Read16(offDCal)), nil
}

// SetULED writes the user LED pattern
func (v *V280) SetULED(pattern uint16) error { return v.write(offULED, pattern) }

// ULED reads the user LED pattern
func (v *V280) ULED() (uint16, error) { return v.read(offULED) }

// Inputs returns the state of every input, bit n for channel n
func (v *V280) Inputs() (uint64, error) {
	mem, err := v.regs()
	if err != nil {
		return 0, err
	}
	return vme.ReadConcat(mem, offState, groups), nil
}

// Input returns the state of one input
func (v *V280) Input(ch int) (bool, error) {
	if err := vme.CheckChannel(ch, Channels); err != nil {
		return false, err
	}
	mem, err := v.regs()
	if err != nil {
		return false, err
	}
	return mem.Read16(groupReg(offState, ch))&(1<<uint(ch%channelsPerWord)) != 0, nil
}

// groupReg returns the register of base holding channel ch; the first register
// holds the highest channels
func groupReg(base uintptr, ch int) uintptr {
	return base + uintptr(2*(groups-1-ch/channelsPerWord))
}

// debounceReg returns the debounce register for the group of ch.  Debounce
// registers are indexed in channel order.
func debounceReg(base uintptr, ch int) uintptr {
	return base + uintptr(2*(ch/channelsPerWord))
}

// SetRiseDelay sets the rising edge debounce time of the group containing ch
func (v *V280) SetRiseDelay(ch int, delay uint16) error {
	if err := vme.CheckChannel(ch, Channels); err != nil {
		return err
	}
	return v.write(debounceReg(offRise, ch), delay)
}

// RiseDelay returns the rising edge debounce time of the group containing ch
func (v *V280) RiseDelay(ch int) (uint16, error) {
	if err := vme.CheckChannel(ch, Channels); err != nil {
		return 0, err
	}
	return v.read(debounceReg(offRise, ch))
}

// SetFallDelay sets the falling edge debounce time of the group containing ch
func (v *V280) SetFallDelay(ch int, delay uint16) error {
	if err := vme.CheckChannel(ch, Channels); err != nil {
		return err
	}
	return v.write(debounceReg(offFall, ch), delay)
}

// FallDelay returns the falling edge debounce time of the group containing ch
func (v *V280) FallDelay(ch int) (uint16, error) {
	if err := vme.CheckChannel(ch, Channels); err != nil {
		return 0, err
	}
	return v.read(debounceReg(offFall, ch))
}

// BISTErrors returns the self test error flags, bit n for channel n
func (v *V280) BISTErrors() (uint64, error) {
	mem, err := v.regs()
	if err != nil {
		return 0, err
	}
	return vme.ReadConcat(mem, offErr, groups), nil
}

// WriteBuffer stores val at index of the read/write buffer
func (v *V280) WriteBuffer(index int, val uint16) error {
	if err := vme.CheckChannel(index, BufferWords); err != nil {
		return fmt.Errorf("buffer index: %w", err)
	}
	return v.write(offBuf+uintptr(2*index), val)
}

// ReadBuffer returns the word at index of the read/write buffer
func (v *V280) ReadBuffer(index int) (uint16, error) {
	if err := vme.CheckChannel(index, BufferWords); err != nil {
		return 0, fmt.Errorf("buffer index: %w", err)
	}
	return v.read(offBuf + uintptr(2*index))
}

// MacroBusy returns true while a macro is executing
func (v *V280) MacroBusy() (bool, error) {
	mem, err := v.regs()
	if err != nil {
		return false, err
	}
	return v.macro.State(mem) == vme.Busy, nil
}

// RunBIST runs the self test and waits for it to finish.  A self test that
// ran and found faults returns a *vme.MacroError; use BISTErrors for the
// failing channels.
func (v *V280) RunBIST(ctx context.Context) error {
	mem, err := v.regs()
	if err != nil {
		return err
	}
	err = v.macro.Run(ctx, mem, v.poll, BISTMacro)
	if err != nil {
		v.r.Logger().Warn("BIST", zap.Error(err))
	}
	return err
}

// String prints the region information
func (v *V280) String() string {
	if v == nil {
		return "<nil V280>"
	}
	return v.r.String()
}
