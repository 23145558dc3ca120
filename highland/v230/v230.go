/*Package v230 provides an interface to Highland Technology V230 64-channel
analog input modules.

Three variants exist.  The plain V230 carries the inputs, calibration data and
the no-op, reboot and power supply test macros.  The -2 and -21 variants add
the cal-bus relays, the BIST engine and its mux, power supply telemetry and
the full BIST and channel test macros; calling one of those on a plain V230
returns vme.ErrUnsupported.

Macros other than reboot are issued and return immediately.  Use WaitMacro to
block until the module is idle again:

	adc, err := v230.New(bus, v230.Module21, 0xC000, vme.A16, "adc")
	...
	if err := adc.ExecuteMacro(ctx, v230.FullBIST); err != nil {
		return err
	}
	if err := adc.WaitMacro(ctx); err != nil {
		return err
	}
	flags, err := adc.FullBISTResults()

Reboot blocks for a fixed delay instead; the module does not answer on the bus
while it restarts.
*/
package v230

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nasa-jpl/golab-vme/vme"
	"go.uber.org/zap"
)

// MacroCode is a macro opcode
type MacroCode uint16

const (
	// Channels is the number of analog inputs
	Channels = 64

	// Manufacturer is the VXI manufacturer ID of Highland Technology
	Manufacturer = 0xFEEE

	// ModelType is the VXI model type of the V230 (22230)
	ModelType = 0x56D6

	// HTestPattern is the value the hardware test register always reads
	HTestPattern = 0xABCD

	// DefaultRebootDelay is how long a reboot takes to complete
	DefaultRebootDelay = 6 * time.Second

	// supplyScale is volts per count of power supply telemetry
	supplyScale = 0.001

	bistMeasurements = 15
)

const (
	// NoOp does nothing; it is never written to the module
	NoOp MacroCode = 0x8400

	// FullBIST runs the self test on every channel
	FullBIST MacroCode = 0x8401

	// Reboot restarts the module firmware
	Reboot MacroCode = 0x8407

	// ChannelTest tests one channel; it is only issued by V230.ChannelTest
	ChannelTest MacroCode = 0x8408

	// PSTest checks the on-board power supplies
	PSTest MacroCode = 0x8409
)

// Capabilities of the -2 and -21 variants
const (
	CapCalRelays vme.Capability = 1 << iota
	CapOperatingMode
	CapBIST
	CapBISTMux
	CapPowerStatus
	CapChannelTest

	extended = CapCalRelays | CapOperatingMode | CapBIST | CapBISTMux | CapPowerStatus | CapChannelTest
)

var (
	// ErrUnknownRange is generated when a range code is not one of the three input ranges
	ErrUnknownRange = fmt.Errorf("%w: unknown input range", vme.ErrInvalidArgument)

	// ErrUnknownFilter is generated when a filter code is not a known filter setting
	ErrUnknownFilter = fmt.Errorf("%w: unknown filter setting", vme.ErrInvalidArgument)

	// ErrInvalidBlock is generated when a transfer block is too short to hold every channel
	ErrInvalidBlock = fmt.Errorf("%w: short transfer block", vme.ErrInvalidArgument)

	// ErrDedicatedMacro is generated when the channel test is passed to ExecuteMacro
	ErrDedicatedMacro = fmt.Errorf("%w: the channel test macro must be issued with ChannelTest", vme.ErrInvalidArgument)
)

var (
	// Module is the plain V230
	Module = vme.Module{Name: "V230", Size: Size, BufferWords: 2 * Channels, BufferOffset: offCtl}

	// Module2 is the V230-2
	Module2 = vme.Module{Name: "V230-2", Size: Size, Caps: extended, BufferWords: 2 * Channels, BufferOffset: offCtl}

	// Module21 is the V230-21
	Module21 = vme.Module{Name: "V230-21", Size: Size, Caps: extended, BufferWords: 2 * Channels, BufferOffset: offCtl}
)

// Variant returns the module descriptor for "V230", "V230-2" or "V230-21"
func Variant(name string) (vme.Module, error) {
	for _, m := range []vme.Module{Module, Module2, Module21} {
		if m.Name == name {
			return m, nil
		}
	}
	return vme.Module{}, fmt.Errorf("%w: V230 variant %q, must be a member of {V230, V230-2, V230-21}", vme.ErrInvalidArgument, name)
}

func (c MacroCode) String() string {
	switch c {
	case NoOp:
		return "no-op"
	case FullBIST:
		return "full BIST"
	case Reboot:
		return "reboot"
	case ChannelTest:
		return "channel test"
	case PSTest:
		return "power supply test"
	default:
		return fmt.Sprintf("MacroCode(0x%04X)", uint16(c))
	}
}

type options struct {
	poll   time.Duration
	reboot time.Duration
	bind   []vme.Option
}

// Option configures a V230
type Option func(*options)

// WithPollInterval sets the interval WaitMacro polls the busy bit at.  The
// default of zero spins.
func WithPollInterval(d time.Duration) Option {
	return func(o *options) { o.poll = d }
}

// WithRebootDelay replaces the fixed reboot delay
func WithRebootDelay(d time.Duration) Option {
	return func(o *options) { o.reboot = d }
}

// WithLogger sets the logger of the region
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.bind = append(o.bind, vme.WithLogger(l)) }
}

// V230 is a bound V230 analog input module.  It is not safe for concurrent use.
type V230 struct {
	r      *vme.Region
	macro  vme.Macro
	poll   time.Duration
	reboot time.Duration
}

// New validates the address and registers a region for a module of variant m.
// The bus must still Allocate before the module is usable.
func New(bus vme.Bus, m vme.Module, addr uint32, mode vme.AddrMode, name string, opts ...Option) (*V230, error) {
	o := options{reboot: DefaultRebootDelay}
	for _, opt := range opts {
		opt(&o)
	}
	r, err := vme.Bind(bus, m, addr, mode, name, o.bind...)
	if err != nil {
		return nil, err
	}
	return &V230{
		r:      r,
		macro:  vme.Macro{Reg: offMacro, Params: offMP, NParams: 3, Busy: macroBusy},
		poll:   o.poll,
		reboot: o.reboot,
	}, nil
}

// Close releases the region and its transfer buffer.  It may be called more than once.
func (v *V230) Close() error {
	if v == nil {
		return nil
	}
	return v.r.Unbind()
}

// Region returns the underlying region
func (v *V230) Region() *vme.Region {
	if v == nil {
		return nil
	}
	return v.r
}

// Variant returns the module descriptor the V230 was bound with
func (v *V230) Variant() vme.Module {
	return v.r.Module
}

func (v *V230) regs() (vme.Memory, error) {
	if v == nil {
		return nil, vme.ErrNilRegion
	}
	return v.r.Regs()
}

// regsFor checks capability c before returning the registers
func (v *V230) regsFor(c vme.Capability) (vme.Memory, error) {
	mem, err := v.regs()
	if err != nil {
		return nil, err
	}
	if err := v.r.Require(c); err != nil {
		return nil, err
	}
	return mem, nil
}

func (v *V230) read(off uintptr) (uint16, error) {
	mem, err := v.regs()
	if err != nil {
		return 0, err
	}
	return mem.Read16(off), nil
}

func (v *V230) write(off uintptr, val uint16) error {
	mem, err := v.regs()
	if err != nil {
		return err
	}
	mem.Write16(off, val)
	return nil
}

// HTest returns the hardware test register, which always reads 0xABCD
func (v *V230) HTest() (uint16, error) { return v.read(offHTest) }

// SetUTest writes the user test register
func (v *V230) SetUTest(val uint16) error { return v.write(offUTest, val) }

// UTest reads the user test register
func (v *V230) UTest() (uint16, error) { return v.read(offUTest) }

// VXIManufacturer returns the VXI manufacturer ID
func (v *V230) VXIManufacturer() (uint16, error) { return v.read(offVXIMfr) }

// VXIType returns the VXI model type
func (v *V230) VXIType() (uint16, error) { return v.read(offVXIType) }

// Serial returns the unit serial number
func (v *V230) Serial() (uint16, error) { return v.read(offSerial) }

// ROMID returns the firmware ID
func (v *V230) ROMID() (uint16, error) { return v.read(offROMID) }

// ROMRevision returns the firmware revision
func (v *V230) ROMRevision() (uint16, error) { return v.read(offROMRev) }

// MCount returns the microprocessor update counter
func (v *V230) MCount() (uint16, error) { return v.read(offMCount) }

// Dash returns the module version (dash) number
func (v *V230) Dash() (uint16, error) { return v.read(offDash) }

// ScanCount returns the ADC scan counter
func (v *V230) ScanCount() (uint16, error) { return v.read(offScan) }

// CalID returns the calibration table status
func (v *V230) CalID() (uint16, error) { return v.read(offCalID) }

// CalYear returns the year of calibration
func (v *V230) CalYear() (uint16, error) { return v.read(offYCal) }

// CalMonthDay returns the raw month/day calibration register, month in the high byte
func (v *V230) CalMonthDay() (uint16, error) { return v.read(offDCal) }

// CalDate returns the calibration date as MM/DD/YYYY
func (v *V230) CalDate() (string, error) {
	mem, err := v.regs()
	if err != nil {
		return "", err
	}
	return vme.CalDate(mem.Read16(offYCal), mem.Read16(offDCal)), nil
}

// SetULED writes the user LED pattern
func (v *V230) SetULED(pattern uint16) error { return v.write(offULED, pattern) }

// ULED reads the user LED pattern
func (v *V230) ULED() (uint16, error) { return v.read(offULED) }

// SetChannelConfig configures one input.  An unknown range or filter is
// rejected without touching the module.
func (v *V230) SetChannelConfig(ch int, cfg ChannelConfig) error {
	if err := vme.CheckChannel(ch, Channels); err != nil {
		return err
	}
	val, err := cfg.encode()
	if err != nil {
		return err
	}
	if err := v.write(offCtl+uintptr(2*ch), val); err != nil {
		return err
	}
	v.r.Logger().Debug("configured channel", zap.Int("ch", ch), zap.Stringer("range", cfg.Range),
		zap.Stringer("filter", cfg.Filter), zap.Bool("enable", cfg.Enable))
	return nil
}

// ChannelConfig reads the configuration of one input.  Codes that do not
// match a known range or filter are returned as they are; see Range.Valid
// and Filter.Valid.
func (v *V230) ChannelConfig(ch int) (ChannelConfig, error) {
	if err := vme.CheckChannel(ch, Channels); err != nil {
		return ChannelConfig{}, err
	}
	val, err := v.read(offCtl + uintptr(2*ch))
	if err != nil {
		return ChannelConfig{}, err
	}
	return decodeConfig(val), nil
}

// ChannelInError returns the first channel with a configuration error.
// ok is false when no channel is in error.
func (v *V230) ChannelInError() (ch int, ok bool, err error) {
	val, err := v.read(offCher)
	if err != nil {
		return -1, false, err
	}
	ch, ok = vme.ChannelInError(val)
	return ch, ok, nil
}

// Voltage reads one channel directly, scaled by its configured range
func (v *V230) Voltage(ch int) (float64, error) {
	if err := vme.CheckChannel(ch, Channels); err != nil {
		return 0, err
	}
	mem, err := v.regs()
	if err != nil {
		return 0, err
	}
	cfg := decodeConfig(mem.Read16(offCtl + uintptr(2*ch)))
	scale, err := cfg.Range.Scale()
	if err != nil {
		return 0, fmt.Errorf("channel %d: %w", ch, err)
	}
	return vme.Scale(mem.Read16(offRDat+uintptr(2*ch)), scale), nil
}

// Voltages reads the configuration and sample of every channel in one block
// transfer and scales each sample by its own channel's range.  If any channel
// has an unknown range, no voltages are returned.
func (v *V230) Voltages() ([Channels]float64, error) {
	var out [Channels]float64
	if v == nil {
		return out, vme.ErrNilRegion
	}
	buf, err := v.r.ReadBlock()
	if err != nil {
		return out, err
	}
	return convert(buf[:Channels], buf[Channels:])
}

// ExecuteMacro issues code.  NoOp returns immediately without writing.
// Reboot writes the opcode and then blocks for the reboot delay, or until
// ctx is done.  PSTest and FullBIST are issued and not waited on.
// ChannelTest is rejected with ErrDedicatedMacro.
func (v *V230) ExecuteMacro(ctx context.Context, code MacroCode) error {
	switch code {
	case NoOp:
		_, err := v.regs()
		return err
	case Reboot:
		return v.doReboot(ctx)
	case PSTest:
		return v.issue(0, code)
	case FullBIST:
		return v.issue(CapBIST, code)
	case ChannelTest:
		return ErrDedicatedMacro
	default:
		return fmt.Errorf("%w: unknown macro code 0x%04X", vme.ErrInvalidArgument, uint16(code))
	}
}

func (v *V230) issue(c vme.Capability, code MacroCode, params ...uint16) error {
	mem, err := v.regsFor(c)
	if err != nil {
		return err
	}
	if err := v.macro.Issue(mem, uint16(code), params...); err != nil {
		v.r.Logger().Warn("macro not issued", zap.Stringer("macro", code), zap.Error(err))
		return err
	}
	v.r.Logger().Debug("issued macro", zap.Stringer("macro", code))
	return nil
}

func (v *V230) doReboot(ctx context.Context) error {
	if err := v.issue(0, Reboot); err != nil {
		return err
	}
	t := time.NewTimer(v.reboot)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for reboot: %w", ctx.Err())
	}
}

// ChannelTest runs the self test on one channel.  The channel is written to
// the first parameter register before the opcode.
func (v *V230) ChannelTest(ch int) error {
	if err := vme.CheckChannel(ch, Channels); err != nil {
		return err
	}
	return v.issue(CapChannelTest, ChannelTest, uint16(ch))
}

// MacroBusy returns true while a macro is executing
func (v *V230) MacroBusy() (bool, error) {
	mem, err := v.regs()
	if err != nil {
		return false, err
	}
	return v.macro.State(mem) == vme.Busy, nil
}

// WaitMacro blocks until the module is idle or ctx is done
func (v *V230) WaitMacro(ctx context.Context) error {
	mem, err := v.regs()
	if err != nil {
		return err
	}
	return v.macro.Wait(ctx, mem, v.poll)
}

// SetScanFast selects the fast (true) or slow (false) ADC scan speed
func (v *V230) SetScanFast(fast bool) error {
	mem, err := v.regs()
	if err != nil {
		return err
	}
	vme.SetFlagsTo(mem, offMode, modeSlow, !fast)
	return nil
}

// ScanFast returns true if the module scans at the fast rate
func (v *V230) ScanFast() (bool, error) {
	mem, err := v.regs()
	if err != nil {
		return false, err
	}
	return !vme.Flag(mem, offMode, modeSlow), nil
}

// SetMode sets the operating mode, leaving the scan speed as it is
func (v *V230) SetMode(m OperatingMode) error {
	if m > ModeBoth {
		return fmt.Errorf("%w: operating mode %d", vme.ErrInvalidArgument, uint16(m))
	}
	mem, err := v.regsFor(CapOperatingMode)
	if err != nil {
		return err
	}
	vme.UpdateField(mem, offMode, modeMask, uint16(m))
	return nil
}

// Mode returns the operating mode
func (v *V230) Mode() (OperatingMode, error) {
	mem, err := v.regsFor(CapOperatingMode)
	if err != nil {
		return 0, err
	}
	return OperatingMode(vme.Field(mem, offMode, modeMask)), nil
}

// SetRelayConfig writes the cal-bus relay register
func (v *V230) SetRelayConfig(c RelayConfig) error {
	val, err := c.encode()
	if err != nil {
		return err
	}
	mem, err := v.regsFor(CapCalRelays)
	if err != nil {
		return err
	}
	mem.Write16(offRelays, val)
	return nil
}

// RelayConfig reads the cal-bus relay register
func (v *V230) RelayConfig() (RelayConfig, error) {
	mem, err := v.regsFor(CapCalRelays)
	if err != nil {
		return RelayConfig{}, err
	}
	return decodeRelays(mem.Read16(offRelays)), nil
}

// FullBISTResults returns the flags of every channel after a full BIST
func (v *V230) FullBISTResults() ([Channels]BISTFlags, error) {
	var out [Channels]BISTFlags
	mem, err := v.regsFor(CapBIST)
	if err != nil {
		return out, err
	}
	for ch := range out {
		word := mem.Read16(offBIST + uintptr(2*(ch/2)))
		if ch%2 == 0 {
			word >>= 8
		}
		out[ch] = decodeBIST(word & 0xFF)
	}
	return out, nil
}

// BISTErrorCount returns the number of errors found by the last BIST
func (v *V230) BISTErrorCount() (uint16, error) {
	mem, err := v.regsFor(CapBIST)
	if err != nil {
		return 0, err
	}
	return mem.Read16(offBern), nil
}

// ChannelBISTResults returns the result of the last channel test
func (v *V230) ChannelBISTResults() (ChannelBIST, error) {
	var out ChannelBIST
	mem, err := v.regsFor(CapBIST)
	if err != nil {
		return out, err
	}
	out.Flags = decodeBIST(mem.Read16(offBIST))
	for i := 0; i < bistMeasurements; i++ {
		out.Measurements[i] = int16(mem.Read16(offBIST + uintptr(2*(i+1))))
	}
	return out, nil
}

// SetBMux selects the positive and negative BIST calibration sources
func (v *V230) SetBMux(b BMux) error {
	if !b.CalPos.Valid() || !b.CalNeg.Valid() {
		return fmt.Errorf("%w: BIST mux sources %d/%d", vme.ErrInvalidArgument, uint16(b.CalPos), uint16(b.CalNeg))
	}
	mem, err := v.regsFor(CapBISTMux)
	if err != nil {
		return err
	}
	mem.Write16(offBMux, uint16(b.CalNeg)&bmuxNegMask|(uint16(b.CalPos)<<4)&bmuxPosMask)
	return nil
}

// BMux returns the BIST mux configuration
func (v *V230) BMux() (BMux, error) {
	mem, err := v.regsFor(CapBISTMux)
	if err != nil {
		return BMux{}, err
	}
	val := mem.Read16(offBMux)
	return BMux{CalPos: Source((val & bmuxPosMask) >> 4), CalNeg: Source(val & bmuxNegMask)}, nil
}

// PowerSupplies returns the error flag and voltage of every supply, indexed by Supply
func (v *V230) PowerSupplies() ([NumSupplies]SupplyStatus, error) {
	var out [NumSupplies]SupplyStatus
	mem, err := v.regsFor(CapPowerStatus)
	if err != nil {
		return out, err
	}
	perr := mem.Read16(offPErr)
	for i := range out {
		out[i] = SupplyStatus{
			Error:   perr&(1<<uint(i)) != 0,
			Voltage: vme.Scale(mem.Read16(offEP1+uintptr(2*i)), supplyScale),
		}
	}
	return out, nil
}

// IsUnsupported returns true if err means the variant lacks the operation
func IsUnsupported(err error) bool {
	return errors.Is(err, vme.ErrUnsupported)
}

// String prints the region information
func (v *V230) String() string {
	if v == nil {
		return "<nil V230>"
	}
	return v.r.String()
}
