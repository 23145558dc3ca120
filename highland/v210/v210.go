/*Package v210 provides an interface to Highland Technology V210 64-channel
SPDT relay modules.

Relay n is bit n of a 64-bit mask.  The module stores the mask across four
control registers, the first register holding channels 48-63.  Relays take
physical time to move; the manual asks for at least 25 ms before the state
read back is trustworthy, which is why Relays takes a settling delay.

Basic usage:

	rly, err := v210.New(bus, 0xC000, vme.A16, "relays")
	if err != nil {
		log.Fatal(err)
	}
	defer rly.Close()
	if err := bus.Allocate(); err != nil {
		log.Fatal(err)
	}
	rly.EnableDrivers()
	rly.SetRelays(1 << 32)
	mask, _ := rly.Relays(v210.MinSettle)
*/
package v210

import (
	"fmt"
	"time"

	"github.com/nasa-jpl/golab-vme/vme"
	"go.uber.org/zap"
)

const (
	// Channels is the number of relays on the module
	Channels = 64

	// DefaultSettle is the settling delay the vendor library used
	DefaultSettle = 10 * time.Millisecond

	// MinSettle is the settling time the manual specifies
	MinSettle = 25 * time.Millisecond

	// Manufacturer is the VXI manufacturer ID of Highland Technology
	Manufacturer = 0xFEEE

	// ModelType is the VXI model type of the V210 (22210)
	ModelType = 0x56C2
)

// Module describes the V210 register map
var Module = vme.Module{Name: "V210", Size: Size}

// V210 is a bound V210 relay module.  It is not safe for concurrent use.
type V210 struct {
	r *vme.Region
}

// New validates the address and registers a region for the module.  The bus
// must still Allocate before the module is usable.
func New(bus vme.Bus, addr uint32, mode vme.AddrMode, name string, opts ...vme.Option) (*V210, error) {
	r, err := vme.Bind(bus, Module, addr, mode, name, opts...)
	if err != nil {
		return nil, err
	}
	return &V210{r: r}, nil
}

// Close releases the region.  It may be called more than once.
func (v *V210) Close() error {
	if v == nil {
		return nil
	}
	return v.r.Unbind()
}

// Region returns the underlying region
func (v *V210) Region() *vme.Region {
	if v == nil {
		return nil
	}
	return v.r
}

func (v *V210) regs() (vme.Memory, error) {
	if v == nil {
		return nil, vme.ErrNilRegion
	}
	return v.r.Regs()
}

func (v *V210) read(off uintptr) (uint16, error) {
	mem, err := v.regs()
	if err != nil {
		return 0, err
	}
	return mem.Read16(off), nil
}

// BoardID returns the board ID register, 0x1B00 on production modules
func (v *V210) BoardID() (uint16, error) {
	return v.read(offBoardID)
}

// VXIManufacturer returns the VXI manufacturer ID, 0xFEEE for Highland
func (v *V210) VXIManufacturer() (uint16, error) {
	return v.read(offVXIMfr)
}

// VXIType returns the VXI model type, 22210 for the V210
func (v *V210) VXIType() (uint16, error) {
	return v.read(offVXIType)
}

// FPGARevision returns the FPGA revision, usually the letter 'A'
func (v *V210) FPGARevision() (uint16, error) {
	return v.read(offFPGARev)
}

// SetErrorLED turns the front panel error LED on or off
func (v *V210) SetErrorLED(on bool) error {
	mem, err := v.regs()
	if err != nil {
		return err
	}
	// the LED bit is active low
	vme.SetFlagsTo(mem, offCSR, csrErrLED, !on)
	return nil
}

// ErrorLED returns true if the error LED is lit
func (v *V210) ErrorLED() (bool, error) {
	mem, err := v.regs()
	if err != nil {
		return false, err
	}
	return mem.Read16(offCSR)&csrErrLED == 0, nil
}

// EnableDrivers enables both the P4 and P3 relay drivers
func (v *V210) EnableDrivers() error {
	mem, err := v.regs()
	if err != nil {
		return err
	}
	vme.SetFlags(mem, offCSR, csrP4TM|csrP3TM)
	return nil
}

// DisableDrivers disables both the P4 and P3 relay drivers
func (v *V210) DisableDrivers() error {
	mem, err := v.regs()
	if err != nil {
		return err
	}
	vme.ClearFlags(mem, offCSR, csrP4TM|csrP3TM)
	return nil
}

// P4TMEnabled returns true if the P4 relay drivers are enabled
func (v *V210) P4TMEnabled() (bool, error) {
	mem, err := v.regs()
	if err != nil {
		return false, err
	}
	return vme.Flag(mem, offCSR, csrP4TM), nil
}

// P3TMEnabled returns true if the P3 relay drivers are enabled
func (v *V210) P3TMEnabled() (bool, error) {
	mem, err := v.regs()
	if err != nil {
		return false, err
	}
	return vme.Flag(mem, offCSR, csrP3TM), nil
}

// SetRelays commands every relay at once; bit n of mask closes relay n
func (v *V210) SetRelays(mask uint64) error {
	mem, err := v.regs()
	if err != nil {
		return err
	}
	vme.WriteConcat(mem, offCtl, maskWords, mask)
	v.r.Logger().Debug("set relays", zap.String("mask", fmt.Sprintf("0x%016X", mask)))
	return nil
}

// Relays waits settle, then returns the commanded relay mask.  A zero settle
// reads immediately.
func (v *V210) Relays(settle time.Duration) (uint64, error) {
	mem, err := v.regs()
	if err != nil {
		return 0, err
	}
	if settle > 0 {
		time.Sleep(settle)
	}
	return vme.ReadConcat(mem, offCtl, maskWords), nil
}

// SetRelay closes or opens a single relay, leaving the others as they are
func (v *V210) SetRelay(ch int, closed bool) error {
	if err := vme.CheckChannel(ch, Channels); err != nil {
		return err
	}
	mem, err := v.regs()
	if err != nil {
		return err
	}
	word := maskWords - 1 - ch/16
	vme.SetFlagsTo(mem, offCtl+uintptr(2*word), 1<<uint(ch%16), closed)
	return nil
}

// Contacts waits settle, then returns the sensed contact state of every relay
// from the readback registers
func (v *V210) Contacts(settle time.Duration) (uint64, error) {
	mem, err := v.regs()
	if err != nil {
		return 0, err
	}
	if settle > 0 {
		time.Sleep(settle)
	}
	return vme.ReadConcat(mem, offRcon, maskWords), nil
}

// String prints the region information
func (v *V210) String() string {
	if v == nil {
		return "<nil V210>"
	}
	return v.r.String()
}
