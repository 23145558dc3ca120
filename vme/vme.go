/*Package vme provides the pieces shared by the Highland VME module drivers:
address validation, region binding against a bus controller, register field
codecs and the on-board macro state machine.

A driver binds a region, asks the bus to map it, then reads and writes the
live registers through Region.Mem.  Nothing here owns hardware state; a
Region is a view onto the module and every access goes straight to the bus.

Basic usage, with the simulated crate standing in for a controller:

	bus := sim.New()
	defer bus.Close()
	r, err := vme.Bind(bus, mod, 0xC000, vme.A16, "relays")
	if err != nil {
		log.Fatal(err)
	}
	defer r.Unbind()
	if err := bus.Allocate(); err != nil {
		log.Fatal(err)
	}
	mem, _ := r.Regs()
	id := mem.Read16(0)

Regions are not safe for concurrent use.  The caller serializes access.
*/
package vme

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is the root of every argument error.  It is
	// detected before any register is touched.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNilRegion is generated when an operation is called on a nil or
	// released region
	ErrNilRegion = fmt.Errorf("%w: region is nil or released", ErrInvalidArgument)

	// ErrNotMapped is generated when registers are accessed before the bus
	// has allocated the region
	ErrNotMapped = fmt.Errorf("%w: region is not mapped", ErrInvalidArgument)

	// ErrInvalidMode is generated for an addressing mode the modules do not support
	ErrInvalidMode = fmt.Errorf("%w: addressing mode must be A16 or A24", ErrInvalidArgument)

	// ErrInvalidAddress is generated when a base address exceeds the ceiling
	// of the addressing mode for the module
	ErrInvalidAddress = fmt.Errorf("%w: base address out of range", ErrInvalidArgument)

	// ErrChannelRange is generated for a channel or index outside the module's range
	ErrChannelRange = fmt.Errorf("%w: channel or index out of range", ErrInvalidArgument)

	// ErrUnsupported is generated when an operation needs a capability the
	// module variant does not have
	ErrUnsupported = fmt.Errorf("%w: operation not supported by this module variant", ErrInvalidArgument)

	// ErrMacroBusy is generated when a macro is issued while another is still executing.
	// Nothing is written to the module.
	ErrMacroBusy = errors.New("macro busy: previous command has not completed")

	// ErrMacroFailed is matched by a *MacroError, a macro that ran and
	// reported a fault in its error sub-field
	ErrMacroFailed = errors.New("macro reported failure")
)

// MacroError is generated when a macro completes with a non-zero error sub-field
type MacroError struct {
	// Code is the opcode that was issued
	Code uint16

	// Status is the error sub-field read back after the busy bit cleared
	Status uint16
}

func (e *MacroError) Error() string {
	return fmt.Sprintf("macro 0x%04X completed with error status 0x%02X", e.Code, e.Status)
}

// Is makes errors.Is(err, ErrMacroFailed) true for any *MacroError
func (e *MacroError) Is(target error) bool {
	return target == ErrMacroFailed
}
